package model

import (
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

var DB *gorm.DB

type DBConfig struct {
	DSN          string `yaml:"dsn" json:"dsn"`
	MaxIdleConns int    `yaml:"maxIdleConns" json:"maxIdleConns" validate:"gte=0"`
	MaxOpenConns int    `yaml:"maxOpenConns" json:"maxOpenConns" validate:"gte=0"`
	MaxLifetime  int    `yaml:"maxLifetime" json:"maxLifetime" validate:"gte=0"`
}

func InitDB(dbConfig DBConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dbConfig.DSN), &gorm.Config{
		PrepareStmt: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(dbConfig.MaxIdleConns)
	sqlDB.SetMaxOpenConns(dbConfig.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Second * time.Duration(dbConfig.MaxLifetime))

	DB = db

	return db, nil
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&PostureRecord{}, &Calibration{}, &AppSetting{})
}
