package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"postureguard/internal/model"
	"postureguard/internal/storage"
)

var updateDBCommand = &cobra.Command{
	Use:   "updatedb",
	Short: "Create or update the MySQL tables",
	Run: func(cmd *cobra.Command, args []string) {
		conf := loadConfig(cmd)
		if conf.Storage.Driver != storage.DriverMySQL {
			logrus.Warnf("storage driver is %q, migrating %s anyway", conf.Storage.Driver, storage.DriverMySQL)
		}

		db, err := model.InitDB(conf.Storage.DB)
		if err != nil {
			logrus.Fatal("failed to init database", err)
		}
		defer func() {
			sqlDb, _ := db.DB()
			sqlDb.Close()
		}()

		err = model.AutoMigrate(db)
		if err != nil {
			logrus.Fatal("failed to auto migrate database", err)
		} else {
			logrus.Infof("Database tables update successfully")
		}
	},
}
