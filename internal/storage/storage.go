package storage

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"postureguard/internal/metadata"
	"postureguard/internal/model"
	"postureguard/internal/posture"
)

const (
	DriverBadger = "badger"
	DriverMySQL  = "mysql"

	// SettingLastLateralSource remembers the lateral camera address between runs.
	SettingLastLateralSource = "last_lateral_source"
)

// Gateway is everything the engine, the statistics and the API need from storage.
type Gateway interface {
	SaveRecord(ctx context.Context, rec *posture.PostureRecord) error
	QueryRecords(ctx context.Context, r posture.TimeRange) ([]posture.PostureRecord, error)

	SaveCalibration(ctx context.Context, p posture.CalibrationProfile) error
	LoadCalibration(ctx context.Context, role posture.CameraRole) (*posture.CalibrationProfile, error)
	DeleteCalibration(ctx context.Context, role posture.CameraRole) error

	SaveSetting(ctx context.Context, key, value string) error
	LoadSetting(ctx context.Context, key, def string) (string, error)

	Close() error
}

var (
	_ Gateway = (*metadata.MetadataDB)(nil)
	_ Gateway = (*model.Store)(nil)
)

type Config struct {
	Driver  string         `yaml:"driver" json:"driver" validate:"oneof=badger mysql"`
	DataDir string         `yaml:"dataDir" json:"dataDir"`
	DB      model.DBConfig `yaml:"db" json:"db"`
}

// Open returns the gateway selected by conf.Driver.
func Open(conf Config, logger *logrus.Entry) (Gateway, error) {
	switch conf.Driver {
	case "", DriverBadger:
		db, err := metadata.NewMetadataDB(conf.DataDir, logger.WithField("storage", DriverBadger))
		if err != nil {
			return nil, fmt.Errorf("open badger at %q: %w", conf.DataDir, err)
		}
		return db, nil
	case DriverMySQL:
		db, err := model.InitDB(conf.DB)
		if err != nil {
			return nil, fmt.Errorf("open mysql: %w", err)
		}
		return model.NewStore(db), nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", conf.Driver)
}
