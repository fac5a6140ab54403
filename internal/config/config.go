package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"

	"postureguard/internal/alert"
	"postureguard/internal/camera"
	"postureguard/internal/engine"
	"postureguard/internal/landmark"
	"postureguard/internal/model"
	"postureguard/internal/posture"
	"postureguard/internal/server"
	"postureguard/internal/storage"
)

const defaultSqlDsn = "root:123456@tcp(127.0.0.1:3306)/postureguard?charset=utf8mb4&parseTime=True&loc=Local"

// EngineConfig mirrors engine.Options with integer durations.
type EngineConfig struct {
	TickIntervalMs     int     `yaml:"tickIntervalMs" json:"tickIntervalMs" validate:"gte=1,lte=1000"`
	CalibrationFrames  int     `yaml:"calibrationFrames" json:"calibrationFrames" validate:"gte=1"`
	CalibrationMargin  float64 `yaml:"calibrationMargin" json:"calibrationMargin" validate:"gt=0"`
	MinBadDurationMs   int     `yaml:"minBadDurationMs" json:"minBadDurationMs" validate:"gte=1"`
	SampleGapMs        int     `yaml:"sampleGapMs" json:"sampleGapMs" validate:"gte=1"`
	AlertIntervalSec   int     `yaml:"alertIntervalSec" json:"alertIntervalSec" validate:"gte=1"`
	AlertScope         string  `yaml:"alertScope" json:"alertScope" validate:"oneof=global role"`
	SaveIntervalSec    int     `yaml:"saveIntervalSec" json:"saveIntervalSec" validate:"gte=1"`
	RecordQueueSize    int     `yaml:"recordQueueSize" json:"recordQueueSize" validate:"gte=1"`
	DetectTimeoutMs    int     `yaml:"detectTimeoutMs" json:"detectTimeoutMs" validate:"gte=1"`
	StorageTimeoutMs   int     `yaml:"storageTimeoutMs" json:"storageTimeoutMs" validate:"gte=1"`
	RestoreCalibration bool    `yaml:"restoreCalibration" json:"restoreCalibration"`
}

// CameraConfig describes one source. Source is a device index ("0") or a
// stream URL.
type CameraConfig struct {
	Enabled         bool   `yaml:"enabled" json:"enabled"`
	Source          string `yaml:"source" json:"source" validate:"required_if=Enabled true"`
	Width           int    `yaml:"width" json:"width" validate:"gte=0"`
	Height          int    `yaml:"height" json:"height" validate:"gte=0"`
	StopTimeoutMs   int    `yaml:"stopTimeoutMs" json:"stopTimeoutMs" validate:"gte=0"`
	RetryMaxDelayMs int    `yaml:"retryMaxDelayMs" json:"retryMaxDelayMs" validate:"gte=0"`
}

type CamerasConfig struct {
	Frontal CameraConfig `yaml:"frontal" json:"frontal"`
	Lateral CameraConfig `yaml:"lateral" json:"lateral"`
}

type TritonConfig struct {
	ServerAddr string  `yaml:"serverAddr" json:"serverAddr" validate:"required"`
	ModelName  string  `yaml:"modelName" json:"modelName" validate:"required"`
	MinScore   float32 `yaml:"minScore" json:"minScore" validate:"gte=0,lte=1"`
}

type NSQConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr" validate:"required_if=Enabled true"`
	Topic   string `yaml:"topic" json:"topic" validate:"required_if=Enabled true"`
}

type SnapshotConfig struct {
	Enabled bool           `yaml:"enabled" json:"enabled"`
	S3      alert.S3Config `yaml:"s3" json:"s3"`
}

type AlertConfig struct {
	Bell      bool           `yaml:"bell" json:"bell"`
	TimeoutMs int            `yaml:"timeoutMs" json:"timeoutMs" validate:"gte=1"`
	NSQ       NSQConfig      `yaml:"nsq" json:"nsq"`
	Snapshot  SnapshotConfig `yaml:"snapshot" json:"snapshot"`
}

type Config struct {
	Engine  EngineConfig   `yaml:"engine" json:"engine"`
	Cameras CamerasConfig  `yaml:"cameras" json:"cameras"`
	Storage storage.Config `yaml:"storage" json:"storage"`
	Triton  TritonConfig   `yaml:"triton" json:"triton"`
	Alert   AlertConfig    `yaml:"alert" json:"alert"`
	Server  server.Config  `yaml:"server" json:"server"`
}

func DefaultConfig() *Config {
	opts := engine.DefaultOptions()
	return &Config{
		Engine: EngineConfig{
			TickIntervalMs:     int(opts.TickInterval / time.Millisecond),
			CalibrationFrames:  opts.CalibrationFrames,
			CalibrationMargin:  opts.CalibrationMargin,
			MinBadDurationMs:   int(opts.MinBadDuration / time.Millisecond),
			SampleGapMs:        int(opts.SampleGap / time.Millisecond),
			AlertIntervalSec:   int(opts.AlertInterval / time.Second),
			AlertScope:         string(opts.AlertScope),
			SaveIntervalSec:    int(opts.SaveInterval / time.Second),
			RecordQueueSize:    opts.RecordQueueSize,
			DetectTimeoutMs:    int(opts.DetectTimeout / time.Millisecond),
			StorageTimeoutMs:   int(opts.StorageTimeout / time.Millisecond),
			RestoreCalibration: opts.RestoreCalibration,
		},
		Cameras: CamerasConfig{
			Frontal: CameraConfig{Enabled: true, Source: "0", Width: 640, Height: 480},
			Lateral: CameraConfig{Width: 640, Height: 480},
		},
		Storage: storage.Config{
			Driver:  storage.DriverBadger,
			DataDir: "data",
			DB: model.DBConfig{
				DSN:          defaultSqlDsn,
				MaxIdleConns: 10,
				MaxOpenConns: 20,
				MaxLifetime:  60,
			},
		},
		Triton: TritonConfig{
			ServerAddr: "127.0.0.1:8001",
			ModelName:  "pose",
			MinScore:   0.3,
		},
		Alert: AlertConfig{
			Bell:      true,
			TimeoutMs: int(opts.AlertTimeout / time.Millisecond),
			NSQ: NSQConfig{
				Addr:  "127.0.0.1:4150",
				Topic: "posture_alert",
			},
			Snapshot: SnapshotConfig{
				S3: alert.S3Config{
					Bucket:   "postureguard",
					Endpoint: "127.0.0.1:9000",
					Region:   "us-east-1",
				},
			},
		},
		Server: server.DefaultConfig(),
	}
}

var validate = validator.New()

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if !c.Cameras.Frontal.Enabled {
		return errors.New("invalid config: the frontal camera is required")
	}
	if c.Alert.Snapshot.Enabled && (c.Alert.Snapshot.S3.Endpoint == "" || c.Alert.Snapshot.S3.Bucket == "") {
		return errors.New("invalid config: alert snapshots need an s3 endpoint and bucket")
	}
	return nil
}

func (c *Config) EngineOptions() engine.Options {
	e := c.Engine
	return engine.Options{
		TickInterval:       time.Duration(e.TickIntervalMs) * time.Millisecond,
		CalibrationFrames:  e.CalibrationFrames,
		CalibrationMargin:  e.CalibrationMargin,
		MinBadDuration:     time.Duration(e.MinBadDurationMs) * time.Millisecond,
		SampleGap:          time.Duration(e.SampleGapMs) * time.Millisecond,
		AlertInterval:      time.Duration(e.AlertIntervalSec) * time.Second,
		AlertScope:         posture.AlertScope(e.AlertScope),
		AlertTimeout:       time.Duration(c.Alert.TimeoutMs) * time.Millisecond,
		SaveInterval:       time.Duration(e.SaveIntervalSec) * time.Second,
		RecordQueueSize:    e.RecordQueueSize,
		DetectTimeout:      time.Duration(e.DetectTimeoutMs) * time.Millisecond,
		StorageTimeout:     time.Duration(e.StorageTimeoutMs) * time.Millisecond,
		RestoreCalibration: e.RestoreCalibration,
	}
}

// ProducerOptions leaves zero fields for NewProducer to default.
func (c CameraConfig) ProducerOptions() camera.ProducerOptions {
	return camera.ProducerOptions{
		StopTimeout:   time.Duration(c.StopTimeoutMs) * time.Millisecond,
		RetryMaxDelay: time.Duration(c.RetryMaxDelayMs) * time.Millisecond,
	}
}

func (c TritonConfig) Options() landmark.TritonOptions {
	return landmark.TritonOptions{
		ServerAddr: c.ServerAddr,
		ModelName:  c.ModelName,
		MinScore:   c.MinScore,
	}
}

var reflector = jsonschema.Reflector{
	DoNotReference: true,
}

// Schema returns the JSON schema of the configuration file.
func Schema() ([]byte, error) {
	return json.MarshalIndent(reflector.Reflect(&Config{}), "", "  ")
}
