package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"postureguard/internal/alert"
	"postureguard/internal/camera"
	"postureguard/internal/camera/opencv"
	"postureguard/internal/config"
	"postureguard/internal/engine"
	"postureguard/internal/landmark"
	"postureguard/internal/posture"
	"postureguard/internal/server"
	"postureguard/internal/storage"
	"postureguard/pkg/log"
)

const lastLateral = "last"

var (
	frontalSource string
	lateralSource string
)

var serveCommand = &cobra.Command{
	Use:   "serve",
	Short: "Start monitoring and the HTTP API",
	Run: func(cmd *cobra.Command, args []string) {
		runServe(loadConfig(cmd))
	},
}

func init() {
	serveCommand.Flags().StringVar(&frontalSource, "frontal", "", "Frontal camera device index or stream URL")
	serveCommand.Flags().StringVar(&lateralSource, "lateral", "", "Lateral camera as --lateral=ADDR; bare --lateral reuses the last address")
	serveCommand.Flags().Lookup("lateral").NoOptDefVal = lastLateral
}

// resolveCameras applies the command line overrides and remembers the
// lateral source for the next run.
func resolveCameras(ctx context.Context, conf *config.Config, gw storage.Gateway) {
	if frontalSource != "" {
		conf.Cameras.Frontal.Source = frontalSource
	}

	switch lateralSource {
	case "":
	case lastLateral:
		last, err := gw.LoadSetting(ctx, storage.SettingLastLateralSource, "")
		if err != nil {
			logrus.Fatal("failed to load last lateral source, ", err)
		}
		if last == "" {
			logrus.Fatal("--lateral given without an address and no lateral source was used before")
		}
		conf.Cameras.Lateral.Enabled = true
		conf.Cameras.Lateral.Source = last
	default:
		conf.Cameras.Lateral.Enabled = true
		conf.Cameras.Lateral.Source = lateralSource
	}

	if conf.Cameras.Lateral.Enabled {
		if err := gw.SaveSetting(ctx, storage.SettingLastLateralSource, conf.Cameras.Lateral.Source); err != nil {
			logrus.WithError(err).Warn("failed to remember lateral source")
		}
	}
}

func newProducer(role posture.CameraRole, cam config.CameraConfig, logger *logrus.Entry) *camera.Producer {
	return camera.NewProducer(role, cam.Source, opencv.Opener(cam.Width, cam.Height), cam.ProducerOptions(),
		log.WithComponent(logger, "camera"))
}

func newAlertSink(conf *config.Config, logger *logrus.Entry) (alert.Sink, func()) {
	sinks := alert.Multi{alert.NewLogSink(log.WithComponent(logger, "alert"))}
	cleanup := func() {}

	if conf.Alert.Bell {
		sinks = append(sinks, alert.NewBellSink(os.Stdout))
	}
	if conf.Alert.NSQ.Enabled {
		producer, err := alert.NewNSQProducer(conf.Alert.NSQ.Addr)
		if err != nil {
			logrus.Fatal("failed to create nsq producer, ", err)
		}
		cleanup = producer.Stop
		sinks = append(sinks, alert.NewNSQSink(producer, conf.Alert.NSQ.Topic, conf.Alert.Snapshot.Enabled))
	}
	if conf.Alert.Snapshot.Enabled {
		cli, err := alert.NewMinioClient(conf.Alert.Snapshot.S3)
		if err != nil {
			logrus.Fatal("failed to create minio client, ", err)
		}
		sinks = append(sinks, alert.NewSnapshotSink(cli, conf.Alert.Snapshot.S3.Bucket, opencv.EncodeJPEG))
	}
	return sinks, cleanup
}

func runServe(conf *config.Config) {
	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()
	logger := log.GetLogger(ctx)

	gw := openStorage(conf)
	defer gw.Close()

	resolveCameras(ctx, conf, gw)
	logrus.Infof("config: %+v", conf.Cameras)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := engine.NewMetrics(reg)

	provider, err := landmark.NewTritonProvider(conf.Triton.Options())
	if err != nil {
		logrus.Fatal("failed to create landmark provider, ", err)
	}
	readyCtx, readyCancel := context.WithTimeout(ctx, 5*time.Second)
	if err := provider.Ready(readyCtx); err != nil {
		logger.WithError(err).Warn("triton is not ready yet, frames will fail until it is")
	}
	readyCancel()

	sink, closeSink := newAlertSink(conf, logger)
	defer closeSink()

	sources := []engine.RoleSource{{
		Role:   posture.RoleFrontal,
		Source: newProducer(posture.RoleFrontal, conf.Cameras.Frontal, logger),
	}}
	if conf.Cameras.Lateral.Enabled {
		sources = append(sources, engine.RoleSource{
			Role:   posture.RoleLateral,
			Source: newProducer(posture.RoleLateral, conf.Cameras.Lateral, logger),
		})
	}

	eng, err := engine.New(conf.EngineOptions(), sources, provider, gw, sink, metrics, log.WithComponent(logger, "engine"))
	if err != nil {
		logrus.Fatal("failed to create engine, ", err)
	}
	if err := eng.Start(ctx); err != nil {
		logrus.Fatal("failed to start engine, ", err)
	}

	srv := server.NewServer(ctx, conf.Server, eng, gw, reg)
	go func() {
		if err := srv.Start(); err != nil {
			logrus.Fatal(err)
		}
	}()

	termChan := make(chan os.Signal, 1)
	signal.Notify(termChan, syscall.SIGINT, syscall.SIGTERM)

	<-termChan
	logrus.Infof("server is shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("server forced to shutdown")
	}
	if err := eng.Stop(); err != nil {
		logrus.WithError(err).Warn("engine stopped with errors")
	}
}
