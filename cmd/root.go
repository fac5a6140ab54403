package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"postureguard/internal/config"
	"postureguard/internal/storage"
	"postureguard/internal/version"
	"postureguard/pkg/log"
)

var (
	logLevel   string
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   version.APP,
	Short: "postureguard watches your posture through one or two cameras",
	Long: `Calibrates your upright posture, then alerts when the neck or shoulder
angle stays out of the calibrated band.
Version: ` + version.VERSION + `/` + version.COMMIT,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.InitLog(logLevel)
	},
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file; a missing file falls back to defaults
// unless --config was given explicitly.
func loadConfig(cmd *cobra.Command) *config.Config {
	explicit := cmd.Flags().Changed("config")
	conf, err := config.InitConfig(configFile, !explicit)
	if err != nil {
		logrus.Fatal("initConfig error, ", err.Error())
	}
	return conf
}

func openStorage(conf *config.Config) storage.Gateway {
	gw, err := storage.Open(conf.Storage, log.NewLogger())
	if err != nil {
		logrus.Fatal("failed to open storage, ", err)
	}
	return gw
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "Log level (debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "etc/config.yaml", "Path to config file")

	rootCmd.AddCommand(serveCommand)
	rootCmd.AddCommand(updateDBCommand)
	rootCmd.AddCommand(statsCommand)
	rootCmd.AddCommand(calibrationCommand)
	rootCmd.AddCommand(settingsCommand)
	rootCmd.AddCommand(tokenCommand)
	rootCmd.AddCommand(configCommand)
	rootCmd.AddCommand(alertsCommand)
}
