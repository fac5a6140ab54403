package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"postureguard/internal/config"
)

var configCommand = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers",
}

var configSchemaCommand = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of the config file",
	Run: func(cmd *cobra.Command, args []string) {
		data, err := config.Schema()
		if err != nil {
			logrus.Fatal(err)
		}
		os.Stdout.Write(append(data, '\n'))
	},
}

var configShowCommand = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Run: func(cmd *cobra.Command, args []string) {
		data, err := loadConfig(cmd).YAML()
		if err != nil {
			logrus.Fatal(err)
		}
		os.Stdout.Write(data)
	},
}

func init() {
	configCommand.AddCommand(configSchemaCommand)
	configCommand.AddCommand(configShowCommand)
}
