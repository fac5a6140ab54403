package cmd

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var settingsCommand = &cobra.Command{
	Use:   "settings",
	Short: "Read or write stored settings",
}

var settingsGetCommand = &cobra.Command{
	Use:   "get KEY",
	Short: "Print a stored setting",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		conf := loadConfig(cmd)
		gw := openStorage(conf)
		defer gw.Close()

		v, err := gw.LoadSetting(context.Background(), args[0], "")
		if err != nil {
			logrus.Fatal(err)
		}
		fmt.Println(v)
	},
}

var settingsSetCommand = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Store a setting",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		conf := loadConfig(cmd)
		gw := openStorage(conf)
		defer gw.Close()

		if err := gw.SaveSetting(context.Background(), args[0], args[1]); err != nil {
			logrus.Fatal(err)
		}
	},
}

func init() {
	settingsCommand.AddCommand(settingsGetCommand)
	settingsCommand.AddCommand(settingsSetCommand)
}
