package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"postureguard/internal/alert"
	"postureguard/internal/consumer"
	"postureguard/pkg/log"
)

var alertsNSQDAddrs []string

var alertsCommand = &cobra.Command{
	Use:   "alerts",
	Short: "Work with published alerts",
}

var alertsTailCommand = &cobra.Command{
	Use:   "tail",
	Short: "Print alerts published to NSQ as they arrive",
	Run: func(cmd *cobra.Command, args []string) {
		conf := loadConfig(cmd)
		addrs := alertsNSQDAddrs
		if len(addrs) == 0 {
			addrs = []string{conf.Alert.NSQ.Addr}
		}

		c, err := consumer.NewConsumer(consumer.Config{
			NSQDAddrs: addrs,
			Topic:     conf.Alert.NSQ.Topic,
		}, func(ctx context.Context, msg *alert.Message) error {
			_, err := fmt.Println(consumer.FormatLine(msg))
			return err
		}, log.NewLogger())
		if err != nil {
			logrus.Fatalf("Failed to create consumer: %v", err)
		}
		if err := c.Start(); err != nil {
			logrus.Fatal(err)
		}

		termChan := make(chan os.Signal, 1)
		signal.Notify(termChan, syscall.SIGINT, syscall.SIGTERM)

		<-termChan
		c.Stop()
	},
}

func init() {
	alertsTailCommand.Flags().StringSliceVar(&alertsNSQDAddrs, "nsqd", nil, "nsqd addresses, defaults to alert.nsq.addr")
	alertsCommand.AddCommand(alertsTailCommand)
}
