package cmd

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"postureguard/internal/server"
)

var (
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCommand = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the HTTP API",
	Run: func(cmd *cobra.Command, args []string) {
		conf := loadConfig(cmd)
		if conf.Server.JwtSecret == "" {
			logrus.Fatal("server.jwtSecret is not set, the API does not require tokens")
		}
		token, err := server.GenToken(conf.Server.JwtSecret, tokenSubject, tokenTTL)
		if err != nil {
			logrus.Fatal(err)
		}
		fmt.Println(token)
	},
}

func init() {
	tokenCommand.Flags().StringVar(&tokenSubject, "subject", "cli", "Token subject")
	tokenCommand.Flags().DurationVar(&tokenTTL, "ttl", 7*24*time.Hour, "Token lifetime")
}
