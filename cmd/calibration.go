package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"postureguard/internal/posture"
)

var calibrationCommand = &cobra.Command{
	Use:   "calibration",
	Short: "Inspect or discard saved calibration profiles",
}

var calibrationShowCommand = &cobra.Command{
	Use:       "show [frontal|lateral]",
	Short:     "Print saved calibration profiles",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{string(posture.RoleFrontal), string(posture.RoleLateral)},
	Run: func(cmd *cobra.Command, args []string) {
		roles := rolesFromArgs(args)
		conf := loadConfig(cmd)
		gw := openStorage(conf)
		defer gw.Close()

		profiles := make(map[posture.CameraRole]*posture.CalibrationProfile)
		for _, role := range roles {
			p, err := gw.LoadCalibration(context.Background(), role)
			if err != nil {
				logrus.Fatalf("failed to load %s calibration, %v", role, err)
			}
			profiles[role] = p
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(profiles); err != nil {
			logrus.Fatal(err)
		}
	},
}

var calibrationResetCommand = &cobra.Command{
	Use:   "reset [frontal|lateral]",
	Short: "Delete saved calibration profiles so the next start calibrates again",
	Long: `Delete saved calibration profiles so the next start calibrates again.
A running server keeps its current band; use POST /api/v1/calibration/reset for it.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		roles := rolesFromArgs(args)
		conf := loadConfig(cmd)
		gw := openStorage(conf)
		defer gw.Close()

		for _, role := range roles {
			if err := gw.DeleteCalibration(context.Background(), role); err != nil {
				logrus.Fatalf("failed to delete %s calibration, %v", role, err)
			}
			fmt.Printf("%s calibration deleted\n", role)
		}
	},
}

func rolesFromArgs(args []string) []posture.CameraRole {
	if len(args) == 0 {
		return posture.Roles
	}
	role, err := posture.ParseRole(args[0])
	if err != nil {
		logrus.Fatal(err)
	}
	return []posture.CameraRole{role}
}

func init() {
	calibrationCommand.AddCommand(calibrationShowCommand)
	calibrationCommand.AddCommand(calibrationResetCommand)
}
