package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"postureguard/internal/stats"
)

var statsJSON bool

var statsCommand = &cobra.Command{
	Use:   "stats",
	Short: "Print posture statistics from the stored records",
	Run: func(cmd *cobra.Command, args []string) {
		conf := loadConfig(cmd)
		gw := openStorage(conf)
		defer gw.Close()

		svc := stats.NewService(gw)
		st, err := svc.Statistics(context.Background())
		if err != nil {
			logrus.Fatal("failed to compute statistics, ", err)
		}
		days, err := svc.Daily(context.Background())
		if err != nil {
			logrus.Fatal("failed to compute daily statistics, ", err)
		}

		if statsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(map[string]any{"statistics": st, "daily": days}); err != nil {
				logrus.Fatal(err)
			}
			return
		}
		printStatistics(st, days)
	},
}

func printStatistics(st *stats.Statistics, days []stats.DayCount) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "records\t%d\n", st.Total)
	fmt.Fprintf(w, "today\t%d\n", st.Today)
	fmt.Fprintf(w, "poor posture\t%d\n", st.PoorPosture)
	fmt.Fprintf(w, "frontal\t%d\n", st.PerCamera.Frontal)
	fmt.Fprintf(w, "lateral\t%d\n", st.PerCamera.Lateral)
	if !st.LastOccurrence.IsZero() {
		fmt.Fprintf(w, "last record\t%s\n", st.LastOccurrence.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintln(w)
	for _, d := range days {
		fmt.Fprintf(w, "%s\t%d\n", d.Date, d.Count)
	}
	if len(st.WeeklyTrend) > 0 {
		fmt.Fprintln(w)
		for _, wk := range st.WeeklyTrend {
			fmt.Fprintf(w, "%s\t%d\n", wk.Week, wk.Count)
		}
	}
}

func init() {
	statsCommand.Flags().BoolVar(&statsJSON, "json", false, "Print as JSON")
}
