package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/goHMS/internal/output"
	"github.com/MrEthical07/goHMS/metrics/export/prometheus"
)

func (a *app) dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show headline counts and occupancy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.requireSession(cmd.Context())
			if err != nil {
				return err
			}
			stats, err := client.Dashboard(cmd.Context())
			if err != nil {
				return describeError(err)
			}

			if a.printer.JSON() {
				return a.printer.WriteJSON(struct {
					Stats         any     `json:"stats"`
					OccupancyRate float64 `json:"occupancyRate"`
				}{stats, stats.OccupancyRate()})
			}

			a.printer.Header("Dashboard")
			t := output.NewTable(a.printer.Out(), []string{"METRIC", "COUNT"})
			t.AddRow([]string{"properties", strconv.Itoa(stats.Properties)})
			t.AddRow([]string{"units", strconv.Itoa(stats.Units)})
			t.AddRow([]string{"occupied units", strconv.Itoa(stats.OccupiedUnits)})
			t.AddRow([]string{"leases", strconv.Itoa(stats.Leases)})
			t.AddRow([]string{"active leases", strconv.Itoa(stats.ActiveLeases)})
			t.AddRow([]string{"tenants", strconv.Itoa(stats.Tenants)})
			t.AddRow([]string{"occupancy", fmt.Sprintf("%.1f%%", stats.OccupancyRate()*100)})
			return t.Render()
		},
	}
}

func (a *app) metricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Restore the session and print client metrics in Prometheus format",
		Long: `Restore the session and print the client counters it produced, in
Prometheus text format. Use the global --metrics flag to print the
counters of any other command.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.cfg.Metrics.Print = true
			client, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			// Printed here on stdout rather than by the post-run hook.
			a.cfg.Metrics.Print = false
			_, err = io.WriteString(a.printer.Out(), prometheus.NewPrometheusExporter(client).Render())
			return err
		},
	}
}
