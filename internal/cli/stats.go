package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/JreyForFun/Whispr/internal/backend"
	"github.com/JreyForFun/Whispr/internal/config"
	"github.com/JreyForFun/Whispr/internal/ui"
)

var (
	flagStatsDomain   string
	flagStatsInsecure bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show how many strangers are online",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStats(cmd.Context())
	},
}

func runStats(ctx context.Context) error {
	cfg, err := config.Load(config.Options{
		Domain:   flagStatsDomain,
		Insecure: flagStatsInsecure,
	})
	if err != nil {
		return err
	}

	stopSpinner := ui.RunSpinner("Fetching stats...")
	stats, err := backend.NewClient(cfg.APIBaseURL).Stats(ctx)
	stopSpinner()
	if err != nil {
		return err
	}

	ui.RenderStats(stats)
	return nil
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().StringVar(&flagStatsDomain, "domain", "", "Custom server domain")
	statsCmd.Flags().BoolVar(&flagStatsInsecure, "insecure", false, "Use http instead of https")
}
