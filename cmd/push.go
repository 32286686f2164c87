package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/push"
	"github.com/sells-group/outreach-cli/pkg/instantly"
)

var pushListID string

var pushCmd = &cobra.Command{
	Use:   "push <lead-id>...",
	Short: "Push finished leads to Instantly",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("push"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		ic := instantly.NewClient(cfg.Instantly.Key,
			instantly.WithBaseURL(cfg.Instantly.BaseURL))
		pusher := push.New(st, ic, cfg.Instantly.ListID)

		var failed int
		for _, leadID := range args {
			result, err := pusher.PushLead(ctx, leadID, pushListID)
			if err != nil {
				failed++
				zap.L().Error("push failed",
					zap.String("lead_id", leadID),
					zap.Error(err),
				)
				continue
			}
			zap.L().Info("push complete",
				zap.String("lead_id", leadID),
				zap.String("instantly_id", result.ID),
			)
		}

		if failed > 0 {
			return eris.Errorf("%d of %d pushes failed", failed, len(args))
		}
		return nil
	},
}

func init() {
	pushCmd.Flags().StringVar(&pushListID, "list", "", "Instantly list ID (default from config)")
	rootCmd.AddCommand(pushCmd)
}
