package main

import (
	"sync/atomic"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/outreach-cli/internal/store"
)

var runClientID string

var runCmd = &cobra.Command{
	Use:   "run [lead-id...]",
	Short: "Run the outreach pipeline for leads",
	Long:  "Runs enrichment, research, and asset generation for the given leads, resuming from each lead's stage marker. With --client, runs every lead of that client.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if len(args) == 0 && runClientID == "" {
			return eris.New("pass lead IDs or --client")
		}

		env, err := initEnv(ctx, "pipeline")
		if err != nil {
			return err
		}
		defer env.Close()

		leadIDs := args
		if runClientID != "" {
			leads, err := env.Store.ListLeads(ctx, store.LeadFilter{ClientID: runClientID})
			if err != nil {
				return eris.Wrap(err, "list leads")
			}
			for _, l := range leads {
				leadIDs = append(leadIDs, l.ID)
			}
		}

		if len(leadIDs) == 0 {
			zap.L().Info("no leads to run")
			return nil
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(cfg.Import.MaxConcurrent)

		var failed atomic.Int32
		for _, leadID := range leadIDs {
			g.Go(func() error {
				summary, err := env.Runner.Run(gctx, leadID)
				if err != nil {
					failed.Add(1)
					zap.L().Error("pipeline run failed",
						zap.String("lead_id", leadID),
						zap.Error(err),
					)
					// Keep the batch going; per-lead failures are reported
					// at the end.
					return nil
				}
				zap.L().Info("pipeline run finished",
					zap.String("lead_id", leadID),
					zap.Bool("enrichment_ran", summary.EnrichmentRan),
					zap.Bool("research_ran", summary.ResearchRan),
					zap.Bool("emails_generated", summary.EmailsGenerated),
					zap.Bool("landing_page_generated", summary.LandingPageGenerated),
				)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		if n := failed.Load(); n > 0 {
			return eris.Errorf("%d of %d pipeline runs failed", n, len(leadIDs))
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runClientID, "client", "", "run every lead of this client")
	rootCmd.AddCommand(runCmd)
}
