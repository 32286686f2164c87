package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/substrate"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run a Temporal worker serving the stage task queue",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		// Workers always execute stages in-process; --temporal only changes
		// how other commands submit work.
		useTemporal = false
		env, err := initEnv(ctx, "pipeline")
		if err != nil {
			return err
		}
		defer env.Close()

		tc, err := substrate.DialTemporal(substrate.TemporalConfig{
			HostPort:  cfg.Temporal.HostPort,
			Namespace: cfg.Temporal.Namespace,
			TaskQueue: cfg.Temporal.TaskQueue,
		})
		if err != nil {
			return err
		}
		defer tc.Close()

		w := substrate.NewWorker(tc.TemporalClient(), tc.TaskQueue(), env.Registry)

		zap.L().Info("worker starting",
			zap.String("host_port", cfg.Temporal.HostPort),
			zap.String("task_queue", cfg.Temporal.TaskQueue),
		)
		if err := w.Run(worker.InterruptCh()); err != nil {
			return eris.Wrap(err, "run worker")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
