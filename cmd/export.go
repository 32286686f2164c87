package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-cli/internal/export"
)

var (
	exportClientID string
	exportOutPath  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a client's leads and assets to an XLSX workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("export"); err != nil {
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

		return export.New(st).WriteWorkbook(ctx, exportClientID, exportOutPath)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportClientID, "client", "", "client ID (required)")
	exportCmd.Flags().StringVar(&exportOutPath, "out", "outreach.xlsx", "output workbook path")
	_ = exportCmd.MarkFlagRequired("client")
	rootCmd.AddCommand(exportCmd)
}
