package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/leadimport"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
)

var leadCmd = &cobra.Command{
	Use:   "lead",
	Short: "Manage leads",
}

var (
	leadClientID    string
	leadProfileRef  string
	leadFilePath    string
	leadMarker      string
	leadEmails      bool
	leadLandingPage bool
)

var leadAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a single lead",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		lead := &model.Lead{
			ClientID:        leadClientID,
			ProfileRef:      leadProfileRef,
			WantEmails:      leadEmails,
			WantLandingPage: leadLandingPage,
		}
		if err := st.CreateLead(ctx, lead); err != nil {
			return eris.Wrap(err, "create lead")
		}

		fmt.Println(lead.ID)
		return nil
	},
}

var leadImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Bulk import leads from a CSV or XLSX file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		if _, err := st.GetClient(ctx, leadClientID); err != nil {
			return eris.Wrap(err, "resolve client")
		}

		refs, err := leadimport.ReadFile(leadFilePath)
		if err != nil {
			return err
		}

		leads := make([]model.Lead, len(refs))
		for i, ref := range refs {
			leads[i] = model.Lead{
				ClientID:        leadClientID,
				ProfileRef:      ref,
				WantEmails:      leadEmails,
				WantLandingPage: leadLandingPage,
			}
		}

		inserted, err := st.BulkCreateLeads(ctx, leads)
		if err != nil {
			return eris.Wrap(err, "bulk create leads")
		}

		zap.L().Info("import complete",
			zap.String("file", leadFilePath),
			zap.Int("parsed", len(leads)),
			zap.Int("inserted", inserted),
			zap.Int("skipped", len(leads)-inserted),
		)
		return nil
	},
}

var leadListCmd = &cobra.Command{
	Use:   "list",
	Short: "List leads",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		filter := store.LeadFilter{ClientID: leadClientID}
		if leadMarker != "" {
			m := model.StageMarker(leadMarker)
			if !m.Valid() {
				return eris.Errorf("unknown stage marker %q", leadMarker)
			}
			filter.Marker = m
		}

		leads, err := st.ListLeads(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "list leads")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tPROFILE\tSTAGE\tNAME")
		for _, l := range leads {
			var name string
			if l.Enrichment != nil {
				name = l.Enrichment.DisplayName()
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", l.ID, l.ProfileRef, l.StageMarker, name)
		}
		return w.Flush()
	},
}

var leadStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show lead counts by stage for a client",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		counts, err := st.CountLeadsByStage(ctx, leadClientID)
		if err != nil {
			return eris.Wrap(err, "count leads")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "STAGE\tLEADS")
		for _, marker := range model.AllStageMarkers {
			n := counts[marker]
			if n == 0 {
				continue
			}
			label := string(marker)
			if marker == model.StageNone {
				label = "(new)"
			}
			fmt.Fprintf(w, "%s\t%d\n", label, n)
		}
		return w.Flush()
	},
}

func init() {
	leadAddCmd.Flags().StringVar(&leadClientID, "client", "", "client ID (required)")
	leadAddCmd.Flags().StringVar(&leadProfileRef, "profile", "", "LinkedIn profile URL (required)")
	leadAddCmd.Flags().BoolVar(&leadEmails, "emails", true, "generate outreach emails")
	leadAddCmd.Flags().BoolVar(&leadLandingPage, "landing-page", true, "generate a landing page")
	_ = leadAddCmd.MarkFlagRequired("client")
	_ = leadAddCmd.MarkFlagRequired("profile")

	leadImportCmd.Flags().StringVar(&leadClientID, "client", "", "client ID (required)")
	leadImportCmd.Flags().StringVar(&leadFilePath, "file", "", "path to CSV or XLSX file (required)")
	leadImportCmd.Flags().BoolVar(&leadEmails, "emails", true, "generate outreach emails")
	leadImportCmd.Flags().BoolVar(&leadLandingPage, "landing-page", true, "generate a landing page")
	_ = leadImportCmd.MarkFlagRequired("client")
	_ = leadImportCmd.MarkFlagRequired("file")

	leadListCmd.Flags().StringVar(&leadClientID, "client", "", "filter by client ID")
	leadListCmd.Flags().StringVar(&leadMarker, "stage", "", "filter by stage marker")

	leadStatusCmd.Flags().StringVar(&leadClientID, "client", "", "client ID (required)")
	_ = leadStatusCmd.MarkFlagRequired("client")

	leadCmd.AddCommand(leadAddCmd, leadImportCmd, leadListCmd, leadStatusCmd)
	rootCmd.AddCommand(leadCmd)
}
