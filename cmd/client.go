package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/stage"
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Manage clients",
}

var (
	clientName     string
	clientWebsite  string
	clientIndustry string
	clientCalendar string
)

var clientAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a client",
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

		c := &model.Client{
			Name:        clientName,
			Website:     clientWebsite,
			Industry:    clientIndustry,
			CalendarURL: clientCalendar,
		}
		if err := st.CreateClient(ctx, c); err != nil {
			return eris.Wrap(err, "create client")
		}

		fmt.Println(c.ID)
		return nil
	},
}

var clientListCmd = &cobra.Command{
	Use:   "list",
	Short: "List clients",
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

		clients, err := st.ListClients(ctx)
		if err != nil {
			return eris.Wrap(err, "list clients")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tWEBSITE\tPROFILE")
		for _, c := range clients {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.ID, c.Name, c.Website, c.ProfileStatus)
		}
		return w.Flush()
	},
}

var clientShowCmd = &cobra.Command{
	Use:   "show <client-id>",
	Short: "Show a client as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		c, err := st.GetClient(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "get client")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(c)
	},
}

var clientProfileCmd = &cobra.Command{
	Use:   "profile <client-id>",
	Short: "Research the client and fill its outreach profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "pipeline")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Substrate.InvokeAndWait(ctx, stage.ClientProfile,
			stage.ClientPayload{ClientID: args[0]}, cfg.Pipeline.ResearchTimeout())
		if err != nil {
			return eris.Wrap(err, "profile client")
		}
		if !res.OK {
			return eris.Errorf("profile client: %s", res.Err)
		}

		zap.L().Info("client profiled", zap.String("client_id", args[0]))
		fmt.Println(string(res.Output))
		return nil
	},
}

func init() {
	clientAddCmd.Flags().StringVar(&clientName, "name", "", "client name (required)")
	clientAddCmd.Flags().StringVar(&clientWebsite, "website", "", "client website")
	clientAddCmd.Flags().StringVar(&clientIndustry, "industry", "", "client industry")
	clientAddCmd.Flags().StringVar(&clientCalendar, "calendar", "", "booking calendar URL")
	_ = clientAddCmd.MarkFlagRequired("name")

	clientCmd.AddCommand(clientAddCmd, clientListCmd, clientShowCmd, clientProfileCmd)
	rootCmd.AddCommand(clientCmd)
}
