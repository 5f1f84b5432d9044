// Command qcboard is a terminal client for a running QCBoard server. It keeps
// the Procore user between runs the same way the web dashboard does.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/QCBoard/internal/session"
)

var (
	serverURL string
	userID    string
	projectID string
	asJSON    bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "qcboard: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "qcboard",
		Short:        "QCBoard dashboard client",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&serverURL, "server", "s", envOr("QCBOARD_SERVER", "http://localhost:8080"), "QCBoard server base URL")
	cmd.PersistentFlags().StringVarP(&userID, "user-id", "u", "", "Procore user id (remembered for later runs)")
	cmd.PersistentFlags().StringVarP(&projectID, "project", "p", "", "Scope to a project id")
	cmd.PersistentFlags().BoolVar(&asJSON, "json", false, "Print raw JSON")
	cmd.AddCommand(
		newStatsCmd(),
		newInsightsCmd(),
		newSummaryCmd(),
		newProjectsCmd(),
		newProcoreCmd(),
		newLinkCmd(),
	)
	return cmd
}

// startSession resolves the user and loads the connection state.
func startSession(ctx context.Context) (*session.Reconciler, error) {
	persister, err := session.DefaultPersister()
	if err != nil {
		return nil, err
	}
	client := session.NewHTTPClient(serverURL)
	rec := session.NewReconciler(client, persister, nil)
	if err := rec.Start(ctx, userID); err != nil {
		return nil, err
	}
	if projectID != "" {
		rec.SelectProject(projectID)
	}
	return rec, nil
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show dashboard statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := startSession(cmd.Context())
			if err != nil {
				return err
			}
			stats, err := rec.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), stats)
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintf(tw, "Projects\t%d (%d active)\n", stats.TotalProjects, stats.ActiveProjects)
			fmt.Fprintf(tw, "Submittals\t%d (%d pending review, %d approved today)\n", stats.TotalSubmittals, stats.PendingReview, stats.ApprovedToday)
			fmt.Fprintf(tw, "Open RFIs\t%d (%d overdue)\n", stats.OpenRFIs, stats.OverdueRFIs)
			fmt.Fprintf(tw, "Scheduled inspections\t%d\n", stats.ScheduledInspections)
			fmt.Fprintf(tw, "Pass rate\t%d%%\n", stats.PassRate)
			fmt.Fprintf(tw, "Insights\t%d (%d critical)\n", stats.AIInsightsCount, stats.CriticalAlerts)
			return tw.Flush()
		},
	}
}

func newInsightsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "insights",
		Short: "List the newest insights",
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := startSession(cmd.Context())
			if err != nil {
				return err
			}
			insights, err := rec.Insights(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), insights)
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tSEVERITY\tTYPE\tRESOLVED\tTITLE")
			for _, in := range insights {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", in.ID, in.Severity, in.Type, in.Resolved, in.Title)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of insights (0 for all)")
	return cmd
}

func newSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show the selected project's dashboard summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := startSession(cmd.Context())
			if err != nil {
				return err
			}
			summary, err := rec.Summary(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), summary)
		},
	}
}

func newProjectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := startSession(cmd.Context())
			if err != nil {
				return err
			}
			projects, err := rec.Projects(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), projects)
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tCOMPANY\tOPEN RFIS\tPENDING SUBMITTALS")
			for _, p := range projects {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\n", p.ID, p.Name, p.Status, p.CompanyID, p.OpenRFIs, p.PendingSubmittals)
			}
			return tw.Flush()
		},
	}
}

func newProcoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "procore",
		Short: "Manage the Procore connection",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Show the connection state",
			RunE: func(cmd *cobra.Command, args []string) error {
				rec, err := startSession(cmd.Context())
				if err != nil {
					return err
				}
				if rec.Context().Anonymous() {
					fmt.Fprintln(cmd.OutOrStdout(), "not connected")
					return nil
				}
				return printJSON(cmd.OutOrStdout(), rec.Connection())
			},
		},
		&cobra.Command{
			Use:   "connect",
			Short: "Print the URL that starts the Procore OAuth flow",
			RunE: func(cmd *cobra.Command, args []string) error {
				fmt.Fprintln(cmd.OutOrStdout(), session.NewHTTPClient(serverURL).AuthorizeURL())
				return nil
			},
		},
		&cobra.Command{
			Use:   "sync",
			Short: "Import companies and projects from Procore",
			RunE: func(cmd *cobra.Command, args []string) error {
				rec, err := startSession(cmd.Context())
				if err != nil {
					return err
				}
				if err := rec.Sync(cmd.Context()); err != nil {
					return err
				}
				conn := rec.Connection()
				fmt.Fprintf(cmd.OutOrStdout(), "synced, %d projects linked\n", conn.ProjectsLinked)
				return nil
			},
		},
		&cobra.Command{
			Use:   "disconnect",
			Short: "Disconnect the active company and forget the user",
			RunE: func(cmd *cobra.Command, args []string) error {
				rec, err := startSession(cmd.Context())
				if err != nil {
					return err
				}
				if err := rec.Disconnect(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "disconnected")
				return nil
			},
		},
		&cobra.Command{
			Use:   "companies",
			Short: "List companies available to the user",
			RunE: func(cmd *cobra.Command, args []string) error {
				rec, err := startSession(cmd.Context())
				if err != nil {
					return err
				}
				companies, err := rec.Companies(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(cmd.OutOrStdout(), companies)
				}
				tw := newTable(cmd.OutOrStdout())
				fmt.Fprintln(tw, "ID\tPROCORE ID\tNAME\tACTIVE")
				for _, c := range companies {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", c.ID, c.ProcoreID, c.Name, c.IsActive)
				}
				return tw.Flush()
			},
		},
		&cobra.Command{
			Use:   "switch <companyId>",
			Short: "Make a company the active one",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				rec, err := startSession(cmd.Context())
				if err != nil {
					return err
				}
				if err := rec.SwitchCompany(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "active company %s\n", rec.Connection().ActiveCompanyID)
				return nil
			},
		},
	)
	return cmd
}

func newLinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "link",
		Short: "Print a dashboard link that reopens the current context",
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := startSession(cmd.Context())
			if err != nil {
				return err
			}
			q := rec.DeepLink()
			link := serverURL + "/"
			if len(q) > 0 {
				link += "?" + q.Encode()
			}
			fmt.Fprintln(cmd.OutOrStdout(), link)
			return nil
		},
	}
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
