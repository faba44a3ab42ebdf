package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"pmgmt/services/store"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"

	cliActor = "cli"
)

// hostRow is the CLI view of a host.
type hostRow struct {
	ID        string     `json:"id" yaml:"id"`
	Hostname  string     `json:"hostname" yaml:"hostname"`
	APIKey    string     `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	CreatedAt time.Time  `json:"created_at" yaml:"created_at"`
	LastSeen  *time.Time `json:"last_seen" yaml:"last_seen"`
}

func toHostRow(h store.Host) hostRow {
	return hostRow{
		ID:        h.ID.String(),
		Hostname:  h.Hostname,
		APIKey:    h.APIKey,
		CreatedAt: h.CreatedAt,
		LastSeen:  h.LastSeen,
	}
}

func newHostsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hosts",
		Short: "Manage registered hosts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newHostsAddCommand())
	cmd.AddCommand(newHostsListCommand())
	cmd.AddCommand(newHostsShowCommand())
	cmd.AddCommand(newHostsRotateKeyCommand())
	cmd.AddCommand(newHostsDeleteCommand())
	return cmd
}

// withStore opens the configured database for a single command. Changes are
// attributed to the "cli" actor.
func withStore(ctx context.Context, fn func(context.Context, *store.Store) error) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	database, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	s, err := store.New(database)
	if err != nil {
		return err
	}
	return fn(store.WithActor(ctx, cliActor), s)
}

func newHostsAddCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "add <hostname>",
		Short: "Register a host and print its API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			return withStore(ctx, func(ctx context.Context, s *store.Store) error {
				host, err := s.CreateHost(ctx, args[0])
				if err != nil {
					return err
				}
				return writeHosts(cmd.OutOrStdout(), output, []store.Host{host}, true)
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format: table, json or yaml")
	return cmd
}

func newHostsListCommand() *cobra.Command {
	var (
		output   string
		showKeys bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered hosts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			return withStore(ctx, func(ctx context.Context, s *store.Store) error {
				hosts, err := s.ListHosts(ctx)
				if err != nil {
					return err
				}
				return writeHosts(cmd.OutOrStdout(), output, hosts, showKeys)
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format: table, json or yaml")
	cmd.Flags().BoolVar(&showKeys, "show-keys", false, "Include API keys in the output")
	return cmd
}

func newHostsShowCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "show <host-id>",
		Short: "Show a host and the packages from its latest report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseHostID(args[0])
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			return withStore(ctx, func(ctx context.Context, s *store.Store) error {
				detail, err := s.HostDetail(ctx, id)
				if err != nil {
					return err
				}
				detail.Host.APIKey = ""
				return writeDetail(cmd.OutOrStdout(), output, detail)
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format: table or json")
	return cmd
}

func newHostsRotateKeyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rotate-key <host-id>",
		Short: "Issue a new API key for a host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseHostID(args[0])
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			return withStore(ctx, func(ctx context.Context, s *store.Store) error {
				host, err := s.RotateAPIKey(ctx, id)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), host.APIKey)
				return nil
			})
		},
	}
}

func newHostsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <host-id>",
		Short: "Delete a host and all of its reports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseHostID(args[0])
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			return withStore(ctx, func(ctx context.Context, s *store.Store) error {
				if err := s.DeleteHost(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
				return nil
			})
		},
	}
}

func parseHostID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid host id %q: %w", raw, err)
	}
	return id, nil
}

func writeHosts(w io.Writer, format string, hosts []store.Host, showKeys bool) error {
	rows := make([]hostRow, 0, len(hosts))
	for _, h := range hosts {
		row := toHostRow(h)
		if !showKeys {
			row.APIKey = ""
		}
		rows = append(rows, row)
	}

	switch format {
	case outputJSON:
		return writeJSON(w, rows)
	case outputYAML:
		return yaml.NewEncoder(w).Encode(rows)
	case outputTable, "":
		return writeHostsTable(w, rows, showKeys, time.Now())
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

func writeHostsTable(w io.Writer, rows []hostRow, showKeys bool, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if showKeys {
		fmt.Fprintln(tw, "ID\tHOSTNAME\tLAST SEEN\tAPI KEY")
	} else {
		fmt.Fprintln(tw, "ID\tHOSTNAME\tLAST SEEN")
	}
	for _, r := range rows {
		lastSeen := "never"
		if r.LastSeen != nil {
			lastSeen = humanize.RelTime(*r.LastSeen, now, "ago", "from now")
		}
		if showKeys {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.Hostname, lastSeen, r.APIKey)
		} else {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", r.ID, r.Hostname, lastSeen)
		}
	}
	return tw.Flush()
}

func writeDetail(w io.Writer, format string, detail store.HostDetail) error {
	switch format {
	case outputJSON:
		return writeJSON(w, detail)
	case outputTable, "":
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}

	fmt.Fprintf(w, "Host: %s\n", detail.Host.Hostname)
	fmt.Fprintf(w, "ID: %s\n", detail.Host.ID)
	if detail.Host.LastSeen != nil {
		fmt.Fprintf(w, "Last Seen: %s\n", detail.Host.LastSeen.UTC().Format(time.RFC3339))
	} else {
		fmt.Fprintln(w, "Last Seen: never")
	}

	run := detail.LatestRun
	if run == nil {
		fmt.Fprintln(w, "\nNo reports yet")
		return nil
	}

	fmt.Fprintf(w, "\nLatest report %s (%s %s, %s)\n",
		run.Timestamp.UTC().Format(time.RFC3339), run.DistributionName, run.DistributionVersion, run.PackageManager)
	fmt.Fprintf(w, "Updates: %d total, %d security\n\n", run.TotalUpdates, run.SecurityUpdates)
	if len(run.Packages) == 0 {
		fmt.Fprintln(w, "No pending updates")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PACKAGE\tCURRENT\tNEW\tSECURITY\tSIZE")
	for _, p := range run.Packages {
		security := ""
		if p.IsSecurityUpdate {
			security = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.Name, p.CurrentVersion, p.Version, security, formatSize(p.Size))
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatSize renders a byte count for humans and passes anything else through.
func formatSize(s *string) string {
	if s == nil {
		return ""
	}
	n, err := strconv.ParseUint(*s, 10, 64)
	if err != nil {
		return *s
	}
	return humanize.Bytes(n)
}
