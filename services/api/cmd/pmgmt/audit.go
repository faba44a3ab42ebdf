package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"pmgmt/services/store"
)

func newAuditCommand() *cobra.Command {
	var (
		output string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent host management changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			return withStore(ctx, func(ctx context.Context, s *store.Store) error {
				entries, err := s.AuditLog(ctx, limit)
				if err != nil {
					return err
				}
				return writeAudit(cmd.OutOrStdout(), output, entries)
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format: table, json or yaml")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of entries")
	return cmd
}

func writeAudit(w io.Writer, format string, entries []store.AuditEntry) error {
	switch format {
	case outputJSON:
		return writeJSON(w, entries)
	case outputYAML:
		return yaml.NewEncoder(w).Encode(entries)
	case outputTable, "":
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "AT\tACTOR\tACTION\tHOST ID\tHOSTNAME")
	for _, e := range entries {
		hostname, _ := e.Details["hostname"].(string)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.At.UTC().Format(time.RFC3339), e.Actor, e.Action, e.Obj, hostname)
	}
	return tw.Flush()
}
