package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	appfiscal "3tcapital/ms_fiscal_core/internal/application/fiscal"
	ctxutil "3tcapital/ms_fiscal_core/internal/infrastructure/context"
)

// pendingReconciler is the engine operation the command drives.
type pendingReconciler interface {
	ReconcilePending(ctx context.Context, tenantID string, limit int) ([]appfiscal.DocumentResult, error)
}

func newReconcileCmd(c *cli) *cobra.Command {
	var (
		tenantID string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Query the provider for every submitted document of a tenant",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				limit = c.cfg.Reconcile.BatchSize
			}

			pool, err := openPool(cmd.Context(), c.cfg.Database, c.log)
			if err != nil {
				return err
			}
			defer pool.Close()

			return reconcilePending(cmd.Context(), newEngine(c.cfg, pool, c.log), tenantID, limit, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant whose submitted documents are reconciled (required)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum documents to reconcile (default RECONCILE_BATCH_SIZE)")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

// reconcilePending runs one sweep and prints a line per document. It fails
// when any document could not be reconciled.
func reconcilePending(ctx context.Context, engine pendingReconciler, tenantID string, limit int, out io.Writer) error {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return errors.New("--tenant is required")
	}
	ctx = ctxutil.WithTenantID(ctx, tenantID)

	results, err := engine.ReconcilePending(ctx, tenantID, limit)
	failed := printResults(out, results)
	if err != nil {
		return fmt.Errorf("reconcile pending documents: %w", err)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed to reconcile", failed, len(results))
	}
	return nil
}

// printResults writes a table of results and returns how many failed.
func printResults(out io.Writer, results []appfiscal.DocumentResult) int {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "REFERENCE\tSTATUS\tMESSAGE")

	failed := 0
	for _, res := range results {
		ref, status := "-", "-"
		if res.Document != nil {
			ref, status = res.Document.ReferenceCode, string(res.Document.Status)
		}
		msg := res.ErrorMessage
		if !res.Success {
			failed++
		} else if res.Document != nil {
			msg = res.Document.ErrorMessage
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", ref, status, msg)
	}
	tw.Flush()
	fmt.Fprintf(out, "%d reconciled, %d failed\n", len(results)-failed, failed)
	return failed
}
