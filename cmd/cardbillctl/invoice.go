package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"cardbill/internal/core"
	"cardbill/internal/export"
	"cardbill/internal/log"
)

func newInvoiceCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "invoice", Short: "Inspect and export monthly invoices"}

	show := &cobra.Command{
		Use:   "show MONTH",
		Short: "Print every card invoice of a month",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			month, err := core.ParseMonth(args[0])
			if err != nil {
				return err
			}
			b, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			ov, err := b.Purchases.GetInvoicesForMonth(cmd.Context(), month)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CARD\tBANK\tDUE\tTOTAL")
			for _, ci := range ov.Invoices {
				fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", ci.Card.ID, ci.Card.Bank, ci.Card.DueDay, ci.Invoice.Total)
			}
			fmt.Fprintf(tw, "\t\t\t%s\n", ov.Total)
			return tw.Flush()
		},
	}

	var (
		cardID int64
		output string
	)
	exp := &cobra.Command{
		Use:   "export MONTH",
		Short: "Write a month's installments as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			month, err := core.ParseMonth(args[0])
			if err != nil {
				return err
			}
			b, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			if cardID != 0 {
				if _, err := b.Catalog.GetCard(cmd.Context(), cardID); err != nil {
					return err
				}
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				defer func() {
					if cerr := f.Close(); err == nil {
						err = cerr
					}
				}()
				w = f
			}
			n, err := export.Month(cmd.Context(), b.Store, w, month, cardID)
			if err != nil {
				return err
			}
			a.logger.Info("Invoice export written", log.FieldMonth, month.String(), log.FieldCount, n)
			return nil
		},
	}
	exp.Flags().Int64Var(&cardID, "card", 0, "only this card")
	exp.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")

	cmd.AddCommand(show, exp)
	return cmd
}
