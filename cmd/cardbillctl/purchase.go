package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"cardbill/internal/core"
)

// today is the calendar date of now in its own location.
func today(now time.Time) core.Date {
	y, m, d := now.Date()
	return core.NewDate(y, int(m), d)
}

func newPurchaseCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "purchase", Short: "Record and remove purchases"}

	var (
		in      core.PurchaseInput
		value   string
		date    string
		cardArg int64
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Record a purchase, split into monthly installments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			total, err := core.ParseMoney(value)
			if err != nil {
				return fmt.Errorf("invalid --value %q: %w", value, err)
			}
			purchased := today(time.Now())
			if date != "" {
				if purchased, err = core.ParseDate(date); err != nil {
					return err
				}
			}
			in.CardID = cardArg
			in.TotalValue = total
			in.PurchaseDate = purchased

			b, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			first, err := b.Purchases.CreatePurchase(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purchase %d created: %d x %s, first invoice %s\n",
				first.ID, first.TotalInstallments, first.InstallmentValue, first.InvoiceMonth)
			return nil
		},
	}
	add.Flags().Int64Var(&cardArg, "card", 0, "card id")
	add.Flags().StringVar(&in.Name, "name", "", "purchase description")
	add.Flags().StringVar(&in.Category, "category", "", "category name")
	add.Flags().StringVar(&value, "value", "", "total value, e.g. 1234.56")
	add.Flags().IntVar(&in.TotalInstallments, "installments", 1, "number of installments")
	add.Flags().StringVar(&date, "date", "", "purchase date YYYY-MM-DD (default today)")
	_ = add.MarkFlagRequired("card")
	_ = add.MarkFlagRequired("name")
	_ = add.MarkFlagRequired("value")

	var filterCard int64
	var filterMonth string
	list := &cobra.Command{
		Use:   "list",
		Short: "List installments, optionally by card and invoice month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := core.InstallmentFilter{CardID: filterCard}
			if filterMonth != "" {
				m, err := core.ParseMonth(filterMonth)
				if err != nil {
					return err
				}
				f.Month = m
			}
			b, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			rows, err := b.Purchases.ListPurchases(cmd.Context(), f)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCARD\tMONTH\tNAME\tINSTALLMENT\tVALUE")
			for _, i := range rows {
				fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%d/%d\t%s\n",
					i.ID, i.CardID, i.InvoiceMonth, i.Name, i.CurrentInstallment, i.TotalInstallments, i.InstallmentValue)
			}
			return tw.Flush()
		},
	}
	list.Flags().Int64Var(&filterCard, "card", 0, "only this card")
	list.Flags().StringVar(&filterMonth, "month", "", "only this invoice month (YYYY-MM)")

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete the purchase that installment ID belongs to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			b, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			if err := b.Purchases.DeletePurchase(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purchase %d deleted\n", id)
			return nil
		},
	}

	cmd.AddCommand(add, list, del)
	return cmd
}
