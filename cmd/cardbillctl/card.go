package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"cardbill/internal/core"
)

func newCardCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "card", Short: "Manage credit cards"}

	list := &cobra.Command{
		Use:   "list",
		Short: "List cards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			cards, err := b.Catalog.ListCards(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tBANK\tCLOSING\tDUE")
			for _, c := range cards {
				fmt.Fprintf(tw, "%d\t%s\t%d\t%d\n", c.ID, c.Bank, c.ClosingDay, c.DueDay)
			}
			return tw.Flush()
		},
	}

	var card core.Card
	add := &cobra.Command{
		Use:   "add",
		Short: "Register a card",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			created, err := b.Catalog.CreateCard(cmd.Context(), card)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "card %d created\n", created.ID)
			return nil
		},
	}
	add.Flags().StringVar(&card.Bank, "bank", "", "issuing bank name")
	add.Flags().StringVar(&card.Logo, "logo", "", "optional logo reference")
	add.Flags().IntVar(&card.ClosingDay, "closing-day", 0, "statement closing day (1-31)")
	add.Flags().IntVar(&card.DueDay, "due-day", 0, "payment due day (1-31)")
	_ = add.MarkFlagRequired("bank")
	_ = add.MarkFlagRequired("closing-day")
	_ = add.MarkFlagRequired("due-day")

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a card with its purchases and invoices",
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
			if err := b.Catalog.DeleteCard(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "card %d deleted\n", id)
			return nil
		},
	}

	cmd.AddCommand(list, add, del)
	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
