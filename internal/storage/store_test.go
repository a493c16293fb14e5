package storage_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardbill/internal/core"
	"cardbill/internal/storage"
	"cardbill/internal/storage/memory"
)

type storeFactory func(t *testing.T) storage.Store

func sqliteStore(t *testing.T) storage.Store {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "cardbill.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func memoryStore(t *testing.T) storage.Store {
	t.Helper()
	return memory.New()
}

func eachStore(t *testing.T, fn func(t *testing.T, s storage.Store)) {
	for name, factory := range map[string]storeFactory{
		"sqlite": sqliteStore,
		"memory": memoryStore,
	} {
		t.Run(name, func(t *testing.T) {
			fn(t, factory(t))
		})
	}
}

func mustCard(t *testing.T, s storage.Store, bank string, closing int) core.Card {
	t.Helper()
	c, err := s.CreateCard(context.Background(), core.Card{Bank: bank, ClosingDay: closing, DueDay: 10})
	require.NoError(t, err)
	require.NotZero(t, c.ID)
	return c
}

func installment(cardID int64, group string, n, of int, month core.Month) core.Installment {
	return core.Installment{
		GroupID:            group,
		CardID:             cardID,
		PurchaseDate:       core.NewDate(2024, 3, 5),
		Name:               "Laptop",
		Category:           "electronics",
		TotalValue:         core.Money{Cents: 30000},
		TotalInstallments:  of,
		CurrentInstallment: n,
		InstallmentValue:   core.Money{Cents: 30000 / int64(of)},
		InvoiceMonth:       month,
	}
}

func TestStore_Cards(t *testing.T) {
	eachStore(t, func(t *testing.T, s storage.Store) {
		ctx := context.Background()
		b := mustCard(t, s, "Nubank", 5)
		a := mustCard(t, s, "Itau", 20)

		got, err := s.FindCardByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, "Nubank", got.Bank)
		assert.Equal(t, 5, got.ClosingDay)

		cards, err := s.ListCards(ctx)
		require.NoError(t, err)
		require.Len(t, cards, 2)
		assert.Equal(t, a.ID, cards[0].ID, "cards are ordered by bank")

		b.Logo = "nubank.svg"
		b.ClosingDay = 7
		require.NoError(t, s.UpdateCard(ctx, b))
		got, err = s.FindCardByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, "nubank.svg", got.Logo)
		assert.Equal(t, 7, got.ClosingDay)

		_, err = s.FindCardByID(ctx, 999)
		assert.ErrorIs(t, err, core.ErrCardNotFound)
		assert.ErrorIs(t, s.UpdateCard(ctx, core.Card{ID: 999, Bank: "x", ClosingDay: 1, DueDay: 1}), core.ErrCardNotFound)
		assert.ErrorIs(t, s.DeleteCard(ctx, 999), core.ErrCardNotFound)
	})
}

func TestStore_DeleteCardCascades(t *testing.T) {
	eachStore(t, func(t *testing.T, s storage.Store) {
		ctx := context.Background()
		card := mustCard(t, s, "Nubank", 5)
		other := mustCard(t, s, "Itau", 5)
		march := core.NewMonth(2024, 3)

		_, err := s.InsertInstallment(ctx, installment(card.ID, "g1", 1, 1, march))
		require.NoError(t, err)
		_, err = s.InsertInstallment(ctx, installment(other.ID, "g2", 1, 1, march))
		require.NoError(t, err)
		require.NoError(t, s.UpsertMonthlyInvoice(ctx, core.MonthlyInvoice{Month: march, CardID: card.ID, Total: core.Money{Cents: 30000}}))

		require.NoError(t, s.DeleteCard(ctx, card.ID))

		rows, err := s.ListInstallments(ctx, core.InstallmentFilter{})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, other.ID, rows[0].CardID)

		invoices, err := s.ListInvoicesForMonth(ctx, march)
		require.NoError(t, err)
		assert.Empty(t, invoices)
	})
}

func TestStore_InstallmentRoundTrip(t *testing.T) {
	eachStore(t, func(t *testing.T, s storage.Store) {
		ctx := context.Background()
		card := mustCard(t, s, "Nubank", 5)
		in := installment(card.ID, "g1", 2, 3, core.NewMonth(2024, 5))

		saved, err := s.InsertInstallment(ctx, in)
		require.NoError(t, err)
		require.NotZero(t, saved.ID)
		assert.False(t, saved.CreatedAt.IsZero())

		got, err := s.FindInstallmentByID(ctx, saved.ID)
		require.NoError(t, err)
		assert.Equal(t, "g1", got.GroupID)
		assert.Equal(t, "2024-03-05", got.PurchaseDate.String())
		assert.Equal(t, core.NewMonth(2024, 5), got.InvoiceMonth)
		assert.Equal(t, int64(10000), got.InstallmentValue.Cents)
		assert.Equal(t, 2, got.CurrentInstallment)

		_, err = s.FindInstallmentByID(ctx, saved.ID+100)
		assert.ErrorIs(t, err, core.ErrNotFound)
	})
}

func TestStore_SiblingsByGroup(t *testing.T) {
	eachStore(t, func(t *testing.T, s storage.Store) {
		ctx := context.Background()
		card := mustCard(t, s, "Nubank", 5)
		m := core.NewMonth(2024, 4)

		// Same value tuple, different purchase events.
		for n := 1; n <= 2; n++ {
			_, err := s.InsertInstallment(ctx, installment(card.ID, "a", n, 2, m.AddMonths(n-1)))
			require.NoError(t, err)
			_, err = s.InsertInstallment(ctx, installment(card.ID, "b", n, 2, m.AddMonths(n-1)))
			require.NoError(t, err)
		}

		sibs, err := s.FindInstallmentSiblings(ctx, core.SiblingKey{GroupID: "a"})
		require.NoError(t, err)
		require.Len(t, sibs, 2)
		assert.Equal(t, 1, sibs[0].CurrentInstallment)

		require.NoError(t, s.DeleteInstallmentSiblings(ctx, core.SiblingKey{GroupID: "a"}))
		rest, err := s.ListInstallments(ctx, core.InstallmentFilter{CardID: card.ID})
		require.NoError(t, err)
		require.Len(t, rest, 2)
		for _, r := range rest {
			assert.Equal(t, "b", r.GroupID)
		}
	})
}

func TestStore_LegacySiblingsMatchOnValues(t *testing.T) {
	eachStore(t, func(t *testing.T, s storage.Store) {
		ctx := context.Background()
		card := mustCard(t, s, "Nubank", 5)
		m := core.NewMonth(2024, 4)

		// Two legacy purchases with identical values are indistinguishable.
		first, err := s.InsertInstallment(ctx, installment(card.ID, "", 1, 1, m))
		require.NoError(t, err)
		_, err = s.InsertInstallment(ctx, installment(card.ID, "", 1, 1, m))
		require.NoError(t, err)
		grouped, err := s.InsertInstallment(ctx, installment(card.ID, "g", 1, 1, m))
		require.NoError(t, err)

		sibs, err := s.FindInstallmentSiblings(ctx, first.SiblingKey())
		require.NoError(t, err)
		assert.Len(t, sibs, 2)

		require.NoError(t, s.UpdateInstallmentDetails(ctx, first.SiblingKey(), "fresh", "Old laptop", "other"))
		rows, err := s.ListInstallments(ctx, core.InstallmentFilter{Month: m})
		require.NoError(t, err)
		for _, r := range rows {
			if r.ID == grouped.ID {
				assert.Equal(t, "Laptop", r.Name)
				assert.Equal(t, "g", r.GroupID)
				continue
			}
			assert.Equal(t, "Old laptop", r.Name)
			assert.Equal(t, "other", r.Category)
			assert.Equal(t, "fresh", r.GroupID)
		}

		sibs, err = s.FindInstallmentSiblings(ctx, core.SiblingKey{GroupID: "fresh"})
		require.NoError(t, err)
		assert.Len(t, sibs, 2)
	})
}

func TestStore_SumAndUpsertInvoice(t *testing.T) {
	eachStore(t, func(t *testing.T, s storage.Store) {
		ctx := context.Background()
		card := mustCard(t, s, "Nubank", 5)
		m := core.NewMonth(2024, 6)

		total, err := s.SumInstallmentValues(ctx, m, card.ID)
		require.NoError(t, err)
		assert.Zero(t, total.Cents)

		_, err = s.InsertInstallment(ctx, installment(card.ID, "g1", 1, 2, m))
		require.NoError(t, err)
		_, err = s.InsertInstallment(ctx, installment(card.ID, "g2", 1, 3, m))
		require.NoError(t, err)

		total, err = s.SumInstallmentValues(ctx, m, card.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(25000), total.Cents)

		require.NoError(t, s.UpsertMonthlyInvoice(ctx, core.MonthlyInvoice{Month: m, CardID: card.ID, Total: total}))
		require.NoError(t, s.UpsertMonthlyInvoice(ctx, core.MonthlyInvoice{Month: m, CardID: card.ID}))

		invoices, err := s.ListInvoicesForMonth(ctx, m)
		require.NoError(t, err)
		require.Len(t, invoices, 1, "upsert must not duplicate rows")
		assert.Zero(t, invoices[0].Invoice.Total.Cents, "zero totals persist")
		assert.Equal(t, "Nubank", invoices[0].Card.Bank)
	})
}

func TestStore_ListInvoiceKeys(t *testing.T) {
	eachStore(t, func(t *testing.T, s storage.Store) {
		ctx := context.Background()
		card := mustCard(t, s, "Nubank", 5)
		jan, feb := core.NewMonth(2024, 1), core.NewMonth(2024, 2)

		_, err := s.InsertInstallment(ctx, installment(card.ID, "g", 1, 1, feb))
		require.NoError(t, err)
		require.NoError(t, s.UpsertMonthlyInvoice(ctx, core.MonthlyInvoice{Month: jan, CardID: card.ID}))
		require.NoError(t, s.UpsertMonthlyInvoice(ctx, core.MonthlyInvoice{Month: feb, CardID: card.ID}))

		keys, err := s.ListInvoiceKeys(ctx)
		require.NoError(t, err)
		assert.Equal(t, []core.InvoiceKey{
			{Month: jan, CardID: card.ID},
			{Month: feb, CardID: card.ID},
		}, keys)
	})
}

func TestStore_InTxRollsBack(t *testing.T) {
	eachStore(t, func(t *testing.T, s storage.Store) {
		ctx := context.Background()
		card := mustCard(t, s, "Nubank", 5)
		m := core.NewMonth(2024, 6)
		boom := errors.New("boom")

		err := s.InTx(ctx, func(tx storage.LedgerStore) error {
			if _, err := tx.InsertInstallment(ctx, installment(card.ID, "g", 1, 1, m)); err != nil {
				return err
			}
			if err := tx.UpsertMonthlyInvoice(ctx, core.MonthlyInvoice{Month: m, CardID: card.ID, Total: core.Money{Cents: 30000}}); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		rows, err := s.ListInstallments(ctx, core.InstallmentFilter{})
		require.NoError(t, err)
		assert.Empty(t, rows)
		invoices, err := s.ListInvoicesForMonth(ctx, m)
		require.NoError(t, err)
		assert.Empty(t, invoices)

		err = s.InTx(ctx, func(tx storage.LedgerStore) error {
			_, err := tx.InsertInstallment(ctx, installment(card.ID, "g", 1, 1, m))
			return err
		})
		require.NoError(t, err)
		rows, err = s.ListInstallments(ctx, core.InstallmentFilter{})
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})
}

func TestStore_InTxCancelledContextRollsBack(t *testing.T) {
	eachStore(t, func(t *testing.T, s storage.Store) {
		card := mustCard(t, s, "Nubank", 5)
		m := core.NewMonth(2024, 6)

		ctx, cancel := context.WithCancel(context.Background())
		err := s.InTx(ctx, func(tx storage.LedgerStore) error {
			if _, err := tx.InsertInstallment(ctx, installment(card.ID, "g", 1, 1, m)); err != nil {
				return err
			}
			if err := tx.UpsertMonthlyInvoice(ctx, core.MonthlyInvoice{Month: m, CardID: card.ID, Total: core.Money{Cents: 30000}}); err != nil {
				return err
			}
			cancel()
			return nil
		})
		require.ErrorIs(t, err, context.Canceled)

		err = s.InTx(ctx, func(tx storage.LedgerStore) error {
			t.Error("fn ran with a cancelled context")
			return nil
		})
		require.ErrorIs(t, err, context.Canceled)

		bg := context.Background()
		rows, err := s.ListInstallments(bg, core.InstallmentFilter{})
		require.NoError(t, err)
		assert.Empty(t, rows)
		invoices, err := s.ListInvoicesForMonth(bg, m)
		require.NoError(t, err)
		assert.Empty(t, invoices)
	})
}

func TestStore_Categories(t *testing.T) {
	eachStore(t, func(t *testing.T, s storage.Store) {
		ctx := context.Background()
		cats, err := storage.LoadCategorySeed("")
		require.NoError(t, err)
		require.NotEmpty(t, cats)
		require.NoError(t, storage.SeedCategories(ctx, s, cats))
		require.NoError(t, storage.SeedCategories(ctx, s, cats), "seeding is idempotent")

		listed, err := s.ListCategories(ctx)
		require.NoError(t, err)
		assert.Len(t, listed, len(cats))

		err = s.CreateCategory(ctx, core.Category{Name: "food", Label: "Food again"})
		assert.ErrorIs(t, err, core.ErrCategoryExists)

		require.NoError(t, s.CreateCategory(ctx, core.Category{Name: "pets", Label: "Pets"}))
		require.NoError(t, s.DeleteCategory(ctx, "pets"))
		assert.ErrorIs(t, s.DeleteCategory(ctx, "pets"), core.ErrNotFound)
	})
}
