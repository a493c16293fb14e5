package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardbill/internal/core"
	"cardbill/internal/storage/memory"
)

func TestCatalogService_Cards(t *testing.T) {
	store := memory.New()
	svc := NewCatalogService(store, nil)
	ctx := context.Background()

	_, err := svc.CreateCard(ctx, core.Card{Bank: " ", ClosingDay: 1, DueDay: 1})
	assert.True(t, core.IsValidation(err))

	card, err := svc.CreateCard(ctx, core.Card{Bank: " Nubank ", ClosingDay: 5, DueDay: 12})
	require.NoError(t, err)
	assert.Equal(t, "Nubank", card.Bank)

	day := 40
	_, err = svc.UpdateCard(ctx, card.ID, core.CardPatch{ClosingDay: &day})
	assert.ErrorIs(t, err, core.ErrInvalidClosingDay)

	day = 25
	invalidated := 0
	svc.OnChange(func(keys []core.InvoiceKey) {
		assert.Nil(t, keys)
		invalidated++
	})
	updated, err := svc.UpdateCard(ctx, card.ID, core.CardPatch{ClosingDay: &day})
	require.NoError(t, err)
	assert.Equal(t, 25, updated.ClosingDay)
	assert.Equal(t, 12, updated.DueDay)

	_, err = svc.UpdateCard(ctx, 999, core.CardPatch{})
	assert.ErrorIs(t, err, core.ErrCardNotFound)

	require.NoError(t, svc.DeleteCard(ctx, card.ID))
	_, err = svc.GetCard(ctx, card.ID)
	assert.ErrorIs(t, err, core.ErrCardNotFound)
	assert.Equal(t, 2, invalidated)
}

func TestCatalogService_DeleteCardCascades(t *testing.T) {
	store := memory.New()
	catalog := NewCatalogService(store, nil)
	purchases := NewPurchaseService(store)
	ctx := context.Background()

	card, err := catalog.CreateCard(ctx, core.Card{Bank: "Nubank", ClosingDay: 5, DueDay: 12})
	require.NoError(t, err)
	first, err := purchases.CreatePurchase(ctx, core.PurchaseInput{
		CardID: card.ID, PurchaseDate: core.NewDate(2024, 1, 1), Name: "Phone",
		TotalValue: core.Money{Cents: 1200}, TotalInstallments: 12,
	})
	require.NoError(t, err)

	require.NoError(t, catalog.DeleteCard(ctx, card.ID))

	rows, err := purchases.ListPurchases(ctx, core.InstallmentFilter{})
	require.NoError(t, err)
	assert.Empty(t, rows)
	ov, err := purchases.GetInvoicesForMonth(ctx, first.InvoiceMonth)
	require.NoError(t, err)
	assert.Empty(t, ov.Invoices)
}

func TestCatalogService_Categories(t *testing.T) {
	svc := NewCatalogService(memory.New(), nil)
	ctx := context.Background()

	c, err := svc.CreateCategory(ctx, core.Category{Name: " Pets "})
	require.NoError(t, err)
	assert.Equal(t, core.Category{Name: "pets", Label: "pets"}, c)

	_, err = svc.CreateCategory(ctx, core.Category{Name: "pets", Label: "Pets"})
	assert.ErrorIs(t, err, core.ErrCategoryExists)

	_, err = svc.CreateCategory(ctx, core.Category{Name: ""})
	assert.True(t, core.IsValidation(err))

	cats, err := svc.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, cats, 1)

	require.NoError(t, svc.DeleteCategory(ctx, "pets"))
	assert.ErrorIs(t, svc.DeleteCategory(ctx, "pets"), core.ErrNotFound)
}
