// Package memory is an in-process implementation of storage.Store used by
// the memory backend and by tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"cardbill/internal/core"
	"cardbill/internal/storage"
)

type state struct {
	cards        map[int64]core.Card
	installments map[int64]core.Installment
	invoices     map[core.InvoiceKey]core.MonthlyInvoice
	categories   map[string]core.Category
	nextCard     int64
	nextInst     int64
}

func (s state) clone() state {
	c := state{
		cards:        make(map[int64]core.Card, len(s.cards)),
		installments: make(map[int64]core.Installment, len(s.installments)),
		invoices:     make(map[core.InvoiceKey]core.MonthlyInvoice, len(s.invoices)),
		categories:   make(map[string]core.Category, len(s.categories)),
		nextCard:     s.nextCard,
		nextInst:     s.nextInst,
	}
	for k, v := range s.cards {
		c.cards[k] = v
	}
	for k, v := range s.installments {
		c.installments[k] = v
	}
	for k, v := range s.invoices {
		c.invoices[k] = v
	}
	for k, v := range s.categories {
		c.categories[k] = v
	}
	return c
}

// Store keeps everything in maps. Writes are serialized by txMu so that a
// rolled-back transaction can restore its snapshot without losing other writes;
// mu guards the data itself.
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex
	st   state
	now  func() time.Time
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		st: state{
			cards:        map[int64]core.Card{},
			installments: map[int64]core.Installment{},
			invoices:     map[core.InvoiceKey]core.MonthlyInvoice{},
			categories:   map[string]core.Category{},
		},
		now: time.Now,
	}
}

// ledger runs the LedgerStore operations without taking txMu; the caller
// holds it.
type ledger struct{ s *Store }

func (s *Store) write(fn func(l ledger) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(ledger{s})
}

func (s *Store) InTx(ctx context.Context, fn func(storage.LedgerStore) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	snapshot := s.st.clone()
	s.mu.Unlock()

	err := fn(ledger{s})
	if err == nil {
		// A context cancelled mid-transaction aborts the commit.
		err = ctx.Err()
	}
	if err != nil {
		s.mu.Lock()
		s.st = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error                { return nil }

func (s *Store) CreateCard(_ context.Context, c core.Card) (core.Card, error) {
	var out core.Card
	err := s.write(func(ledger) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.st.nextCard++
		c.ID = s.st.nextCard
		c.CreatedAt = s.now().UTC().Truncate(time.Second)
		s.st.cards[c.ID] = c
		out = c
		return nil
	})
	return out, err
}

func (s *Store) FindCardByID(ctx context.Context, id int64) (core.Card, error) {
	return ledger{s}.FindCardByID(ctx, id)
}

func (s *Store) ListCards(context.Context) ([]core.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Card, 0, len(s.st.cards))
	for _, c := range s.st.cards {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Bank != out[j].Bank {
			return out[i].Bank < out[j].Bank
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) UpdateCard(_ context.Context, c core.Card) error {
	return s.write(func(ledger) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		old, ok := s.st.cards[c.ID]
		if !ok {
			return fmt.Errorf("card %d: %w", c.ID, core.ErrCardNotFound)
		}
		c.CreatedAt = old.CreatedAt
		s.st.cards[c.ID] = c
		return nil
	})
}

// DeleteCard cascades to the card's installments and invoices.
func (s *Store) DeleteCard(_ context.Context, id int64) error {
	return s.write(func(ledger) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.st.cards[id]; !ok {
			return fmt.Errorf("card %d: %w", id, core.ErrCardNotFound)
		}
		delete(s.st.cards, id)
		for iid, inst := range s.st.installments {
			if inst.CardID == id {
				delete(s.st.installments, iid)
			}
		}
		for k := range s.st.invoices {
			if k.CardID == id {
				delete(s.st.invoices, k)
			}
		}
		return nil
	})
}

func (s *Store) ListCategories(context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Category, 0, len(s.st.categories))
	for _, c := range s.st.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Label != out[j].Label {
			return out[i].Label < out[j].Label
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) CreateCategory(_ context.Context, c core.Category) error {
	return s.write(func(ledger) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.st.categories[c.Name]; ok {
			return fmt.Errorf("category %q: %w", c.Name, core.ErrCategoryExists)
		}
		s.st.categories[c.Name] = c
		return nil
	})
}

func (s *Store) EnsureCategory(_ context.Context, c core.Category) error {
	return s.write(func(ledger) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.st.categories[c.Name]; !ok {
			s.st.categories[c.Name] = c
		}
		return nil
	})
}

func (s *Store) DeleteCategory(_ context.Context, name string) error {
	return s.write(func(ledger) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.st.categories[name]; !ok {
			return fmt.Errorf("category %q: %w", name, core.ErrNotFound)
		}
		delete(s.st.categories, name)
		return nil
	})
}

func (s *Store) InsertInstallment(ctx context.Context, i core.Installment) (core.Installment, error) {
	var out core.Installment
	err := s.write(func(l ledger) error {
		var err error
		out, err = l.InsertInstallment(ctx, i)
		return err
	})
	return out, err
}

func (s *Store) FindInstallmentByID(ctx context.Context, id int64) (core.Installment, error) {
	return ledger{s}.FindInstallmentByID(ctx, id)
}

func (s *Store) FindInstallmentSiblings(ctx context.Context, key core.SiblingKey) ([]core.Installment, error) {
	return ledger{s}.FindInstallmentSiblings(ctx, key)
}

func (s *Store) DeleteInstallmentSiblings(ctx context.Context, key core.SiblingKey) error {
	return s.write(func(l ledger) error { return l.DeleteInstallmentSiblings(ctx, key) })
}

func (s *Store) UpdateInstallmentDetails(ctx context.Context, key core.SiblingKey, groupID, name, category string) error {
	return s.write(func(l ledger) error { return l.UpdateInstallmentDetails(ctx, key, groupID, name, category) })
}

func (s *Store) SumInstallmentValues(ctx context.Context, month core.Month, cardID int64) (core.Money, error) {
	return ledger{s}.SumInstallmentValues(ctx, month, cardID)
}

func (s *Store) UpsertMonthlyInvoice(ctx context.Context, inv core.MonthlyInvoice) error {
	return s.write(func(l ledger) error { return l.UpsertMonthlyInvoice(ctx, inv) })
}

func (s *Store) ListInstallments(_ context.Context, f core.InstallmentFilter) ([]core.Installment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Installment
	for _, i := range s.st.installments {
		if f.CardID != 0 && i.CardID != f.CardID {
			continue
		}
		if !f.Month.IsZero() && i.InvoiceMonth != f.Month {
			continue
		}
		out = append(out, i)
	}
	sort.Slice(out, func(a, b int) bool {
		x, y := out[a], out[b]
		if x.InvoiceMonth != y.InvoiceMonth {
			return x.InvoiceMonth.Before(y.InvoiceMonth)
		}
		if !x.PurchaseDate.Equal(y.PurchaseDate.Time) {
			return x.PurchaseDate.Before(y.PurchaseDate.Time)
		}
		return x.ID < y.ID
	})
	return out, nil
}

func (s *Store) ListInvoicesForMonth(_ context.Context, month core.Month) ([]core.CardInvoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.CardInvoice
	for k, inv := range s.st.invoices {
		if k.Month != month {
			continue
		}
		card, ok := s.st.cards[k.CardID]
		if !ok {
			continue
		}
		out = append(out, core.CardInvoice{Invoice: inv, Card: card})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Card.Bank != out[j].Card.Bank {
			return out[i].Card.Bank < out[j].Card.Bank
		}
		return out[i].Card.ID < out[j].Card.ID
	})
	return out, nil
}

func (s *Store) ListInvoiceKeys(context.Context) ([]core.InvoiceKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[core.InvoiceKey]struct{})
	for _, i := range s.st.installments {
		seen[i.Key()] = struct{}{}
	}
	for k := range s.st.invoices {
		seen[k] = struct{}{}
	}
	keys := make([]core.InvoiceKey, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Month != keys[j].Month {
			return keys[i].Month.Before(keys[j].Month)
		}
		return keys[i].CardID < keys[j].CardID
	})
	return keys, nil
}

func (l ledger) FindCardByID(_ context.Context, id int64) (core.Card, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	c, ok := l.s.st.cards[id]
	if !ok {
		return core.Card{}, fmt.Errorf("card %d: %w", id, core.ErrCardNotFound)
	}
	return c, nil
}

func (l ledger) InsertInstallment(_ context.Context, i core.Installment) (core.Installment, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	if _, ok := l.s.st.cards[i.CardID]; !ok {
		return core.Installment{}, fmt.Errorf("insert installment: card %d: %w", i.CardID, core.ErrCardNotFound)
	}
	l.s.st.nextInst++
	i.ID = l.s.st.nextInst
	if i.CreatedAt.IsZero() {
		i.CreatedAt = l.s.now()
	}
	i.CreatedAt = i.CreatedAt.UTC().Truncate(time.Second)
	l.s.st.installments[i.ID] = i
	return i, nil
}

func (l ledger) FindInstallmentByID(_ context.Context, id int64) (core.Installment, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	i, ok := l.s.st.installments[id]
	if !ok {
		return core.Installment{}, fmt.Errorf("installment %d: %w", id, core.ErrNotFound)
	}
	return i, nil
}

func (l ledger) FindInstallmentSiblings(_ context.Context, key core.SiblingKey) ([]core.Installment, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	var out []core.Installment
	for _, i := range l.s.st.installments {
		if key.Matches(i) {
			out = append(out, i)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].CurrentInstallment != out[b].CurrentInstallment {
			return out[a].CurrentInstallment < out[b].CurrentInstallment
		}
		return out[a].ID < out[b].ID
	})
	return out, nil
}

func (l ledger) DeleteInstallmentSiblings(_ context.Context, key core.SiblingKey) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	for id, i := range l.s.st.installments {
		if key.Matches(i) {
			delete(l.s.st.installments, id)
		}
	}
	return nil
}

func (l ledger) UpdateInstallmentDetails(_ context.Context, key core.SiblingKey, groupID, name, category string) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	updated := 0
	for id, i := range l.s.st.installments {
		if key.Matches(i) {
			i.GroupID = groupID
			i.Name = name
			i.Category = category
			l.s.st.installments[id] = i
			updated++
		}
	}
	if updated == 0 {
		return fmt.Errorf("purchase group: %w", core.ErrNotFound)
	}
	return nil
}

func (l ledger) SumInstallmentValues(_ context.Context, month core.Month, cardID int64) (core.Money, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	var total core.Money
	for _, i := range l.s.st.installments {
		if i.CardID == cardID && i.InvoiceMonth == month {
			total = total.Add(i.InstallmentValue)
		}
	}
	return total, nil
}

func (l ledger) UpsertMonthlyInvoice(_ context.Context, inv core.MonthlyInvoice) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	if _, ok := l.s.st.cards[inv.CardID]; !ok {
		return fmt.Errorf("upsert invoice: card %d: %w", inv.CardID, core.ErrCardNotFound)
	}
	if inv.UpdatedAt.IsZero() {
		inv.UpdatedAt = l.s.now()
	}
	inv.UpdatedAt = inv.UpdatedAt.UTC().Truncate(time.Second)
	l.s.st.invoices[core.InvoiceKey{Month: inv.Month, CardID: inv.CardID}] = inv
	return nil
}
