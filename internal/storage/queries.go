package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"cardbill/internal/core"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Queries holds the SQL for every port method. It runs against either the
// connection pool or a transaction.
type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

const cardColumns = `id, bank, logo, closing_day, due_day, created_at`

func scanCard(s rowScanner) (core.Card, error) {
	var (
		c       core.Card
		created int64
	)
	if err := s.Scan(&c.ID, &c.Bank, &c.Logo, &c.ClosingDay, &c.DueDay, &created); err != nil {
		return core.Card{}, err
	}
	c.CreatedAt = time.Unix(created, 0).UTC()
	return c, nil
}

const createCard = `INSERT INTO cards (bank, logo, closing_day, due_day, created_at)
VALUES (?, ?, ?, ?, ?)
RETURNING ` + cardColumns

func (q *Queries) CreateCard(ctx context.Context, c core.Card) (core.Card, error) {
	created, err := scanCard(q.db.QueryRowContext(ctx, createCard,
		c.Bank, c.Logo, c.ClosingDay, c.DueDay, time.Now().Unix()))
	if err != nil {
		return core.Card{}, fmt.Errorf("create card: %w", err)
	}
	return created, nil
}

const getCard = `SELECT ` + cardColumns + ` FROM cards WHERE id = ?`

func (q *Queries) FindCardByID(ctx context.Context, id int64) (core.Card, error) {
	c, err := scanCard(q.db.QueryRowContext(ctx, getCard, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Card{}, fmt.Errorf("card %d: %w", id, core.ErrCardNotFound)
	}
	if err != nil {
		return core.Card{}, fmt.Errorf("get card %d: %w", id, err)
	}
	return c, nil
}

const listCards = `SELECT ` + cardColumns + ` FROM cards ORDER BY bank, id`

func (q *Queries) ListCards(ctx context.Context) ([]core.Card, error) {
	rows, err := q.db.QueryContext(ctx, listCards)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	var cards []core.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	return cards, nil
}

const updateCard = `UPDATE cards SET bank = ?, logo = ?, closing_day = ?, due_day = ? WHERE id = ?`

func (q *Queries) UpdateCard(ctx context.Context, c core.Card) error {
	res, err := q.db.ExecContext(ctx, updateCard, c.Bank, c.Logo, c.ClosingDay, c.DueDay, c.ID)
	if err != nil {
		return fmt.Errorf("update card %d: %w", c.ID, err)
	}
	return expectRow(res, fmt.Errorf("card %d: %w", c.ID, core.ErrCardNotFound))
}

const deleteCard = `DELETE FROM cards WHERE id = ?`

// DeleteCard relies on ON DELETE CASCADE for purchases and monthly_invoices.
func (q *Queries) DeleteCard(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, deleteCard, id)
	if err != nil {
		return fmt.Errorf("delete card %d: %w", id, err)
	}
	return expectRow(res, fmt.Errorf("card %d: %w", id, core.ErrCardNotFound))
}

func expectRow(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return missing
	}
	return nil
}

const listCategories = `SELECT name, label FROM categories ORDER BY label, name`

func (q *Queries) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := q.db.QueryContext(ctx, listCategories)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var cats []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.Name, &c.Label); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cats = append(cats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

const insertCategory = `INSERT INTO categories (name, label) VALUES (?, ?) ON CONFLICT (name) DO NOTHING`

func (q *Queries) CreateCategory(ctx context.Context, c core.Category) error {
	res, err := q.db.ExecContext(ctx, insertCategory, c.Name, c.Label)
	if err != nil {
		return fmt.Errorf("create category %q: %w", c.Name, err)
	}
	return expectRow(res, fmt.Errorf("category %q: %w", c.Name, core.ErrCategoryExists))
}

func (q *Queries) EnsureCategory(ctx context.Context, c core.Category) error {
	if _, err := q.db.ExecContext(ctx, insertCategory, c.Name, c.Label); err != nil {
		return fmt.Errorf("ensure category %q: %w", c.Name, err)
	}
	return nil
}

const deleteCategory = `DELETE FROM categories WHERE name = ?`

func (q *Queries) DeleteCategory(ctx context.Context, name string) error {
	res, err := q.db.ExecContext(ctx, deleteCategory, name)
	if err != nil {
		return fmt.Errorf("delete category %q: %w", name, err)
	}
	return expectRow(res, fmt.Errorf("category %q: %w", name, core.ErrNotFound))
}

const installmentColumns = `id, group_id, card_id, purchase_date, name, category, total_cents,
total_installments, current_installment, installment_cents, invoice_month, created_at`

func scanInstallment(s rowScanner) (core.Installment, error) {
	var (
		i                    core.Installment
		date, month          string
		total, value, create int64
	)
	err := s.Scan(&i.ID, &i.GroupID, &i.CardID, &date, &i.Name, &i.Category, &total,
		&i.TotalInstallments, &i.CurrentInstallment, &value, &month, &create)
	if err != nil {
		return core.Installment{}, err
	}
	if i.PurchaseDate, err = core.ParseDate(date); err != nil {
		return core.Installment{}, fmt.Errorf("installment %d: %w", i.ID, err)
	}
	if i.InvoiceMonth, err = core.ParseMonth(month); err != nil {
		return core.Installment{}, fmt.Errorf("installment %d: %w", i.ID, err)
	}
	i.TotalValue = core.Money{Cents: total}
	i.InstallmentValue = core.Money{Cents: value}
	i.CreatedAt = time.Unix(create, 0).UTC()
	return i, nil
}

func collectInstallments(rows *sql.Rows) ([]core.Installment, error) {
	defer rows.Close()
	var out []core.Installment
	for rows.Next() {
		i, err := scanInstallment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan installment: %w", err)
		}
		out = append(out, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

const insertInstallment = `INSERT INTO purchases (
    group_id, card_id, purchase_date, name, category, total_cents,
    total_installments, current_installment, installment_cents, invoice_month, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + installmentColumns

func (q *Queries) InsertInstallment(ctx context.Context, i core.Installment) (core.Installment, error) {
	created := i.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	row := q.db.QueryRowContext(ctx, insertInstallment,
		i.GroupID, i.CardID, i.PurchaseDate.String(), i.Name, i.Category, i.TotalValue.Cents,
		i.TotalInstallments, i.CurrentInstallment, i.InstallmentValue.Cents,
		i.InvoiceMonth.String(), created.Unix())
	out, err := scanInstallment(row)
	if err != nil {
		return core.Installment{}, fmt.Errorf("insert installment %d/%d of %q: %w",
			i.CurrentInstallment, i.TotalInstallments, i.Name, err)
	}
	return out, nil
}

const getInstallment = `SELECT ` + installmentColumns + ` FROM purchases WHERE id = ?`

func (q *Queries) FindInstallmentByID(ctx context.Context, id int64) (core.Installment, error) {
	i, err := scanInstallment(q.db.QueryRowContext(ctx, getInstallment, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Installment{}, fmt.Errorf("installment %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Installment{}, fmt.Errorf("get installment %d: %w", id, err)
	}
	return i, nil
}

// siblingWhere mirrors core.SiblingKey.Matches.
func siblingWhere(key core.SiblingKey) (string, []interface{}) {
	if key.GroupID != "" {
		return "group_id = ?", []interface{}{key.GroupID}
	}
	return `group_id = '' AND card_id = ? AND purchase_date = ? AND name = ?
        AND total_cents = ? AND total_installments = ?`,
		[]interface{}{key.CardID, key.PurchaseDate.String(), key.Name, key.TotalValue.Cents, key.TotalInstallments}
}

func (q *Queries) FindInstallmentSiblings(ctx context.Context, key core.SiblingKey) ([]core.Installment, error) {
	where, args := siblingWhere(key)
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+installmentColumns+` FROM purchases WHERE `+where+` ORDER BY current_installment, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("find siblings: %w", err)
	}
	out, err := collectInstallments(rows)
	if err != nil {
		return nil, fmt.Errorf("find siblings: %w", err)
	}
	return out, nil
}

func (q *Queries) DeleteInstallmentSiblings(ctx context.Context, key core.SiblingKey) error {
	where, args := siblingWhere(key)
	if _, err := q.db.ExecContext(ctx, `DELETE FROM purchases WHERE `+where, args...); err != nil {
		return fmt.Errorf("delete siblings: %w", err)
	}
	return nil
}

func (q *Queries) UpdateInstallmentDetails(ctx context.Context, key core.SiblingKey, groupID, name, category string) error {
	where, args := siblingWhere(key)
	args = append([]interface{}{groupID, name, category}, args...)
	res, err := q.db.ExecContext(ctx,
		`UPDATE purchases SET group_id = ?, name = ?, category = ? WHERE `+where, args...)
	if err != nil {
		return fmt.Errorf("update purchase details: %w", err)
	}
	return expectRow(res, fmt.Errorf("purchase group: %w", core.ErrNotFound))
}

const sumInstallments = `SELECT COALESCE(SUM(installment_cents), 0) FROM purchases
WHERE invoice_month = ? AND card_id = ?`

func (q *Queries) SumInstallmentValues(ctx context.Context, month core.Month, cardID int64) (core.Money, error) {
	var cents int64
	if err := q.db.QueryRowContext(ctx, sumInstallments, month.String(), cardID).Scan(&cents); err != nil {
		return core.Money{}, fmt.Errorf("sum installments %s/%d: %w", month, cardID, err)
	}
	return core.Money{Cents: cents}, nil
}

const upsertInvoice = `INSERT INTO monthly_invoices (month, card_id, total_cents, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (month, card_id) DO UPDATE SET
    total_cents = excluded.total_cents,
    updated_at  = excluded.updated_at`

func (q *Queries) UpsertMonthlyInvoice(ctx context.Context, inv core.MonthlyInvoice) error {
	updated := inv.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err := q.db.ExecContext(ctx, upsertInvoice, inv.Month.String(), inv.CardID, inv.Total.Cents, updated.Unix())
	if err != nil {
		return fmt.Errorf("upsert invoice %s/%d: %w", inv.Month, inv.CardID, err)
	}
	return nil
}

func (q *Queries) ListInstallments(ctx context.Context, f core.InstallmentFilter) ([]core.Installment, error) {
	var (
		conds []string
		args  []interface{}
	)
	if f.CardID != 0 {
		conds = append(conds, "card_id = ?")
		args = append(args, f.CardID)
	}
	if !f.Month.IsZero() {
		conds = append(conds, "invoice_month = ?")
		args = append(args, f.Month.String())
	}
	query := `SELECT ` + installmentColumns + ` FROM purchases`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY invoice_month, purchase_date, id"

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list installments: %w", err)
	}
	out, err := collectInstallments(rows)
	if err != nil {
		return nil, fmt.Errorf("list installments: %w", err)
	}
	return out, nil
}

const listInvoicesForMonth = `SELECT mi.month, mi.card_id, mi.total_cents, mi.updated_at,
    c.id, c.bank, c.logo, c.closing_day, c.due_day, c.created_at
FROM monthly_invoices mi
JOIN cards c ON c.id = mi.card_id
WHERE mi.month = ?
ORDER BY c.bank, c.id`

func (q *Queries) ListInvoicesForMonth(ctx context.Context, month core.Month) ([]core.CardInvoice, error) {
	rows, err := q.db.QueryContext(ctx, listInvoicesForMonth, month.String())
	if err != nil {
		return nil, fmt.Errorf("list invoices %s: %w", month, err)
	}
	defer rows.Close()

	var out []core.CardInvoice
	for rows.Next() {
		var (
			ci                      core.CardInvoice
			m                       string
			total, updated, created int64
		)
		if err := rows.Scan(&m, &ci.Invoice.CardID, &total, &updated,
			&ci.Card.ID, &ci.Card.Bank, &ci.Card.Logo, &ci.Card.ClosingDay, &ci.Card.DueDay, &created); err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		if ci.Invoice.Month, err = core.ParseMonth(m); err != nil {
			return nil, err
		}
		ci.Invoice.Total = core.Money{Cents: total}
		ci.Invoice.UpdatedAt = time.Unix(updated, 0).UTC()
		ci.Card.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, ci)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list invoices %s: %w", month, err)
	}
	return out, nil
}

const listInvoiceKeys = `SELECT invoice_month, card_id FROM purchases
UNION
SELECT month, card_id FROM monthly_invoices
ORDER BY 1, 2`

func (q *Queries) ListInvoiceKeys(ctx context.Context) ([]core.InvoiceKey, error) {
	rows, err := q.db.QueryContext(ctx, listInvoiceKeys)
	if err != nil {
		return nil, fmt.Errorf("list invoice keys: %w", err)
	}
	defer rows.Close()

	var keys []core.InvoiceKey
	for rows.Next() {
		var (
			k core.InvoiceKey
			m string
		)
		if err := rows.Scan(&m, &k.CardID); err != nil {
			return nil, fmt.Errorf("scan invoice key: %w", err)
		}
		if k.Month, err = core.ParseMonth(m); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list invoice keys: %w", err)
	}
	return keys, nil
}
