package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	MaxInstallments = 48
	MaxNameLength   = 200
)

type (
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Card struct {
		ID         int64
		Bank       string
		Logo       string // optional logo reference (URL or asset name)
		ClosingDay int
		DueDay     int
		CreatedAt  time.Time
	}

	// CardPatch carries the fields of a partial card update; nil means unchanged.
	CardPatch struct {
		Bank       *string
		Logo       *string
		ClosingDay *int
		DueDay     *int
	}

	Category struct {
		Name  string
		Label string
	}

	// PurchaseInput is a purchase event as submitted, before it is split into installments.
	PurchaseInput struct {
		CardID            int64
		PurchaseDate      Date
		Name              string
		Category          string
		TotalValue        Money
		TotalInstallments int
	}

	// Installment is one persisted row of a purchase: the share billed in a single invoice month.
	Installment struct {
		ID                 int64
		GroupID            string
		CardID             int64
		PurchaseDate       Date
		Name               string
		Category           string
		TotalValue         Money
		TotalInstallments  int
		CurrentInstallment int
		InstallmentValue   Money
		InvoiceMonth       Month
		CreatedAt          time.Time
	}

	// MonthlyInvoice is the materialized total of a card for one invoice month.
	MonthlyInvoice struct {
		Month     Month
		CardID    int64
		Total     Money
		UpdatedAt time.Time
	}

	CardInvoice struct {
		Invoice MonthlyInvoice
		Card    Card
	}

	InvoiceKey struct {
		Month  Month
		CardID int64
	}

	// SiblingKey identifies the installments of one purchase event. GroupID wins
	// when set; rows written before group ids existed are matched on the
	// remaining value tuple.
	SiblingKey struct {
		GroupID           string
		CardID            int64
		PurchaseDate      Date
		Name              string
		TotalValue        Money
		TotalInstallments int
	}

	InstallmentFilter struct {
		CardID int64 // 0 = any card
		Month  Month // zero = any month
	}
)

var (
	ErrNotFound             = errors.New("not found")
	ErrCardNotFound         = errors.New("card not found")
	ErrInvalidDay           = errors.New("invalid day")
	ErrInvalidMonth         = errors.New("invalid month")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidInstallments  = errors.New("invalid installment count")
	ErrEmptyName            = errors.New("empty name")
	ErrNameTooLong          = errors.New("name too long (max 200 characters)")
	ErrEmptyBank            = errors.New("empty bank name")
	ErrEmptyCategoryName    = errors.New("empty category name")
	ErrCategoryExists       = errors.New("category already exists")
	ErrInvalidClosingDay    = errors.New("closing day must be between 1 and 31")
	ErrInvalidDueDay        = errors.New("due day must be between 1 and 31")
	ErrCardReferenceMissing = errors.New("card id is required")
)

// ValidationError reports which input field failed validation.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

const DateLayout = "2006-01-02"

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func validDayOfMonth(d int) bool {
	return d >= 1 && d <= 31
}

func validateName(field, name string) error {
	if strings.TrimSpace(name) == "" {
		return invalid(field, ErrEmptyName)
	}
	if len(name) > MaxNameLength {
		return invalid(field, ErrNameTooLong)
	}
	return nil
}

func (c Card) Validate() error {
	if strings.TrimSpace(c.Bank) == "" {
		return invalid("bank", ErrEmptyBank)
	}
	if len(c.Bank) > MaxNameLength {
		return invalid("bank", ErrNameTooLong)
	}
	if !validDayOfMonth(c.ClosingDay) {
		return invalid("closingDay", ErrInvalidClosingDay)
	}
	if !validDayOfMonth(c.DueDay) {
		return invalid("dueDay", ErrInvalidDueDay)
	}
	return nil
}

// Apply returns a copy of c with the non-nil fields of p applied.
func (p CardPatch) Apply(c Card) Card {
	if p.Bank != nil {
		c.Bank = strings.TrimSpace(*p.Bank)
	}
	if p.Logo != nil {
		c.Logo = strings.TrimSpace(*p.Logo)
	}
	if p.ClosingDay != nil {
		c.ClosingDay = *p.ClosingDay
	}
	if p.DueDay != nil {
		c.DueDay = *p.DueDay
	}
	return c
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return invalid("name", ErrEmptyCategoryName)
	}
	if strings.ContainsAny(c.Name, " \t\n/") {
		return invalid("name", errors.New("category name must not contain spaces or slashes"))
	}
	return validateName("label", c.Label)
}

func (p PurchaseInput) Validate() error {
	if p.CardID <= 0 {
		return invalid("cardId", ErrCardReferenceMissing)
	}
	if err := p.PurchaseDate.Validate(); err != nil {
		return invalid("purchaseDate", err)
	}
	if err := validateName("name", p.Name); err != nil {
		return err
	}
	if err := p.TotalValue.Validate(); err != nil {
		return invalid("totalValue", err)
	}
	if p.TotalInstallments < 1 || p.TotalInstallments > MaxInstallments {
		return invalid("totalInstallments", ErrInvalidInstallments)
	}
	if p.TotalValue.Cents < int64(p.TotalInstallments) {
		return invalid("totalValue", errors.New("amount smaller than one cent per installment"))
	}
	return nil
}

// SiblingKey returns the key shared by all installments of the same purchase.
func (i Installment) SiblingKey() SiblingKey {
	return SiblingKey{
		GroupID:           i.GroupID,
		CardID:            i.CardID,
		PurchaseDate:      i.PurchaseDate,
		Name:              i.Name,
		TotalValue:        i.TotalValue,
		TotalInstallments: i.TotalInstallments,
	}
}

// Key returns the (month, card) pair the installment is billed to.
func (i Installment) Key() InvoiceKey {
	return InvoiceKey{Month: i.InvoiceMonth, CardID: i.CardID}
}

// Matches reports whether the installment belongs to the sibling set described by k.
func (k SiblingKey) Matches(i Installment) bool {
	if k.GroupID != "" {
		return i.GroupID == k.GroupID
	}
	return i.GroupID == "" &&
		i.CardID == k.CardID &&
		i.PurchaseDate.Equal(k.PurchaseDate.Time) &&
		i.Name == k.Name &&
		i.TotalValue == k.TotalValue &&
		i.TotalInstallments == k.TotalInstallments
}

func (k InvoiceKey) String() string {
	return fmt.Sprintf("%s/%d", k.Month, k.CardID)
}
