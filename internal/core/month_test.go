package core

import (
	"testing"
	"time"
)

func TestParseMonth(t *testing.T) {
	m, err := ParseMonth("2024-03")
	if err != nil || m.Year != 2024 || m.Month != time.March {
		t.Fatalf("unexpected month %v err=%v", m, err)
	}
	for _, bad := range []string{"", "2024-13", "2024/03", "24-03", "2024-3-1"} {
		if _, err := ParseMonth(bad); err == nil {
			t.Fatalf("%q expected error", bad)
		}
	}
}

func TestMonthAddMonths(t *testing.T) {
	cases := []struct {
		from string
		n    int
		want string
	}{
		{"2024-03", 0, "2024-03"},
		{"2024-03", 1, "2024-04"},
		{"2024-12", 1, "2025-01"},
		{"2024-11", 14, "2026-01"},
		{"2024-01", -1, "2023-12"},
	}
	for _, tc := range cases {
		m, _ := ParseMonth(tc.from)
		if got := m.AddMonths(tc.n).String(); got != tc.want {
			t.Fatalf("%s + %d = %s, want %s", tc.from, tc.n, got, tc.want)
		}
	}
}

func TestMonthDays(t *testing.T) {
	cases := map[string]int{"2024-02": 29, "2023-02": 28, "2024-04": 30, "2024-12": 31}
	for s, want := range cases {
		m, _ := ParseMonth(s)
		if got := m.Days(); got != want {
			t.Fatalf("%s has %d days, want %d", s, got, want)
		}
	}
}

func TestMonthTextRoundTrip(t *testing.T) {
	var m Month
	if err := m.UnmarshalText([]byte("2025-01")); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	b, _ := m.MarshalText()
	if string(b) != "2025-01" {
		t.Fatalf("got %s", b)
	}
	if !NewMonth(2024, 12).Before(m) || m.Before(NewMonth(2024, 12)) {
		t.Fatalf("ordering broken")
	}
}

func TestSummarizeInvoices(t *testing.T) {
	m := NewMonth(2024, 5)
	ov := SummarizeInvoices(m, []CardInvoice{
		{Invoice: MonthlyInvoice{Month: m, CardID: 1, Total: Money{Cents: 1500}}},
		{Invoice: MonthlyInvoice{Month: m, CardID: 2, Total: Money{Cents: 0}}},
		{Invoice: MonthlyInvoice{Month: m, CardID: 3, Total: Money{Cents: 250}}},
	})
	if ov.Total.Cents != 1750 || len(ov.Invoices) != 3 {
		t.Fatalf("unexpected overview: %+v", ov)
	}
}
