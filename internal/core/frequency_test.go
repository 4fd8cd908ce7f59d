package core

import (
	"errors"
	"testing"
)

func TestStep(t *testing.T) {
	tests := []struct {
		name string
		from Date
		freq Frequency
		want Date
	}{
		{"daily", NewDate(2024, 2, 28), Daily, NewDate(2024, 2, 29)},
		{"daily across year", NewDate(2023, 12, 31), Daily, NewDate(2024, 1, 1)},
		{"weekly", NewDate(2024, 1, 29), Weekly, NewDate(2024, 2, 5)},
		{"monthly", NewDate(2024, 1, 15), Monthly, NewDate(2024, 2, 15)},
		{"monthly clamps in leap year", NewDate(2024, 1, 31), Monthly, NewDate(2024, 2, 29)},
		{"monthly clamps in common year", NewDate(2023, 1, 31), Monthly, NewDate(2023, 2, 28)},
		{"monthly to 30-day month", NewDate(2024, 3, 31), Monthly, NewDate(2024, 4, 30)},
		{"quarterly", NewDate(2024, 1, 10), Quarterly, NewDate(2024, 4, 10)},
		{"quarterly clamps", NewDate(2024, 11, 30), Quarterly, NewDate(2025, 2, 28)},
		{"yearly", NewDate(2024, 6, 1), Yearly, NewDate(2025, 6, 1)},
		{"yearly from leap day", NewDate(2024, 2, 29), Yearly, NewDate(2025, 2, 28)},
		{"one-time never advances", NewDate(2024, 5, 5), OneTime, NewDate(2024, 5, 5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Step(tt.from, tt.freq)
			if err != nil {
				t.Fatalf("Step() error = %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Step(%s, %s) = %s, want %s", tt.from, tt.freq, got, tt.want)
			}
		})
	}
}

func TestStepUnknownFrequency(t *testing.T) {
	_, err := Step(NewDate(2024, 1, 1), "every-second-tuesday")
	if !errors.Is(err, ErrUnknownFrequency) {
		t.Fatalf("Step() error = %v, want ErrUnknownFrequency", err)
	}
}

func TestAddPeriodsMonthEndAcrossLeapYear(t *testing.T) {
	anchor := NewDate(2023, 12, 31)
	want := []Date{
		NewDate(2023, 12, 31),
		NewDate(2024, 1, 31),
		NewDate(2024, 2, 29),
		NewDate(2024, 3, 31),
		NewDate(2024, 4, 30),
		NewDate(2024, 5, 31),
		NewDate(2024, 6, 30),
	}
	for n, w := range want {
		got, err := AddPeriods(anchor, Monthly, n)
		if err != nil {
			t.Fatalf("AddPeriods(%d) error = %v", n, err)
		}
		if !got.Equal(w) {
			t.Errorf("AddPeriods(%s, monthly, %d) = %s, want %s", anchor, n, got, w)
		}
	}

	// 2025 is not a leap year.
	got, _ := AddPeriods(anchor, Monthly, 14)
	if !got.Equal(NewDate(2025, 2, 28)) {
		t.Errorf("AddPeriods(..., 14) = %s, want 2025-02-28", got)
	}
}

func TestAddPeriodsNegative(t *testing.T) {
	got, err := AddPeriods(NewDate(2024, 3, 31), Monthly, -1)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(NewDate(2024, 2, 29)) {
		t.Errorf("one month before 2024-03-31 = %s, want 2024-02-29", got)
	}
	got, _ = AddPeriods(NewDate(2024, 1, 15), Weekly, -1)
	if !got.Equal(NewDate(2024, 1, 8)) {
		t.Errorf("one week before 2024-01-15 = %s", got)
	}
}

func TestPeriodIndex(t *testing.T) {
	tests := []struct {
		name   string
		anchor Date
		date   Date
		freq   Frequency
		want   int
	}{
		{"before anchor", NewDate(2024, 1, 15), NewDate(2024, 1, 14), Monthly, -1},
		{"on anchor", NewDate(2024, 1, 15), NewDate(2024, 1, 15), Monthly, 0},
		{"monthly between occurrences", NewDate(2024, 1, 15), NewDate(2024, 4, 20), Monthly, 3},
		{"monthly just before occurrence", NewDate(2024, 1, 15), NewDate(2024, 4, 14), Monthly, 2},
		{"month-end clamped occurrence", NewDate(2024, 1, 31), NewDate(2024, 2, 29), Monthly, 1},
		{"month-end day after clamp", NewDate(2024, 1, 31), NewDate(2024, 3, 30), Monthly, 1},
		{"quarterly", NewDate(2024, 1, 10), NewDate(2024, 8, 1), Quarterly, 2},
		{"yearly", NewDate(2020, 2, 29), NewDate(2024, 2, 28), Yearly, 3},
		{"daily", NewDate(2024, 1, 1), NewDate(2024, 3, 1), Daily, 60},
		{"weekly partial week", NewDate(2024, 1, 1), NewDate(2024, 1, 20), Weekly, 2},
		{"one-time", NewDate(2024, 1, 1), NewDate(2025, 1, 1), OneTime, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PeriodIndex(tt.anchor, tt.date, tt.freq)
			if err != nil {
				t.Fatalf("PeriodIndex() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("PeriodIndex(%s, %s, %s) = %d, want %d", tt.anchor, tt.date, tt.freq, got, tt.want)
			}
		})
	}
}

func TestFrequencyIsValid(t *testing.T) {
	for _, f := range []Frequency{Daily, Weekly, Monthly, Quarterly, Yearly, OneTime} {
		if !f.IsValid() {
			t.Errorf("%s should be valid", f)
		}
	}
	if Frequency("hourly").IsValid() {
		t.Error("hourly should not be valid")
	}
}
