package dates

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestIsValidDate(t *testing.T) {
	valid := []string{"2025-01-01", "2024-12-31", "2000-06-15"}
	for _, d := range valid {
		if !IsValidDate(d) {
			t.Fatalf("expected %q to be valid", d)
		}
	}

	invalid := []string{"2025/01/01", "01-01-2025", "2025-13-01", "2025-01-32", "not-a-date", "", "2025-02-30"}
	for _, d := range invalid {
		if IsValidDate(d) {
			t.Fatalf("expected %q to be invalid", d)
		}
	}
}

func TestFindFirst(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"## [[2024-05-01]]", "2024-05-01", true},
		{"- [ ] task 📅 2024-13-40 then 2024-05-02", "2024-05-02", true},
		{"no date here", "", false},
	}
	for _, tc := range tests {
		got, ok := FindFirst(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("FindFirst(%q) = %q, %v; want %q, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestLookback(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	got := Lookback(now, 2)
	want := []string{"2025-03-01", "2025-02-28", "2025-02-27"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Lookback mismatch (-want +got):\n%s", diff)
	}
	if got := Lookback(now, -1); len(got) != 1 {
		t.Fatalf("negative lookback should still include today, got %v", got)
	}
}

func TestPadClock(t *testing.T) {
	tests := map[string]string{
		"9:00":  "09:00",
		"09:30": "09:30",
		"23:59": "23:59",
		"later": "later",
	}
	for in, want := range tests {
		if got := PadClock(in); got != want {
			t.Fatalf("PadClock(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseDateArg(t *testing.T) {
	now := time.Date(2025, 2, 15, 10, 0, 0, 0, time.UTC)

	today, err := ParseDateArg("", now)
	if err != nil || !today.Equal(now) {
		t.Fatalf("empty arg should default to now, got %v err=%v", today, err)
	}

	y, err := ParseDateArg("yesterday", now)
	if err != nil || Format(y) != "2025-02-14" {
		t.Fatalf("expected 2025-02-14, got %v err=%v", y, err)
	}

	d, err := ParseDateArg("2025-02-01", now)
	if err != nil || d.Year() != 2025 || d.Month() != time.February || d.Day() != 1 {
		t.Fatalf("expected 2025-02-01, got %v err=%v", d, err)
	}

	_, err = ParseDateArg("02-01-2025", now)
	if err == nil {
		t.Fatalf("expected error for invalid date arg")
	}
}
