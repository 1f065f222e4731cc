package domain

import (
	"testing"
	"time"
)

func TestParseDateOfBirth_Formats(t *testing.T) {
	t.Parallel()

	want := time.Date(1990, time.March, 7, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"1990-03-07", "07/03/1990", " 1990-03-07 "} {
		got, ok := ParseDateOfBirth(in)
		if !ok || !got.Equal(want) {
			t.Fatalf("ParseDateOfBirth(%q)=%v,%v want %v,true", in, got, ok, want)
		}
	}
	for _, in := range []string{"", "03-07-1990", "1990/03/07", "7/3/1990", "not a date", "31/02/1990"} {
		if _, ok := ParseDateOfBirth(in); ok {
			t.Fatalf("ParseDateOfBirth(%q) ok=true, want false", in)
		}
	}
}

func TestDonorAge_DaysOver365(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.June, 15, 13, 0, 0, 0, time.UTC)

	if age, ok := DonorAge("1984-06-15", now); !ok || age != 40 {
		t.Fatalf("DonorAge(1984-06-15)=%d,%v want 40,true", age, ok)
	}
	if age, ok := DonorAge("16/06/2006", now); !ok || age != 18 {
		// 6574 days / 365 = 18 (leap days push the day-count rule past the birthday).
		t.Fatalf("DonorAge(16/06/2006)=%d,%v want 18,true", age, ok)
	}
	if age, ok := DonorAge("2007-06-15", now); !ok || age != 17 {
		t.Fatalf("DonorAge(2007-06-15)=%d,%v want 17,true", age, ok)
	}
	if age, ok := DonorAge("0001-01-01", now); !ok || age != 2024 {
		t.Fatalf("DonorAge(0001-01-01)=%d,%v want 2024,true", age, ok)
	}
	if age, ok := DonorAge("01/03/1700", now); !ok || age != 324 {
		t.Fatalf("DonorAge(01/03/1700)=%d,%v want 324,true", age, ok)
	}
	if _, ok := DonorAge("garbage", now); ok {
		t.Fatalf("DonorAge(garbage) ok=true, want false")
	}
	if _, ok := DonorAge("2030-01-01", now); ok {
		t.Fatalf("DonorAge(future) ok=true, want false")
	}
}
