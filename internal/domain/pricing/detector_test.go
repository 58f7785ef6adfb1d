package pricing

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(n int) time.Time { return time.Date(2025, 1, n, 0, 0, 0, 0, time.UTC) }

func TestVariation(t *testing.T) {
	tests := []struct {
		prev, next string
		want       string
	}{
		{"10", "12", "20"},
		{"10", "8", "-20"},
		{"8.20", "9.02", "10"},
		{"3", "4", "33.3333"},
	}
	for _, tt := range tests {
		got := Variation(d(tt.prev), d(tt.next))
		if got == nil || !got.Equal(d(tt.want)) {
			t.Errorf("Variation(%s, %s) = %v, want %s", tt.prev, tt.next, got, tt.want)
		}
	}
	if v := Variation(decimal.Zero, d("5")); v != nil {
		t.Errorf("zero previous price must give nil variation, got %s", v)
	}
}

func TestDetect(t *testing.T) {
	det := NewDetector(DefaultEpsilon)
	open := &PriceRecord{MaterialID: 1, UnitPrice: d("10"), EffectiveFrom: day(1)}

	t.Run("first observation opens record", func(t *testing.T) {
		dec, err := det.Detect(nil, Observation{MaterialID: 1, Price: d("10"), ObservedAt: day(1)})
		if err != nil {
			t.Fatal(err)
		}
		if !dec.Changed || dec.Closed != nil || dec.Open.VariationPct != nil {
			t.Fatalf("unexpected decision %+v", dec)
		}
		if dec.Open.Origin != OriginManual {
			t.Errorf("origin = %q, want manual", dec.Open.Origin)
		}
	})

	t.Run("same price within epsilon", func(t *testing.T) {
		dec, err := det.Detect(open, Observation{MaterialID: 1, Price: d("10.0000001"), ObservedAt: day(2)})
		if err != nil {
			t.Fatal(err)
		}
		if dec.Changed || dec.Open.UnitPrice.String() != "10" {
			t.Fatalf("unexpected decision %+v", dec)
		}
	})

	t.Run("price change closes and opens at same instant", func(t *testing.T) {
		dec, err := det.Detect(open, Observation{MaterialID: 1, Price: d("12"), ObservedAt: day(5)})
		if err != nil {
			t.Fatal(err)
		}
		if !dec.Changed || dec.Closed == nil {
			t.Fatalf("expected change, got %+v", dec)
		}
		if !dec.Closed.EffectiveUntil.Equal(day(5)) || !dec.Open.EffectiveFrom.Equal(day(5)) {
			t.Errorf("interval boundary mismatch: closed until %v, open from %v", dec.Closed.EffectiveUntil, dec.Open.EffectiveFrom)
		}
		if !dec.Open.VariationPct.Equal(d("20")) {
			t.Errorf("variation = %s, want 20", dec.Open.VariationPct)
		}
		if open.EffectiveUntil != nil {
			t.Error("input record must not be mutated")
		}
	})

	t.Run("same instant different price", func(t *testing.T) {
		dec, err := det.Detect(open, Observation{MaterialID: 1, Price: d("11"), ObservedAt: day(1)})
		if err != nil {
			t.Fatal(err)
		}
		if !dec.Changed {
			t.Fatal("later processed observation with same date must win")
		}
	})

	t.Run("older observation rejected", func(t *testing.T) {
		later := &PriceRecord{MaterialID: 1, UnitPrice: d("10"), EffectiveFrom: day(10)}
		_, err := det.Detect(later, Observation{MaterialID: 1, Price: d("11"), ObservedAt: day(3)})
		if !errors.Is(err, ErrOutOfOrderObservation) {
			t.Fatalf("err = %v, want ErrOutOfOrderObservation", err)
		}
	})

	t.Run("non-positive price", func(t *testing.T) {
		for _, p := range []string{"0", "-1"} {
			_, err := det.Detect(open, Observation{MaterialID: 1, Price: d(p), ObservedAt: day(2)})
			if !errors.Is(err, ErrInvalidPrice) {
				t.Errorf("price %s: err = %v, want ErrInvalidPrice", p, err)
			}
		}
	})
}
