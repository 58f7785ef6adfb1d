package units

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
)

func TestUsagePriceAcoCarbono(t *testing.T) {
	got, err := UsagePrice(decimal.RequireFromString("8.20"), decimal.NewFromInt(1000))
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(decimal.RequireFromString("0.0082")) {
		t.Fatalf("usage price = %s, want 0.0082", got)
	}

	got, err = UsagePrice(decimal.RequireFromString("9.02"), decimal.NewFromInt(1000))
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(decimal.RequireFromString("0.00902")) {
		t.Fatalf("usage price = %s, want 0.00902", got)
	}
}

func TestUsagePriceRejectsNonPositiveFactor(t *testing.T) {
	for _, f := range []string{"0", "-1", "-0.001"} {
		if _, err := UsagePrice(decimal.NewFromInt(10), decimal.RequireFromString(f)); !errors.Is(err, ErrInvalidConversionFactor) {
			t.Errorf("factor %s: err = %v, want ErrInvalidConversionFactor", f, err)
		}
		if _, err := PurchasePrice(decimal.NewFromInt(10), decimal.RequireFromString(f)); !errors.Is(err, ErrInvalidConversionFactor) {
			t.Errorf("factor %s: inverse err = %v, want ErrInvalidConversionFactor", f, err)
		}
	}
}

func TestUsagePriceRoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	tol := decimal.RequireFromString("0.0001")
	for i := 0; i < 2000; i++ {
		p := decimal.NewFromFloat(rnd.Float64() * 10000).Round(4)
		f := decimal.NewFromFloat(0.001 + rnd.Float64()*100000).Round(6)
		if f.Sign() <= 0 {
			continue
		}
		u, err := UsagePrice(p, f)
		if err != nil {
			t.Fatal(err)
		}
		back, err := PurchasePrice(u, f)
		if err != nil {
			t.Fatal(err)
		}
		if back.Sub(p).Abs().GreaterThan(tol) {
			t.Fatalf("round trip p=%s f=%s -> %s", p, f, back)
		}
	}
}

func TestConversionToUsage(t *testing.T) {
	c := Conversion{Purchase: KG, Usage: G, Factor: decimal.NewFromInt(1000)}

	q, err := c.ToUsage(decimal.RequireFromString("1.5"), "kg")
	if err != nil {
		t.Fatal(err)
	}
	if !q.Equal(decimal.NewFromInt(1500)) {
		t.Fatalf("1.5 kg = %s g, want 1500", q)
	}

	q, err = c.ToUsage(decimal.NewFromInt(250), G)
	if err != nil {
		t.Fatal(err)
	}
	if !q.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("250 g = %s, want 250", q)
	}

	if _, err := c.ToUsage(decimal.NewFromInt(1), M); !errors.Is(err, ErrIncompatibleUnit) {
		t.Fatalf("err = %v, want ErrIncompatibleUnit", err)
	}
}

func TestResolve(t *testing.T) {
	cases := []struct {
		in    string
		want  Code
		known bool
	}{
		{"kg", KG, true},
		{" Kg ", KG, true},
		{"KGS", KG, true},
		{"pç", PC, true},
		{"Peça", PC, true},
		{"und", UN, true},
		{"bobina", BOBINA, true},
		{"Carretel 500m", "Carretel 500m", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := Resolve(tc.in)
		if got != tc.want || ok != tc.known {
			t.Errorf("Resolve(%q) = %q,%v want %q,%v", tc.in, got, ok, tc.want, tc.known)
		}
		again, _ := Resolve(string(got))
		if again != got {
			t.Errorf("Resolve not idempotent for %q: %q -> %q", tc.in, got, again)
		}
	}
}

func TestConversionPurchasePriceFrom(t *testing.T) {
	c := Conversion{Purchase: KG, Usage: G, Factor: decimal.NewFromInt(1000)}

	p, err := c.PurchasePriceFrom(decimal.RequireFromString("0.0082"), "g")
	if err != nil {
		t.Fatal(err)
	}
	if !p.Equal(decimal.RequireFromString("8.2")) {
		t.Errorf("0.0082/g = %s/kg, want 8.2", p)
	}
	if p, _ := c.PurchasePriceFrom(decimal.RequireFromString("8.2"), "KGS"); !p.Equal(decimal.RequireFromString("8.2")) {
		t.Errorf("price in purchase unit changed to %s", p)
	}
	if _, err := c.PurchasePriceFrom(decimal.NewFromInt(1), CX); !errors.Is(err, ErrIncompatibleUnit) {
		t.Errorf("err = %v, want ErrIncompatibleUnit", err)
	}
}
