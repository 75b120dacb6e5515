package compare

import (
	"math"
	"testing"
	"time"

	"dejavu/internal/domain"
)

func mkBar(minute int, o, h, l, c float64) domain.Bar {
	return domain.Bar{
		Timestamp: time.Date(2024, 5, 6, 9, minute, 0, 0, time.UTC),
		Open:      o, High: h, Low: l, Close: c,
	}
}

func TestNormalizeShapeAndRange(t *testing.T) {
	bars := []domain.Bar{
		mkBar(30, 10, 12, 9, 11),
		mkBar(35, 11, 13, 10, 12),
		mkBar(40, 12, 14, 11, 13),
	}

	p := Normalize(bars)
	if len(p) != len(bars)*4 {
		t.Fatalf("pattern length = %d, want %d", len(p), len(bars)*4)
	}
	for i, v := range p {
		if v < 0 || v > 1 {
			t.Errorf("pattern[%d] = %v, outside [0,1]", i, v)
		}
	}

	// Row-major flattening: entry 0 is the first bar's open, scaled against
	// the open column (10..12) → 0; entry 4 is the second bar's open → 0.5.
	if p[0] != 0 {
		t.Errorf("p[0] = %v, want 0 (column minimum)", p[0])
	}
	if math.Abs(p[4]-0.5) > 1e-12 {
		t.Errorf("p[4] = %v, want 0.5", p[4])
	}
	if p[8] != 1 {
		t.Errorf("p[8] = %v, want 1 (column maximum)", p[8])
	}
}

func TestNormalizeScaleInvariance(t *testing.T) {
	base := []domain.Bar{
		mkBar(30, 10, 12, 9, 11),
		mkBar(35, 11, 13, 10, 12),
	}
	// Same shape at 100x the price level.
	scaled := []domain.Bar{
		mkBar(30, 1000, 1200, 900, 1100),
		mkBar(35, 1100, 1300, 1000, 1200),
	}

	pa, pb := Normalize(base), Normalize(scaled)
	if len(pa) != len(pb) {
		t.Fatalf("pattern lengths differ: %d vs %d", len(pa), len(pb))
	}
	for i := range pa {
		if math.Abs(pa[i]-pb[i]) > 1e-12 {
			t.Errorf("patterns diverge at %d: %v vs %v", i, pa[i], pb[i])
		}
	}
}

func TestNormalizeConstantColumn(t *testing.T) {
	// Close is constant across the window; the other columns vary.
	bars := []domain.Bar{
		mkBar(30, 10, 12, 9, 11),
		mkBar(35, 11, 13, 10, 11),
	}

	p := Normalize(bars) // must not panic
	// Close entries sit at offsets 3 and 7 in row-major O,H,L,C layout.
	if p[3] != constantColumnValue || p[7] != constantColumnValue {
		t.Errorf("constant column entries = %v, %v; want %v", p[3], p[7], constantColumnValue)
	}
}

func TestNormalizeAllConstant(t *testing.T) {
	bars := []domain.Bar{
		mkBar(30, 5, 5, 5, 5),
		mkBar(35, 5, 5, 5, 5),
	}

	p := Normalize(bars)
	for i, v := range p {
		if v != constantColumnValue {
			t.Errorf("p[%d] = %v, want %v for fully flat window", i, v, constantColumnValue)
		}
	}
}

func TestNormalizeEmpty(t *testing.T) {
	if p := Normalize(nil); len(p) != 0 {
		t.Errorf("Normalize(nil) = %v, want zero-length pattern", p)
	}
	if p := Normalize([]domain.Bar{}); len(p) != 0 {
		t.Errorf("Normalize(empty) = %v, want zero-length pattern", p)
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	bars := []domain.Bar{
		mkBar(30, 10, 12, 9, 11),
		mkBar(35, 11, 13, 10, 12),
	}
	a, b := Normalize(bars), Normalize(bars)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("normalization not deterministic at index %d", i)
		}
	}
}
