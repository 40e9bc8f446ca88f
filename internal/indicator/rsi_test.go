package indicator

import "testing"

func TestRSIBootstrapMatchesReferenceWithinTolerance(t *testing.T) {
	closes := []float64{
		44.34, 44.09, 44.15, 43.61, 44.33, 44.83, 45.10, 45.42, 45.84, 46.08,
		45.89, 46.03, 45.61, 46.28, 46.28, 46.00, 46.03, 46.41, 46.22, 45.64,
		46.21, 46.25, 45.71, 46.45, 45.78, 45.35,
	}
	r := NewRSI(14)
	var last float64
	for i, c := range closes {
		last = r.Next(c)
		if i == 14 { // 15th input, 0-indexed
			if diff := abs(last - 70.53); diff > 0.01 {
				t.Fatalf("expected RSI ~70.53 on 15th input, got %.4f", last)
			}
		}
	}
	if diff := abs(last - 37.77); diff > 0.01 {
		t.Fatalf("expected RSI ~37.77 on final input, got %.4f", last)
	}
}
