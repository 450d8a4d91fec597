package pricing

import (
	"errors"
	"math"
	"testing"

	"fleetquote/internal/rates"
)

func nearlyEqual(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
}

func TestDepreciation_ReferenceVehicle(t *testing.T) {
	params := rates.Defaults().Params

	// 100000 * (0.015*(25-24)/12) * (1+((3000-1000)/5000)*0.05) * (1+(3-1)*0.10)
	got, err := Depreciation(100000, 24, 3000, 3, params)
	if err != nil {
		t.Fatalf("Depreciation error: %v", err)
	}
	nearlyEqual(t, "depreciation", got, 153.0)
}

func TestDepreciation_ShorterContractsDepreciateFaster(t *testing.T) {
	params := rates.Defaults().Params

	short, err := Depreciation(100000, 6, 1000, 1, params)
	if err != nil {
		t.Fatalf("Depreciation error: %v", err)
	}
	long, err := Depreciation(100000, 24, 1000, 1, params)
	if err != nil {
		t.Fatalf("Depreciation error: %v", err)
	}
	if short <= long {
		t.Fatalf("6-month contract should out-depreciate 24-month: %v vs %v", short, long)
	}
}

func TestDepreciation_RejectsOutOfRangeSeverity(t *testing.T) {
	params := rates.Defaults().Params

	for _, severity := range []int{0, 7, -1} {
		if _, err := Depreciation(100000, 24, 3000, severity, params); !errors.Is(err, ErrInvalidSeverity) {
			t.Fatalf("severity %d: expected ErrInvalidSeverity, got %v", severity, err)
		}
	}
}

func TestDepreciation_NonPositiveValueCostsNothing(t *testing.T) {
	params := rates.Defaults().Params

	for _, value := range []float64{0, -5000} {
		got, err := Depreciation(value, 24, 3000, 3, params)
		if err != nil {
			t.Fatalf("Depreciation error: %v", err)
		}
		nearlyEqual(t, "depreciation", got, 0)
	}
}

func TestClampSeverity(t *testing.T) {
	cases := []struct{ in, want int }{
		{0, 3},
		{1, 1},
		{3, 3},
		{6, 6},
		{7, 3},
		{-2, 3},
	}
	for _, tc := range cases {
		if got := ClampSeverity(tc.in); got != tc.want {
			t.Fatalf("ClampSeverity(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
