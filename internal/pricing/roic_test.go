package pricing

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestSuggestedRoic(t *testing.T) {
	// 3000/100000*100 = 3.0, already at the floor.
	nearlyEqual(t, "suggested", SuggestedRoic(3000, 100000), 3.0)
	nearlyEqual(t, "suggested mid", SuggestedRoic(5000, 100000), 5.0)
	nearlyEqual(t, "suggested clamped low", SuggestedRoic(1000, 100000), 3.0)
	nearlyEqual(t, "suggested clamped high", SuggestedRoic(12000, 100000), 8.0)
	nearlyEqual(t, "suggested no fleet value", SuggestedRoic(3000, 0), 3.0)
}

func TestAdjustedTotal(t *testing.T) {
	nearlyEqual(t, "adjustedTotal", AdjustedTotal(2.5, 100000), 2500)
	nearlyEqual(t, "adjustedTotal zero value", AdjustedTotal(2.5, 0), 0)
}

func TestAnnualEquivalent_RoundTrip(t *testing.T) {
	for _, monthly := range []float64{3.0, 4.25, 8.0} {
		annual := AnnualEquivalent(monthly)
		back := (math.Pow(1+annual/100, 1.0/12) - 1) * 100
		if math.Abs(back-monthly) > 1e-6 {
			t.Fatalf("round trip drifted: %v -> %v -> %v", monthly, annual, back)
		}
	}
}

func TestEstimatedRoic_ResidualAssumption(t *testing.T) {
	// 3000*24 + 60000 residual = 132000 revenue on 100000 invested over 24
	// months: (32000/100000)/24*100.
	nearlyEqual(t, "estimatedRoic", EstimatedRoic(3000, 100000, 24), 32000.0/100000/24*100)
	nearlyEqual(t, "estimatedRoic zero value", EstimatedRoic(3000, 0, 24), 0)
}

func TestAdjustment_AtSuggestedNeedsNoJustification(t *testing.T) {
	adj := Suggest(3000, 100000)
	if adj.State != StateSuggested {
		t.Fatalf("expected suggested state, got %s", adj.State)
	}
	nearlyEqual(t, "roic", adj.Roic, 3.0)
	if !adj.Final() {
		t.Fatal("suggested price is final without extra input")
	}

	moved := adj.WithRoic(adj.Suggested, 100000)
	if moved.State != StateJustified {
		t.Fatalf("roic == suggested must be justified directly, got %s", moved.State)
	}
}

func TestAdjustment_BelowFloorRequiresJustification(t *testing.T) {
	adj := Suggest(5000, 100000).WithRoic(4.999, 100000)
	if adj.State != StateUnjustified {
		t.Fatalf("expected unjustified below the floor, got %s", adj.State)
	}
	if adj.Final() {
		t.Fatal("unjustified adjustment must not be final")
	}

	if _, err := adj.Accept(time.Now()); !errors.Is(err, ErrUnjustifiedAdjustment) {
		t.Fatalf("expected ErrUnjustifiedAdjustment, got %v", err)
	}

	if _, err := adj.WithJustification(Justification{Reason: "fleet deal"}); !errors.Is(err, ErrIncompleteJustification) {
		t.Fatalf("expected ErrIncompleteJustification, got %v", err)
	}

	justified, err := adj.WithJustification(Justification{Reason: "fleet deal", AuthorizedBy: "commercial director"})
	if err != nil {
		t.Fatalf("WithJustification error: %v", err)
	}
	if justified.State != StateJustified || !justified.Final() {
		t.Fatalf("expected justified final adjustment, got %s", justified.State)
	}
}

func TestAdjustment_RaisingClearsPendingJustification(t *testing.T) {
	adj := Suggest(5000, 100000).WithRoic(4.0, 100000)
	if adj.State != StateUnjustified {
		t.Fatalf("expected unjustified, got %s", adj.State)
	}

	raised := adj.WithRoic(5.5, 100000)
	if raised.State != StateJustified {
		t.Fatalf("raising above the floor must clear the requirement, got %s", raised.State)
	}
	if raised.Justification != nil {
		t.Fatal("no justification should survive a slider move")
	}
}

func TestAdjustment_SliderClampedToBounds(t *testing.T) {
	adj := Suggest(5000, 100000)

	low := adj.WithRoic(-1.0, 100000)
	nearlyEqual(t, "clamped low", low.Roic, 0)
	if low.State != StateUnjustified {
		t.Fatalf("zeroed override is below the floor, got %s", low.State)
	}

	high := adj.WithRoic(12.0, 100000)
	nearlyEqual(t, "clamped high", high.Roic, MaxRoicPercent)
}

func TestAdjustment_ExampleFromNegotiation(t *testing.T) {
	// totalCost=3000/month on a 100000 fleet: suggested 3.0%; a manual
	// 2.5% is allowed but needs a justification; it prices at 2500.
	adj := Suggest(3000, 100000).WithRoic(2.5, 100000)
	nearlyEqual(t, "roic", adj.Roic, 2.5)
	nearlyEqual(t, "adjustedTotal", adj.AdjustedTotal, 2500)
	if adj.State != StateUnjustified {
		t.Fatalf("expected unjustified, got %s", adj.State)
	}
}

func TestAdjustment_AcceptedRecordIsImmutable(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	adj := Suggest(5000, 100000).WithRoic(4.0, 100000)
	adj, err := adj.WithJustification(Justification{Reason: "retention", AuthorizedBy: "head of sales"})
	if err != nil {
		t.Fatalf("WithJustification error: %v", err)
	}

	entry, err := adj.Accept(now)
	if err != nil {
		t.Fatalf("Accept error: %v", err)
	}

	// Moving the slider afterwards must not reach into the audit record.
	adj = adj.WithRoic(6.0, 100000)
	if entry.Justification == nil || entry.Justification.Reason != "retention" {
		t.Fatalf("audit entry mutated: %+v", entry.Justification)
	}
	nearlyEqual(t, "audit roic", entry.Roic, 4.0)
	if !entry.RecordedAt.Equal(now) {
		t.Fatalf("expected recorded_at %v, got %v", now, entry.RecordedAt)
	}
}
