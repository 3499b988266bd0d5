package engine

import (
	"context"
	"testing"
	"time"

	"github.com/lazypower/psyche/internal/store"
)

func TestMethodMultiplier(t *testing.T) {
	tests := []struct {
		method string
		want   float64
	}{
		{"gift", 1.0},
		{"created", 0.9},
		{"stolen", 0.8},
		{"inherited", 0.8},
		{"traded", 0.7},
		{"conjured", 0.7},
		{"found", 0.6},
		{"purchased", 0.5},
		{" Gift ", 1.0},
		{"borrowed", 0.5},
		{"", 0.5},
	}
	for _, tt := range tests {
		if got := MethodMultiplier(tt.method); got != tt.want {
			t.Errorf("MethodMultiplier(%q) = %v, want %v", tt.method, got, tt.want)
		}
	}
}

func TestAttunementMonotonicAndSaturating(t *testing.T) {
	prev := -1.0
	for h := 0.0; h <= 96; h += 0.5 {
		got := Attunement(h, 0)
		if got < prev {
			t.Fatalf("Attunement(%v, 0) = %v decreased from %v", h, got, prev)
		}
		if h >= 48 && got != 1.0 {
			t.Errorf("Attunement(%v, 0) = %v, want saturated 1.0", h, got)
		}
		prev = got
	}

	prev = -1.0
	for n := 0; n <= 20; n++ {
		got := Attunement(0, n)
		if got < prev {
			t.Fatalf("Attunement(0, %d) = %v decreased from %v", n, got, prev)
		}
		if n >= 5 && !approx(got, 0.5) {
			t.Errorf("Attunement(0, %d) = %v, want saturated 0.5", n, got)
		}
		prev = got
	}

	if got := Attunement(1000, 1000); !approx(got, 1.5) {
		t.Errorf("Attunement upper bound = %v, want 1.5", got)
	}
	if got := Attunement(-5, -3); got != 0 {
		t.Errorf("Attunement(negative) = %v, want 0", got)
	}
}

func TestItemWeight(t *testing.T) {
	item := store.InventoryItem{
		AcquiredAt:        testNow.Add(-24 * time.Hour).UnixMilli(),
		AcquisitionMethod: "found",
		InteractionCount:  2,
	}
	// (0.5 + 0.2) × 0.6
	if got := ItemWeight(item, testNow); !approx(got, 0.42) {
		t.Errorf("ItemWeight = %v, want 0.42", got)
	}
}

func TestComputeObjectInfluenceSingleItem(t *testing.T) {
	eng, db, _ := testEngine(t)
	ctx := context.Background()

	putObject(t, db, "locket", store.PAD{P: 0.6, A: 0.2, D: 0.0}, "family")
	giveItem(t, db, "ada", "locket", "gift", testNow.Add(-48*time.Hour), 5)

	oi, err := eng.ComputeObjectInfluence(ctx, "ada")
	if err != nil {
		t.Fatalf("ComputeObjectInfluence: %v", err)
	}
	if oi.P != 0.6 || oi.A != 0.2 || oi.D != 0.0 {
		t.Errorf("PAD = %+v, want {0.6 0.2 0}", oi.PAD)
	}
	if oi.TotalWeight != 1.5 {
		t.Errorf("TotalWeight = %v, want 1.5", oi.TotalWeight)
	}
	if oi.DomainWeights["family"] != 1.5 {
		t.Errorf("DomainWeights = %v, want family=1.5", oi.DomainWeights)
	}

	stored, err := db.GetInfluence(ctx, "ada")
	if err != nil {
		t.Fatalf("GetInfluence: %v", err)
	}
	if stored == nil || stored.P != 0.6 || stored.TotalWeight != 1.5 {
		t.Errorf("stored = %+v", stored)
	}
}

func TestComputeObjectInfluenceWeightedAverage(t *testing.T) {
	eng, db, _ := testEngine(t)
	ctx := context.Background()

	putObject(t, db, "sword", store.PAD{P: 1.0, A: 0.5, D: 1.0}, "war")
	putObject(t, db, "ledger", store.PAD{P: -1.0, A: -0.5, D: 0.0}, "trade")
	putObject(t, db, "pebble", store.PAD{P: 0.0, A: 0.0, D: 0.0}, "war")
	giveItem(t, db, "ada", "sword", "gift", testNow.Add(-72*time.Hour), 9)      // 1.5
	giveItem(t, db, "ada", "ledger", "purchased", testNow.Add(-48*time.Hour), 0) // 0.5
	giveItem(t, db, "ada", "pebble", "mystery", testNow, 0)                     // 0

	oi, err := eng.ComputeObjectInfluence(ctx, "ada")
	if err != nil {
		t.Fatalf("ComputeObjectInfluence: %v", err)
	}
	// P = (1.5×1 + 0.5×-1) / 2.0, A = (0.75 - 0.25) / 2.0, D = 1.5 / 2.0
	if oi.P != 0.5 || oi.A != 0.25 || oi.D != 0.75 {
		t.Errorf("PAD = %+v, want {0.5 0.25 0.75}", oi.PAD)
	}
	if oi.TotalWeight != 2.0 {
		t.Errorf("TotalWeight = %v, want 2", oi.TotalWeight)
	}
	if oi.DomainWeights["war"] != 1.5 || oi.DomainWeights["trade"] != 0.5 {
		t.Errorf("DomainWeights = %v", oi.DomainWeights)
	}
}

func TestComputeObjectInfluenceZeroWeight(t *testing.T) {
	eng, db, _ := testEngine(t)

	putObject(t, db, "coin", store.PAD{P: 0.9, A: 0.9, D: 0.9}, "")
	giveItem(t, db, "ada", "coin", "found", testNow, 0)

	oi, err := eng.ComputeObjectInfluence(context.Background(), "ada")
	if err != nil {
		t.Fatalf("ComputeObjectInfluence: %v", err)
	}
	if oi == nil {
		t.Fatal("expected zero influence row, got nil")
	}
	if oi.P != 0 || oi.A != 0 || oi.D != 0 || oi.TotalWeight != 0 {
		t.Errorf("influence = %+v, want all zeros", oi)
	}
}

func TestComputeObjectInfluenceEmptyDeletes(t *testing.T) {
	eng, db, _ := testEngine(t)
	ctx := context.Background()

	putObject(t, db, "locket", store.PAD{P: 0.6}, "")
	itemID := giveItem(t, db, "ada", "locket", "gift", testNow.Add(-48*time.Hour), 5)
	if _, err := eng.ComputeObjectInfluence(ctx, "ada"); err != nil {
		t.Fatalf("ComputeObjectInfluence: %v", err)
	}

	if ok, err := db.RemoveInventoryItem(ctx, "ada", itemID); err != nil || !ok {
		t.Fatalf("RemoveInventoryItem: ok=%v err=%v", ok, err)
	}

	oi, err := eng.ComputeObjectInfluence(ctx, "ada")
	if err != nil {
		t.Fatalf("ComputeObjectInfluence: %v", err)
	}
	if oi != nil {
		t.Errorf("expected nil influence for empty inventory, got %+v", oi)
	}
	stored, err := db.GetInfluence(ctx, "ada")
	if err != nil {
		t.Fatalf("GetInfluence: %v", err)
	}
	if stored != nil {
		t.Errorf("influence row should be deleted, got %+v", stored)
	}
}

func TestComputeObjectInfluenceIdempotentAtFixedTime(t *testing.T) {
	eng, db, now := testEngine(t)
	ctx := context.Background()

	putObject(t, db, "lute", store.PAD{P: 0.4, A: 0.3, D: -0.2}, "music")
	giveItem(t, db, "ada", "lute", "gift", testNow, 0)

	first, err := eng.ComputeObjectInfluence(ctx, "ada")
	if err != nil {
		t.Fatalf("ComputeObjectInfluence: %v", err)
	}
	second, err := eng.ComputeObjectInfluence(ctx, "ada")
	if err != nil {
		t.Fatalf("ComputeObjectInfluence: %v", err)
	}
	if first.PAD != second.PAD || first.TotalWeight != second.TotalWeight ||
		first.DomainWeights["music"] != second.DomainWeights["music"] {
		t.Errorf("not idempotent: %+v vs %+v", first, second)
	}

	// Time-based attunement grows as time passes.
	*now = now.Add(12 * time.Hour)
	later, err := eng.ComputeObjectInfluence(ctx, "ada")
	if err != nil {
		t.Fatalf("ComputeObjectInfluence: %v", err)
	}
	if later.TotalWeight != 0.25 {
		t.Errorf("TotalWeight after 12h = %v, want 0.25", later.TotalWeight)
	}
	if later.TotalWeight <= first.TotalWeight {
		t.Errorf("weight should grow with time: %v -> %v", first.TotalWeight, later.TotalWeight)
	}
}

func TestAggregateInfluenceEmpty(t *testing.T) {
	if oi := AggregateInfluence("ada", nil, testNow); oi != nil {
		t.Errorf("AggregateInfluence(nil) = %+v, want nil", oi)
	}
}
