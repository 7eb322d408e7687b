package db

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestTrainingRunsNewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	for i := 1; i <= 3; i++ {
		run := TrainingRun{
			Iterations: i * 100,
			Error:      0.01 / float64(i),
			Accuracy:   0.9,
			Duration:   1500 * time.Millisecond,
			DataPoints: 30,
			Converged:  i == 3,
			TrainedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.SaveTrainingRun(ctx, run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	runs, err := store.TrainingRuns(ctx, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].Iterations != 300 || !runs[0].Converged {
		t.Fatalf("unexpected latest run %+v", runs[0])
	}
	if runs[0].Duration != 1500*time.Millisecond {
		t.Fatalf("unexpected duration %v", runs[0].Duration)
	}
}

func TestPredictionsRoundTripNaN(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now()
	records := []PredictionRecord{
		{SepalLength: 4.3, SepalWidth: 3.0, PetalLength: 1.1, PetalWidth: 0.1, Class: "setosa", Confidence: 0.97, Source: "form", CreatedAt: now.Add(-time.Second)},
		{SepalLength: math.NaN(), SepalWidth: 3.0, PetalLength: 1.1, PetalWidth: 0.1, Class: "setosa", Confidence: math.NaN(), Source: "api", CreatedAt: now},
	}
	for _, r := range records {
		if err := store.SavePrediction(ctx, r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	got, err := store.RecentPredictions(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 predictions, got %d", len(got))
	}
	if got[0].Source != "api" || !math.IsNaN(got[0].SepalLength) || !math.IsNaN(got[0].Confidence) {
		t.Fatalf("unexpected newest prediction %+v", got[0])
	}
	if got[1].PetalLength != 1.1 || got[1].Class != "setosa" {
		t.Fatalf("unexpected oldest prediction %+v", got[1])
	}
}

func TestSavePredictionRequiresClass(t *testing.T) {
	store := openTestStore(t)
	if err := store.SavePrediction(context.Background(), PredictionRecord{Source: "form"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatal("expected error")
	}
}
