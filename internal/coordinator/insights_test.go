package coordinator

import (
	"strings"
	"testing"

	"ouralink/internal/model"
)

func TestBuildInsightsEmptySnapshot(t *testing.T) {
	insights := buildInsights(&model.Snapshot{})
	if len(insights) != 0 {
		t.Fatalf("expected no insights for empty snapshot, got %v", insights)
	}
}

func TestBuildInsightsDaily(t *testing.T) {
	snap := &model.Snapshot{
		Readiness: []model.ReadinessRecord{
			{Day: "2026-09-01", Score: intPtr(88)},
		},
		Activity: []model.ActivityRecord{
			{Day: "2026-09-01", Steps: intPtr(10432)},
		},
		WellnessPhase: model.PhasePeak,
	}

	insights := buildInsights(snap)
	daily, ok := insights["daily"]
	if !ok {
		t.Fatalf("expected daily insight, got %v", insights)
	}
	if !strings.Contains(daily, "Readiness is 88 (optimal)") {
		t.Fatalf("unexpected daily insight: %s", daily)
	}
	if !strings.Contains(daily, "10432 steps") {
		t.Fatalf("expected step count in insight: %s", daily)
	}
	if !strings.Contains(daily, "peak phase") {
		t.Fatalf("expected phase guidance: %s", daily)
	}

	if _, ok := insights["sleep"]; ok {
		t.Fatal("no sleep data means no sleep insight")
	}
}

func TestBuildInsightsSleep(t *testing.T) {
	total := 28800 // 8 hours
	deep := 2880   // 10%
	rem := 7200    // 25%
	snap := &model.Snapshot{
		Sleep: []model.SleepRecord{
			{
				Day:           "2026-09-01",
				Score:         intPtr(74),
				TotalDuration: &total,
				DeepDuration:  &deep,
				RemDuration:   &rem,
			},
		},
		Circadian: model.CircadianAlignment{OptimalBedtime: "22:45"},
	}

	insights := buildInsights(snap)
	sleep, ok := insights["sleep"]
	if !ok {
		t.Fatalf("expected sleep insight, got %v", insights)
	}
	if !strings.Contains(sleep, "good (74)") {
		t.Fatalf("unexpected quality text: %s", sleep)
	}
	if !strings.Contains(sleep, "Deep sleep was 10.0%") {
		t.Fatalf("expected deep sleep percentage: %s", sleep)
	}
	if !strings.Contains(sleep, "Deep sleep is on the low side") {
		t.Fatalf("expected low deep sleep advice: %s", sleep)
	}
	if !strings.Contains(sleep, "22:45") {
		t.Fatalf("expected bedtime anchor: %s", sleep)
	}

	// Deterministic output for a fixed snapshot.
	again := buildInsights(snap)
	if again["sleep"] != sleep {
		t.Fatal("insights must be deterministic")
	}
}
