package model

import (
	"encoding/json"
	"math"
	"testing"
)

func TestParseSleepRecordTolerant(t *testing.T) {
	payload := json.RawMessage(`{
		"id": "sleep-1",
		"day": "2026-09-01",
		"score": 83,
		"contributors": {
			"total_sleep": 27000,
			"deep_sleep": 5400,
			"rem_sleep": 6300
		},
		"average_hrv": 48.2,
		"bedtime_start": "2026-08-31T22:41:00+02:00",
		"bedtime_end": "not-a-timestamp"
	}`)

	record, err := ParseSleepRecord(payload)
	if err != nil {
		t.Fatalf("parse sleep: %v", err)
	}
	if record.Day != "2026-09-01" || *record.Score != 83 {
		t.Fatalf("unexpected record: %+v", record)
	}
	if *record.TotalDuration != 27000 {
		t.Fatalf("expected duration from contributors, got %v", record.TotalDuration)
	}
	if record.BedtimeStart == nil {
		t.Fatal("expected parsed bedtime start")
	}
	if record.BedtimeEnd != nil {
		t.Fatal("unparseable bedtime end must be nil, not an error")
	}
	if record.Efficiency != nil {
		t.Fatal("absent contributor must stay nil")
	}

	if got := record.HoursSlept(); got != 7.5 {
		t.Fatalf("expected 7.5 hours slept, got %v", got)
	}
}

func TestSleepQualityBuckets(t *testing.T) {
	tests := []struct {
		score *int
		want  SleepQuality
	}{
		{nil, SleepFair},
		{intPtr(0), SleepFair},
		{intPtr(85), SleepExcellent},
		{intPtr(70), SleepGood},
		{intPtr(60), SleepFair},
		{intPtr(59), SleepPoor},
	}
	for _, tt := range tests {
		record := SleepRecord{Score: tt.score}
		if got := record.Quality(); got != tt.want {
			t.Fatalf("score %v: expected %s, got %s", tt.score, tt.want, got)
		}
	}
}

func TestAddPeriodDetails(t *testing.T) {
	record := SleepRecord{Day: "2026-09-01"}
	record.AddPeriodDetails(json.RawMessage(`{
		"heart_rate": {"items": [58, null, 61]},
		"hrv": {"items": [42.1, 44.8]},
		"movement_30_sec": "1122",
		"sleep_phase_5_min": "4433"
	}`))

	if len(record.HeartRate5Min) != 3 {
		t.Fatalf("expected 3 heart rate items, got %d", len(record.HeartRate5Min))
	}
	if record.HeartRate5Min[1] != nil {
		t.Fatal("null sample must stay nil")
	}
	if record.Movement30Sec != "1122" || record.SleepPhase5Min != "4433" {
		t.Fatalf("unexpected series: %+v", record)
	}

	// Malformed detail payloads leave the record untouched.
	record.AddPeriodDetails(json.RawMessage(`{"heart_rate": "oops"`))
	if len(record.HeartRate5Min) != 3 {
		t.Fatal("malformed details must not clobber existing series")
	}
}

func TestReadinessLevelAndRecommendation(t *testing.T) {
	tests := []struct {
		score *int
		want  ReadinessLevel
	}{
		{nil, ReadinessMedium},
		{intPtr(0), ReadinessMedium},
		{intPtr(85), ReadinessOptimal},
		{intPtr(70), ReadinessHigh},
		{intPtr(60), ReadinessMedium},
		{intPtr(45), ReadinessLow},
	}
	for _, tt := range tests {
		record := ReadinessRecord{Score: tt.score}
		if got := record.Level(); got != tt.want {
			t.Fatalf("score %v: expected %s, got %s", tt.score, tt.want, got)
		}
	}

	low := ReadinessRecord{Score: intPtr(40)}
	if low.RecoveryRecommendation() != "Prioritize rest and recovery" {
		t.Fatalf("unexpected recommendation: %s", low.RecoveryRecommendation())
	}
}

func TestActivityIntensityLevel(t *testing.T) {
	record := ActivityRecord{
		InactiveTime:       intPtr(1000),
		LowActivityTime:    intPtr(3000),
		MediumActivityTime: intPtr(5000),
		HighActivityTime:   intPtr(200),
	}
	if got := record.IntensityLevel(); got != IntensityMedium {
		t.Fatalf("expected medium intensity, got %s", got)
	}

	rest := ActivityRecord{InactiveTime: intPtr(9000)}
	if got := rest.IntensityLevel(); got != IntensityRest {
		t.Fatalf("expected rest, got %s", got)
	}

	if got := record.ActiveHours(); math.Abs(got-8200.0/3600) > 1e-9 {
		t.Fatalf("unexpected active hours: %v", got)
	}
}

func TestParseStressRecordFromDaySummary(t *testing.T) {
	payload := json.RawMessage(`{
		"id": "stress-1",
		"day": "2026-09-01",
		"day_summary": {
			"score": 45,
			"stress_high": 3,
			"recovery_high": 5
		}
	}`)

	record, err := ParseStressRecord(payload)
	if err != nil {
		t.Fatalf("parse stress: %v", err)
	}
	if *record.Score != 45 || *record.HighPeriods != 3 {
		t.Fatalf("unexpected record: %+v", record)
	}
	if record.Level() != StressModerate {
		t.Fatalf("expected moderate stress, got %s", record.Level())
	}

	empty, err := ParseStressRecord(json.RawMessage(`{"id":"s","day":"d"}`))
	if err != nil {
		t.Fatalf("parse stress without summary: %v", err)
	}
	if empty.Level() != StressUnknown {
		t.Fatalf("expected unknown stress without score, got %s", empty.Level())
	}
}

func TestParseSpO2Record(t *testing.T) {
	record, err := ParseSpO2Record(json.RawMessage(`{
		"id": "spo2-1",
		"day": "2026-09-01",
		"spo2_percentage": {"average": 96.8}
	}`))
	if err != nil {
		t.Fatalf("parse spo2: %v", err)
	}
	if *record.Percentage != 96.8 {
		t.Fatalf("expected nested average, got %v", record.Percentage)
	}
}

func TestHeartRateVariability(t *testing.T) {
	record := HeartRateRecord{Samples: []int{60, 64, 68}}
	want := math.Sqrt(32.0 / 3.0)
	if got := record.Variability(); math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected population sigma %v, got %v", want, got)
	}

	short := HeartRateRecord{Samples: []int{60}}
	if short.Variability() != 0 {
		t.Fatal("expected zero variability for a single sample")
	}
}

func TestSnapshotCloneIsDeep(t *testing.T) {
	snap := &Snapshot{
		Sleep:  []SleepRecord{{Day: "2026-09-01"}},
		Trends: map[string]Trend{"sleep": {Current: 80}},
		Predictions: &Prediction{
			TomorrowReadiness: 75,
		},
	}

	clone := snap.Clone()
	clone.Sleep[0].Day = "changed"
	clone.Trends["sleep"] = Trend{Current: 1}
	clone.Predictions.TomorrowReadiness = 1

	if snap.Sleep[0].Day != "2026-09-01" {
		t.Fatal("clone shares sleep backing array")
	}
	if snap.Trends["sleep"].Current != 80 {
		t.Fatal("clone shares trends map")
	}
	if snap.Predictions.TomorrowReadiness != 75 {
		t.Fatal("clone shares prediction pointer")
	}
}

func intPtr(v int) *int { return &v }
