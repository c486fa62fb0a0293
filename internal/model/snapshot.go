package model

import "time"

// CircadianAlignment scores bedtime and wake-time consistency over the
// recent sleep history.
type CircadianAlignment struct {
	Aligned            bool   `json:"aligned"`
	Score              int    `json:"score"`
	OptimalBedtime     string `json:"optimal_bedtime"`
	OptimalWake        string `json:"optimal_wake"`
	BedtimeConsistency int    `json:"bedtime_consistency"`
	WakeConsistency    int    `json:"wake_consistency"`
}

func (c CircadianAlignment) Quality() string {
	switch {
	case c.Score >= 80:
		return "excellent"
	case c.Score >= 60:
		return "good"
	case c.Score >= 40:
		return "fair"
	default:
		return "poor"
	}
}

type Trend struct {
	Current   float64        `json:"current"`
	Previous  float64        `json:"previous"`
	Direction TrendDirection `json:"direction"`
}

// Prediction is a simplified heuristic estimate, not a calibrated model.
type Prediction struct {
	TomorrowReadiness        int `json:"tomorrow_readiness"`
	BedtimeAdjustmentMinutes int `json:"recommended_bedtime_adjustment"`
}

// Snapshot is the coordinator's published state: newest-first record lists
// per category plus the derived aggregates. A snapshot is replaced wholesale
// on each successful cycle, never mutated after publication.
type Snapshot struct {
	Sleep       []SleepRecord
	Readiness   []ReadinessRecord
	Activity    []ActivityRecord
	HeartRate   []HeartRateRecord
	Stress      []StressRecord
	Workouts    []WorkoutRecord
	SpO2        []SpO2Record
	Temperature []TemperatureRecord

	WellnessPhase WellnessPhase
	Circadian     CircadianAlignment
	Trends        map[string]Trend
	Insights      map[string]string
	Predictions   *Prediction

	LastUpdate         time.Time
	RateLimitRemaining int
}

// Clone copies the snapshot so a refresh cycle can assemble the next state
// without mutating the one concurrent readers hold.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return &Snapshot{}
	}
	next := *s
	next.Sleep = append([]SleepRecord(nil), s.Sleep...)
	next.Readiness = append([]ReadinessRecord(nil), s.Readiness...)
	next.Activity = append([]ActivityRecord(nil), s.Activity...)
	next.HeartRate = append([]HeartRateRecord(nil), s.HeartRate...)
	next.Stress = append([]StressRecord(nil), s.Stress...)
	next.Workouts = append([]WorkoutRecord(nil), s.Workouts...)
	next.SpO2 = append([]SpO2Record(nil), s.SpO2...)
	next.Temperature = append([]TemperatureRecord(nil), s.Temperature...)
	if s.Trends != nil {
		next.Trends = make(map[string]Trend, len(s.Trends))
		for k, v := range s.Trends {
			next.Trends[k] = v
		}
	}
	if s.Insights != nil {
		next.Insights = make(map[string]string, len(s.Insights))
		for k, v := range s.Insights {
			next.Insights[k] = v
		}
	}
	if s.Predictions != nil {
		p := *s.Predictions
		next.Predictions = &p
	}
	return &next
}

// LatestSleep returns the most recent sleep record, if any.
func (s *Snapshot) LatestSleep() *SleepRecord {
	if len(s.Sleep) == 0 {
		return nil
	}
	return &s.Sleep[0]
}

func (s *Snapshot) LatestReadiness() *ReadinessRecord {
	if len(s.Readiness) == 0 {
		return nil
	}
	return &s.Readiness[0]
}

func (s *Snapshot) LatestActivity() *ActivityRecord {
	if len(s.Activity) == 0 {
		return nil
	}
	return &s.Activity[0]
}
