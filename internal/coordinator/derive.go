package coordinator

import (
	"fmt"
	"math"

	"ouralink/internal/model"
)

const (
	phaseWindow     = 7
	circadianWindow = 14
	trendWindow     = 7
)

// A zero score is treated the same as an absent one throughout the
// derivations, matching the upstream data pipeline.

func scoreValue(score *int) (float64, bool) {
	if score == nil || *score == 0 {
		return 0, false
	}
	return float64(*score), true
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func sleepScores(records []model.SleepRecord, from, to int) []float64 {
	var values []float64
	for i := from; i < to && i < len(records); i++ {
		if v, ok := scoreValue(records[i].Score); ok {
			values = append(values, v)
		}
	}
	return values
}

func readinessScores(records []model.ReadinessRecord, from, to int) []float64 {
	var values []float64
	for i := from; i < to && i < len(records); i++ {
		if v, ok := scoreValue(records[i].Score); ok {
			values = append(values, v)
		}
	}
	return values
}

func activityScores(records []model.ActivityRecord, from, to int) []float64 {
	var values []float64
	for i := from; i < to && i < len(records); i++ {
		if v, ok := scoreValue(records[i].Score); ok {
			values = append(values, v)
		}
	}
	return values
}

func activitySteps(records []model.ActivityRecord, from, to int) []float64 {
	var values []float64
	for i := from; i < to && i < len(records); i++ {
		if v, ok := scoreValue(records[i].Steps); ok {
			values = append(values, v)
		}
	}
	return values
}

// wellnessPhase classifies the trailing 7-day averages. Conditions are
// evaluated in order, so boundary values fall to the earlier branch.
func wellnessPhase(readiness []model.ReadinessRecord, sleep []model.SleepRecord, activity []model.ActivityRecord) model.WellnessPhase {
	if len(readiness) == 0 || len(sleep) == 0 {
		return model.PhaseMaintenance
	}

	avgReadiness := mean(readinessScores(readiness, 0, phaseWindow))
	avgSleep := mean(sleepScores(sleep, 0, phaseWindow))
	avgActivity := mean(activityScores(activity, 0, phaseWindow))

	switch {
	case avgReadiness < 60 || avgSleep < 60:
		return model.PhaseRecovery
	case avgReadiness > 85 && avgSleep > 80 && avgActivity > 75:
		return model.PhasePeak
	case avgReadiness > 75 && avgSleep > 70:
		return model.PhaseChallenge
	default:
		return model.PhaseMaintenance
	}
}

// circadianAlignment scores bedtime and wake consistency over the most
// recent two weeks of sleep records.
func circadianAlignment(sleep []model.SleepRecord) model.CircadianAlignment {
	unaligned := model.CircadianAlignment{
		OptimalBedtime: "22:00",
		OptimalWake:    "06:00",
	}
	if len(sleep) == 0 {
		return unaligned
	}

	var bedtimes, wakeTimes []float64
	for i := 0; i < circadianWindow && i < len(sleep); i++ {
		if t := sleep[i].BedtimeStart; t != nil {
			bedtimes = append(bedtimes, fractionalHour(t.Hour(), t.Minute()))
		}
		if t := sleep[i].BedtimeEnd; t != nil {
			wakeTimes = append(wakeTimes, fractionalHour(t.Hour(), t.Minute()))
		}
	}

	if len(bedtimes) < 3 {
		return unaligned
	}

	avgBedtime := mean(bedtimes)
	bedtimeVariance := populationVariance(bedtimes, avgBedtime)

	avgWake, wakeVariance := 7.0, 1.0
	if len(wakeTimes) > 0 {
		avgWake = mean(wakeTimes)
		wakeVariance = populationVariance(wakeTimes, avgWake)
	}

	// Lower variance means a steadier schedule and a higher score.
	bedtimeScore := math.Max(0, 100-bedtimeVariance*20)
	wakeScore := math.Max(0, 100-wakeVariance*20)
	overall := (bedtimeScore + wakeScore) / 2

	return model.CircadianAlignment{
		Aligned:            overall > 70,
		Score:              int(math.Round(overall)),
		OptimalBedtime:     formatFractionalHour(avgBedtime),
		OptimalWake:        formatFractionalHour(avgWake),
		BedtimeConsistency: int(math.Round(bedtimeScore)),
		WakeConsistency:    int(math.Round(wakeScore)),
	}
}

// trends compares the most recent seven records against the seven before
// them. A category with an empty window is omitted entirely.
func trends(sleep []model.SleepRecord, readiness []model.ReadinessRecord, activity []model.ActivityRecord) map[string]model.Trend {
	result := make(map[string]model.Trend)

	addTrend(result, "sleep",
		sleepScores(sleep, 0, trendWindow),
		sleepScores(sleep, trendWindow, 2*trendWindow))
	addTrend(result, "readiness",
		readinessScores(readiness, 0, trendWindow),
		readinessScores(readiness, trendWindow, 2*trendWindow))
	addTrend(result, "activity",
		activitySteps(activity, 0, trendWindow),
		activitySteps(activity, trendWindow, 2*trendWindow))

	return result
}

func addTrend(result map[string]model.Trend, key string, recent, previous []float64) {
	if len(recent) == 0 || len(previous) == 0 {
		return
	}
	current := mean(recent)
	prior := mean(previous)
	direction := model.TrendDown
	if current > prior {
		direction = model.TrendUp
	}
	result[key] = model.Trend{Current: current, Previous: prior, Direction: direction}
}

// predictions applies the fixed 0.3/0.5/0.2 heuristic. The weights are
// inherited, undocumented constants kept for behavioral parity; this is not
// a calibrated model.
func predictions(readiness []model.ReadinessRecord, sleep []model.SleepRecord, activity []model.ActivityRecord) *model.Prediction {
	if len(readiness) == 0 || len(sleep) == 0 || len(activity) == 0 {
		return nil
	}

	todayReadiness := scoreOrDefault(readiness[0].Score, 70)
	todaySleep := scoreOrDefault(sleep[0].Score, 70)
	todayActivity := scoreOrDefault(activity[0].Score, 70)

	// High activity today reduces tomorrow's readiness.
	predicted := todayReadiness*0.3 + todaySleep*0.5 + (100 - todayActivity*0.2)

	adjustment := -15
	if todayReadiness < 70 {
		adjustment = -30
	} else if todayReadiness > 85 {
		adjustment = 0
	}

	return &model.Prediction{
		TomorrowReadiness:        int(math.Round(predicted)),
		BedtimeAdjustmentMinutes: adjustment,
	}
}

func scoreOrDefault(score *int, fallback float64) float64 {
	if v, ok := scoreValue(score); ok {
		return v
	}
	return fallback
}

func populationVariance(values []float64, avg float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		d := v - avg
		sum += d * d
	}
	return sum / float64(len(values))
}

func fractionalHour(hour, minute int) float64 {
	return float64(hour) + float64(minute)/60
}

// formatFractionalHour truncates: the integer part becomes the hour, the
// remainder becomes minutes.
func formatFractionalHour(h float64) string {
	hour := int(h)
	minute := int((h - float64(hour)) * 60)
	return fmt.Sprintf("%02d:%02d", hour, minute)
}
