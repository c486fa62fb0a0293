package coordinator

import (
	"fmt"
	"strings"

	"ouralink/internal/model"
)

// buildInsights composes the "daily" and "sleep" advisory texts from the
// assembled snapshot. Output is deterministic for a given snapshot.
func buildInsights(snap *model.Snapshot) map[string]string {
	insights := make(map[string]string)

	if daily := dailyInsight(snap); daily != "" {
		insights["daily"] = daily
	}
	if sleep := sleepInsight(snap); sleep != "" {
		insights["sleep"] = sleep
	}
	return insights
}

func dailyInsight(snap *model.Snapshot) string {
	readiness := snap.LatestReadiness()
	sleep := snap.LatestSleep()
	if readiness == nil && sleep == nil {
		return ""
	}

	var parts []string

	if readiness != nil && readiness.Score != nil && *readiness.Score != 0 {
		parts = append(parts, fmt.Sprintf("Readiness is %d (%s).", *readiness.Score, readiness.Level()))
	}
	if sleep != nil && sleep.Score != nil && *sleep.Score != 0 {
		parts = append(parts, fmt.Sprintf("Last night's sleep scored %d over %.1f hours.", *sleep.Score, sleep.HoursSlept()))
	}
	if activity := snap.LatestActivity(); activity != nil && activity.Steps != nil {
		parts = append(parts, fmt.Sprintf("%d steps so far today.", *activity.Steps))
	}

	switch snap.WellnessPhase {
	case model.PhaseRecovery:
		parts = append(parts, "You are in a recovery phase: keep intensity low and prioritize rest.")
	case model.PhasePeak:
		parts = append(parts, "You are in a peak phase: a good day for demanding training.")
	case model.PhaseChallenge:
		parts = append(parts, "You are in a challenge phase: your body can handle extra load.")
	default:
		parts = append(parts, "You are in a maintenance phase: keep to your usual routine.")
	}

	if readiness != nil {
		if rec := readiness.RecoveryRecommendation(); rec != "" {
			parts = append(parts, rec)
		}
	}
	return strings.Join(parts, " ")
}

func sleepInsight(snap *model.Snapshot) string {
	sleep := snap.LatestSleep()
	if sleep == nil || sleep.Score == nil || *sleep.Score == 0 {
		return ""
	}

	parts := []string{
		fmt.Sprintf("Sleep quality was %s (%d).", sleep.Quality(), *sleep.Score),
	}

	if sleep.TotalDuration != nil && *sleep.TotalDuration > 0 {
		total := float64(*sleep.TotalDuration)
		deep := float64(intOrZeroRef(sleep.DeepDuration)) / total * 100
		rem := float64(intOrZeroRef(sleep.RemDuration)) / total * 100
		parts = append(parts, fmt.Sprintf("Deep sleep was %.1f%% and REM %.1f%% of the night.", deep, rem))

		if deep < 13 {
			parts = append(parts, "Deep sleep is on the low side; an earlier, cooler bedtime tends to help.")
		}
		if rem < 18 {
			parts = append(parts, "REM is below typical; a consistent wake time supports more REM.")
		}
	}

	if bedtime := snap.Circadian.OptimalBedtime; bedtime != "" {
		parts = append(parts, fmt.Sprintf("Your usual bedtime settles around %s; staying close to it keeps your rhythm steady.", bedtime))
	}
	return strings.Join(parts, " ")
}

func intOrZeroRef(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
