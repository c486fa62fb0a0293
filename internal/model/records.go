package model

import (
	"encoding/json"
	"math"
	"time"
)

// SleepRecord is one daily sleep summary, optionally enriched with the
// detailed sleep period for the same day.
type SleepRecord struct {
	ID                   string     `json:"id"`
	Day                  string     `json:"day"`
	Score                *int       `json:"score,omitempty"`
	TotalDuration        *int       `json:"total_duration,omitempty"`
	Efficiency           *int       `json:"efficiency,omitempty"`
	Latency              *int       `json:"latency,omitempty"`
	RemDuration          *int       `json:"rem_duration,omitempty"`
	DeepDuration         *int       `json:"deep_duration,omitempty"`
	LightDuration        *int       `json:"light_duration,omitempty"`
	AwakeDuration        *int       `json:"awake_duration,omitempty"`
	AverageHRV           *float64   `json:"average_hrv,omitempty"`
	LowestHeartRate      *int       `json:"lowest_heart_rate,omitempty"`
	RespiratoryRate      *float64   `json:"respiratory_rate,omitempty"`
	TemperatureDeviation *float64   `json:"temperature_deviation,omitempty"`
	BedtimeStart         *time.Time `json:"bedtime_start,omitempty"`
	BedtimeEnd           *time.Time `json:"bedtime_end,omitempty"`
	TimeInBed            *int       `json:"time_in_bed,omitempty"`
	RestlessPeriods      *int       `json:"restless_periods,omitempty"`

	HeartRate5Min  []*int     `json:"heart_rate_5min,omitempty"`
	HRV5Min        []*float64 `json:"hrv_5min,omitempty"`
	Movement30Sec  string     `json:"movement_30_sec,omitempty"`
	SleepPhase5Min string     `json:"sleep_phase_5_min,omitempty"`
}

type rawSleep struct {
	ID           string `json:"id"`
	Day          string `json:"day"`
	Score        *int   `json:"score"`
	Contributors struct {
		TotalSleep *int `json:"total_sleep"`
		Efficiency *int `json:"efficiency"`
		Latency    *int `json:"latency"`
		RemSleep   *int `json:"rem_sleep"`
		DeepSleep  *int `json:"deep_sleep"`
		LightSleep *int `json:"light_sleep"`
	} `json:"contributors"`
	AwakeTime            *int     `json:"awake_time"`
	AverageHRV           *float64 `json:"average_hrv"`
	LowestHeartRate      *int     `json:"lowest_heart_rate"`
	AverageBreath        *float64 `json:"average_breath"`
	TemperatureDeviation *float64 `json:"temperature_deviation"`
	BedtimeStart         string   `json:"bedtime_start"`
	BedtimeEnd           string   `json:"bedtime_end"`
	TimeInBed            *int     `json:"time_in_bed"`
	RestlessPeriods      *int     `json:"restless_periods"`
}

func ParseSleepRecord(data json.RawMessage) (SleepRecord, error) {
	var raw rawSleep
	if err := json.Unmarshal(data, &raw); err != nil {
		return SleepRecord{}, err
	}
	return SleepRecord{
		ID:                   raw.ID,
		Day:                  raw.Day,
		Score:                raw.Score,
		TotalDuration:        raw.Contributors.TotalSleep,
		Efficiency:           raw.Contributors.Efficiency,
		Latency:              raw.Contributors.Latency,
		RemDuration:          raw.Contributors.RemSleep,
		DeepDuration:         raw.Contributors.DeepSleep,
		LightDuration:        raw.Contributors.LightSleep,
		AwakeDuration:        raw.AwakeTime,
		AverageHRV:           raw.AverageHRV,
		LowestHeartRate:      raw.LowestHeartRate,
		RespiratoryRate:      raw.AverageBreath,
		TemperatureDeviation: raw.TemperatureDeviation,
		BedtimeStart:         parseTimestamp(raw.BedtimeStart),
		BedtimeEnd:           parseTimestamp(raw.BedtimeEnd),
		TimeInBed:            raw.TimeInBed,
		RestlessPeriods:      raw.RestlessPeriods,
	}, nil
}

func (r SleepRecord) HoursSlept() float64 {
	return float64(intOrZero(r.TotalDuration)) / 3600
}

// Quality buckets the sleep score; an absent or zero score reads as fair.
func (r SleepRecord) Quality() SleepQuality {
	if r.Score == nil || *r.Score == 0 {
		return SleepFair
	}
	switch {
	case *r.Score >= 85:
		return SleepExcellent
	case *r.Score >= 70:
		return SleepGood
	case *r.Score >= 60:
		return SleepFair
	default:
		return SleepPoor
	}
}

// AddPeriodDetails merges granular series from a detailed sleep period
// response into the daily record.
func (r *SleepRecord) AddPeriodDetails(data json.RawMessage) {
	var raw struct {
		HeartRate struct {
			Items []*int `json:"items"`
		} `json:"heart_rate"`
		HRV struct {
			Items []*float64 `json:"items"`
		} `json:"hrv"`
		Movement30Sec  string `json:"movement_30_sec"`
		SleepPhase5Min string `json:"sleep_phase_5_min"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return
	}
	if raw.HeartRate.Items != nil {
		r.HeartRate5Min = raw.HeartRate.Items
	}
	if raw.HRV.Items != nil {
		r.HRV5Min = raw.HRV.Items
	}
	if raw.Movement30Sec != "" {
		r.Movement30Sec = raw.Movement30Sec
	}
	if raw.SleepPhase5Min != "" {
		r.SleepPhase5Min = raw.SleepPhase5Min
	}
}

type ReadinessRecord struct {
	ID                   string          `json:"id"`
	Day                  string          `json:"day"`
	Score                *int            `json:"score,omitempty"`
	TemperatureDeviation *float64        `json:"temperature_deviation,omitempty"`
	TemperatureTrend     *float64        `json:"temperature_trend,omitempty"`
	Contributors         map[string]*int `json:"contributors,omitempty"`
}

func ParseReadinessRecord(data json.RawMessage) (ReadinessRecord, error) {
	var raw struct {
		ID                        string          `json:"id"`
		Day                       string          `json:"day"`
		Score                     *int            `json:"score"`
		TemperatureDeviation      *float64        `json:"temperature_deviation"`
		TemperatureTrendDeviation *float64        `json:"temperature_trend_deviation"`
		Contributors              map[string]*int `json:"contributors"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return ReadinessRecord{}, err
	}
	return ReadinessRecord{
		ID:                   raw.ID,
		Day:                  raw.Day,
		Score:                raw.Score,
		TemperatureDeviation: raw.TemperatureDeviation,
		TemperatureTrend:     raw.TemperatureTrendDeviation,
		Contributors:         raw.Contributors,
	}, nil
}

func (r ReadinessRecord) Level() ReadinessLevel {
	if r.Score == nil || *r.Score == 0 {
		return ReadinessMedium
	}
	switch {
	case *r.Score >= 85:
		return ReadinessOptimal
	case *r.Score >= 70:
		return ReadinessHigh
	case *r.Score >= 60:
		return ReadinessMedium
	default:
		return ReadinessLow
	}
}

func (r ReadinessRecord) RecoveryRecommendation() string {
	switch r.Level() {
	case ReadinessOptimal:
		return "Ready for challenging activities"
	case ReadinessHigh:
		return "Good day for normal activities"
	case ReadinessMedium:
		return "Consider lighter activities"
	default:
		return "Prioritize rest and recovery"
	}
}

type ActivityRecord struct {
	ID                 string         `json:"id"`
	Day                string         `json:"day"`
	Score              *int           `json:"score,omitempty"`
	Steps              *int           `json:"steps,omitempty"`
	TotalCalories      *int           `json:"total_calories,omitempty"`
	ActiveCalories     *int           `json:"active_calories,omitempty"`
	METMinutes         map[string]int `json:"met_minutes,omitempty"`
	InactiveTime       *int           `json:"inactive_time,omitempty"`
	LowActivityTime    *int           `json:"low_activity_time,omitempty"`
	MediumActivityTime *int           `json:"medium_activity_time,omitempty"`
	HighActivityTime   *int           `json:"high_activity_time,omitempty"`
	NonWearTime        *int           `json:"non_wear_time,omitempty"`
}

func ParseActivityRecord(data json.RawMessage) (ActivityRecord, error) {
	var raw struct {
		ID                 string         `json:"id"`
		Day                string         `json:"day"`
		Score              *int           `json:"score"`
		Steps              *int           `json:"steps"`
		TotalCalories      *int           `json:"total_calories"`
		ActiveCalories     *int           `json:"active_calories"`
		MET                map[string]int `json:"met"`
		SedentaryTime      *int           `json:"sedentary_time"`
		LowActivityTime    *int           `json:"low_activity_time"`
		MediumActivityTime *int           `json:"medium_activity_time"`
		HighActivityTime   *int           `json:"high_activity_time"`
		NonWearTime        *int           `json:"non_wear_time"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return ActivityRecord{}, err
	}
	return ActivityRecord{
		ID:                 raw.ID,
		Day:                raw.Day,
		Score:              raw.Score,
		Steps:              raw.Steps,
		TotalCalories:      raw.TotalCalories,
		ActiveCalories:     raw.ActiveCalories,
		METMinutes:         raw.MET,
		InactiveTime:       raw.SedentaryTime,
		LowActivityTime:    raw.LowActivityTime,
		MediumActivityTime: raw.MediumActivityTime,
		HighActivityTime:   raw.HighActivityTime,
		NonWearTime:        raw.NonWearTime,
	}, nil
}

// IntensityLevel is the intensity bucket with the most accumulated seconds.
func (r ActivityRecord) IntensityLevel() ActivityIntensity {
	level := IntensityRest
	best := intOrZero(r.InactiveTime)
	for _, candidate := range []struct {
		intensity ActivityIntensity
		seconds   int
	}{
		{IntensityLow, intOrZero(r.LowActivityTime)},
		{IntensityMedium, intOrZero(r.MediumActivityTime)},
		{IntensityHigh, intOrZero(r.HighActivityTime)},
	} {
		if candidate.seconds > best {
			best = candidate.seconds
			level = candidate.intensity
		}
	}
	return level
}

func (r ActivityRecord) ActiveHours() float64 {
	total := intOrZero(r.LowActivityTime) +
		intOrZero(r.MediumActivityTime) +
		intOrZero(r.HighActivityTime)
	return float64(total) / 3600
}

type HeartRateRecord struct {
	Day     string  `json:"day"`
	Average float64 `json:"average"`
	Minimum int     `json:"minimum"`
	Maximum int     `json:"maximum"`
	// Resting approximates resting heart rate as the day's minimum sample.
	// Kept as-is for parity with the source data pipeline; a true resting
	// estimate would restrict to sleep or early-morning samples.
	Resting int   `json:"resting"`
	Samples []int `json:"-"`
}

// Variability is the population standard deviation of the day's samples.
func (r HeartRateRecord) Variability() float64 {
	if len(r.Samples) < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range r.Samples {
		mean += float64(v)
	}
	mean /= float64(len(r.Samples))

	variance := 0.0
	for _, v := range r.Samples {
		d := float64(v) - mean
		variance += d * d
	}
	variance /= float64(len(r.Samples))
	return math.Sqrt(variance)
}

type HeartRateSample struct {
	Timestamp string `json:"timestamp"`
	BPM       int    `json:"bpm"`
}

func ParseHeartRateSample(data json.RawMessage) (HeartRateSample, error) {
	var sample HeartRateSample
	if err := json.Unmarshal(data, &sample); err != nil {
		return HeartRateSample{}, err
	}
	return sample, nil
}

type StressRecord struct {
	ID              string `json:"id"`
	Day             string `json:"day"`
	Score           *int   `json:"score,omitempty"`
	HighPeriods     *int   `json:"high_periods,omitempty"`
	RecoveryPeriods *int   `json:"recovery_periods,omitempty"`
	DaytimeLoad     *int   `json:"daytime_load,omitempty"`
}

func ParseStressRecord(data json.RawMessage) (StressRecord, error) {
	var raw struct {
		ID         string `json:"id"`
		Day        string `json:"day"`
		DaySummary struct {
			Score             *int `json:"score"`
			StressHigh        *int `json:"stress_high"`
			RecoveryHigh      *int `json:"recovery_high"`
			DaytimeStressLoad *int `json:"daytime_stress_load"`
		} `json:"day_summary"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return StressRecord{}, err
	}
	return StressRecord{
		ID:              raw.ID,
		Day:             raw.Day,
		Score:           raw.DaySummary.Score,
		HighPeriods:     raw.DaySummary.StressHigh,
		RecoveryPeriods: raw.DaySummary.RecoveryHigh,
		DaytimeLoad:     raw.DaySummary.DaytimeStressLoad,
	}, nil
}

func (r StressRecord) Level() StressLevel {
	if r.Score == nil || *r.Score == 0 {
		return StressUnknown
	}
	switch {
	case *r.Score < 30:
		return StressLow
	case *r.Score < 60:
		return StressModerate
	default:
		return StressHigh
	}
}

type WorkoutRecord struct {
	ID            string     `json:"id"`
	Day           string     `json:"day"`
	Activity      string     `json:"activity"`
	Calories      *int       `json:"calories,omitempty"`
	Distance      *float64   `json:"distance,omitempty"`
	Duration      *int       `json:"duration,omitempty"`
	Intensity     string     `json:"intensity,omitempty"`
	StartDatetime *time.Time `json:"start_datetime,omitempty"`
	EndDatetime   *time.Time `json:"end_datetime,omitempty"`
}

func ParseWorkoutRecord(data json.RawMessage) (WorkoutRecord, error) {
	var raw struct {
		ID            string   `json:"id"`
		Day           string   `json:"day"`
		Activity      string   `json:"activity"`
		Calories      *int     `json:"calories"`
		Distance      *float64 `json:"distance"`
		Duration      *int     `json:"duration"`
		Intensity     string   `json:"intensity"`
		StartDatetime string   `json:"start_datetime"`
		EndDatetime   string   `json:"end_datetime"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return WorkoutRecord{}, err
	}
	return WorkoutRecord{
		ID:            raw.ID,
		Day:           raw.Day,
		Activity:      raw.Activity,
		Calories:      raw.Calories,
		Distance:      raw.Distance,
		Duration:      raw.Duration,
		Intensity:     raw.Intensity,
		StartDatetime: parseTimestamp(raw.StartDatetime),
		EndDatetime:   parseTimestamp(raw.EndDatetime),
	}, nil
}

func (r WorkoutRecord) DurationHours() float64 {
	return float64(intOrZero(r.Duration)) / 3600
}

type SpO2Record struct {
	ID         string   `json:"id"`
	Day        string   `json:"day"`
	Percentage *float64 `json:"percentage,omitempty"`
}

func ParseSpO2Record(data json.RawMessage) (SpO2Record, error) {
	var raw struct {
		ID         string `json:"id"`
		Day        string `json:"day"`
		SpO2Status struct {
			Average *float64 `json:"average"`
		} `json:"spo2_percentage"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return SpO2Record{}, err
	}
	return SpO2Record{
		ID:         raw.ID,
		Day:        raw.Day,
		Percentage: raw.SpO2Status.Average,
	}, nil
}

// TemperatureRecord carries the body temperature signals embedded in the
// readiness payload.
type TemperatureRecord struct {
	Day       string   `json:"day"`
	Deviation *float64 `json:"deviation,omitempty"`
	Trend     *float64 `json:"trend,omitempty"`
}

func parseTimestamp(value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil
	}
	return &t
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
