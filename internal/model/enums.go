package model

type Category string

const (
	CategorySleep       Category = "sleep"
	CategoryReadiness   Category = "readiness"
	CategoryActivity    Category = "activity"
	CategoryHeartRate   Category = "heart_rate"
	CategoryStress      Category = "stress"
	CategoryWorkouts    Category = "workouts"
	CategorySpO2        Category = "spo2"
	CategoryTemperature Category = "temperature"
)

func Categories() []Category {
	return []Category{
		CategorySleep,
		CategoryReadiness,
		CategoryActivity,
		CategoryHeartRate,
		CategoryStress,
		CategoryWorkouts,
		CategorySpO2,
		CategoryTemperature,
	}
}

type WellnessPhase string

const (
	PhaseRecovery    WellnessPhase = "recovery"
	PhaseMaintenance WellnessPhase = "maintenance"
	PhaseChallenge   WellnessPhase = "challenge"
	PhasePeak        WellnessPhase = "peak"
)

type SleepQuality string

const (
	SleepExcellent SleepQuality = "excellent"
	SleepGood      SleepQuality = "good"
	SleepFair      SleepQuality = "fair"
	SleepPoor      SleepQuality = "poor"
)

type ReadinessLevel string

const (
	ReadinessOptimal ReadinessLevel = "optimal"
	ReadinessHigh    ReadinessLevel = "high"
	ReadinessMedium  ReadinessLevel = "medium"
	ReadinessLow     ReadinessLevel = "low"
)

type ActivityIntensity string

const (
	IntensityRest   ActivityIntensity = "rest"
	IntensityLow    ActivityIntensity = "low"
	IntensityMedium ActivityIntensity = "medium"
	IntensityHigh   ActivityIntensity = "high"
)

type StressLevel string

const (
	StressUnknown  StressLevel = "unknown"
	StressLow      StressLevel = "low"
	StressModerate StressLevel = "moderate"
	StressHigh     StressLevel = "high"
)

type TrendDirection string

const (
	TrendUp   TrendDirection = "up"
	TrendDown TrendDirection = "down"
)
