package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ouralink/internal/model"
)

var ErrNotFound = errors.New("day not found")

// DayMetrics is one persisted day of wellness data, flattened from the
// in-memory snapshot for long-term retention and export.
type DayMetrics struct {
	Day                  string   `json:"day"`
	SleepScore           *int     `json:"sleep_score,omitempty"`
	SleepHours           *float64 `json:"sleep_hours,omitempty"`
	ReadinessScore       *int     `json:"readiness_score,omitempty"`
	ActivityScore        *int     `json:"activity_score,omitempty"`
	Steps                *int     `json:"steps,omitempty"`
	TotalCalories        *int     `json:"total_calories,omitempty"`
	RestingHeartRate     *int     `json:"resting_heart_rate,omitempty"`
	AverageHeartRate     *float64 `json:"average_heart_rate,omitempty"`
	StressLevel          *string  `json:"stress_level,omitempty"`
	SpO2Percentage       *float64 `json:"spo2_percentage,omitempty"`
	TemperatureDeviation *float64 `json:"temperature_deviation,omitempty"`
	WellnessPhase        string   `json:"wellness_phase"`
	CircadianScore       int      `json:"circadian_score"`
	UpdatedAt            time.Time `json:"updated_at"`
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// RecordSnapshot flattens the snapshot into per-day rows and upserts them.
// Days already on disk but absent from the snapshot window are untouched, so
// the table accumulates history beyond the in-memory retention.
func (r *Repository) RecordSnapshot(ctx context.Context, snap *model.Snapshot) error {
	days := flattenSnapshot(snap)
	if len(days) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	for _, day := range days {
		if err := upsertDay(ctx, tx, day); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

func upsertDay(ctx context.Context, tx *sql.Tx, day DayMetrics) error {
	_, err := tx.ExecContext(
		ctx,
		`INSERT INTO wellness_days (
			day, sleep_score, sleep_hours, readiness_score, activity_score,
			steps, total_calories, resting_heart_rate, average_heart_rate,
			stress_level, spo2_percentage, temperature_deviation,
			wellness_phase, circadian_score, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(day) DO UPDATE SET
			sleep_score = excluded.sleep_score,
			sleep_hours = excluded.sleep_hours,
			readiness_score = excluded.readiness_score,
			activity_score = excluded.activity_score,
			steps = excluded.steps,
			total_calories = excluded.total_calories,
			resting_heart_rate = excluded.resting_heart_rate,
			average_heart_rate = excluded.average_heart_rate,
			stress_level = excluded.stress_level,
			spo2_percentage = excluded.spo2_percentage,
			temperature_deviation = excluded.temperature_deviation,
			wellness_phase = excluded.wellness_phase,
			circadian_score = excluded.circadian_score,
			updated_at = excluded.updated_at`,
		day.Day,
		day.SleepScore,
		day.SleepHours,
		day.ReadinessScore,
		day.ActivityScore,
		day.Steps,
		day.TotalCalories,
		day.RestingHeartRate,
		day.AverageHeartRate,
		day.StressLevel,
		day.SpO2Percentage,
		day.TemperatureDeviation,
		day.WellnessPhase,
		day.CircadianScore,
		day.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert day %s: %w", day.Day, err)
	}
	return nil
}

// ListDays returns the newest days first, at most limit rows.
func (r *Repository) ListDays(ctx context.Context, limit int) ([]DayMetrics, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT day, sleep_score, sleep_hours, readiness_score, activity_score,
		        steps, total_calories, resting_heart_rate, average_heart_rate,
		        stress_level, spo2_percentage, temperature_deviation,
		        wellness_phase, circadian_score, updated_at
		 FROM wellness_days
		 ORDER BY day DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list days: %w", err)
	}
	defer rows.Close()

	days := make([]DayMetrics, 0, limit)
	for rows.Next() {
		day, scanErr := scanDay(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		days = append(days, *day)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate days: %w", err)
	}
	return days, nil
}

func (r *Repository) GetDay(ctx context.Context, day string) (*DayMetrics, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT day, sleep_score, sleep_hours, readiness_score, activity_score,
		        steps, total_calories, resting_heart_rate, average_heart_rate,
		        stress_level, spo2_percentage, temperature_deviation,
		        wellness_phase, circadian_score, updated_at
		 FROM wellness_days
		 WHERE day = ?`,
		day,
	)
	return scanDay(row)
}

// DeleteBefore drops rows older than the cutoff day; used by the retention
// sweep.
func (r *Repository) DeleteBefore(ctx context.Context, day string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM wellness_days WHERE day < ?`, day)
	if err != nil {
		return 0, fmt.Errorf("delete days before %s: %w", day, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted days: %w", err)
	}
	return affected, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDay(s scanner) (*DayMetrics, error) {
	day := DayMetrics{}
	var sleepScore, readinessScore, activityScore, steps sql.NullInt64
	var totalCalories, restingHR, circadianScore sql.NullInt64
	var sleepHours, averageHR, spo2, tempDeviation sql.NullFloat64
	var stressLevel sql.NullString
	var updatedAt string

	err := s.Scan(
		&day.Day,
		&sleepScore,
		&sleepHours,
		&readinessScore,
		&activityScore,
		&steps,
		&totalCalories,
		&restingHR,
		&averageHR,
		&stressLevel,
		&spo2,
		&tempDeviation,
		&day.WellnessPhase,
		&circadianScore,
		&updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan day: %w", err)
	}

	day.SleepScore = nullableInt(sleepScore)
	day.SleepHours = nullableFloat(sleepHours)
	day.ReadinessScore = nullableInt(readinessScore)
	day.ActivityScore = nullableInt(activityScore)
	day.Steps = nullableInt(steps)
	day.TotalCalories = nullableInt(totalCalories)
	day.RestingHeartRate = nullableInt(restingHR)
	day.AverageHeartRate = nullableFloat(averageHR)
	day.SpO2Percentage = nullableFloat(spo2)
	day.TemperatureDeviation = nullableFloat(tempDeviation)
	if stressLevel.Valid {
		day.StressLevel = &stressLevel.String
	}
	if circadianScore.Valid {
		day.CircadianScore = int(circadianScore.Int64)
	}

	parsed, err := time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse day updated_at: %w", err)
	}
	day.UpdatedAt = parsed
	return &day, nil
}

func nullableInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	value := int(v.Int64)
	return &value
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	value := v.Float64
	return &value
}

// flattenSnapshot joins the per-category lists on day. The derived phase and
// circadian score describe the snapshot as a whole, so every row in the
// window carries the current values.
func flattenSnapshot(snap *model.Snapshot) []DayMetrics {
	byDay := make(map[string]*DayMetrics)
	get := func(day string) *DayMetrics {
		if day == "" {
			return nil
		}
		if existing, ok := byDay[day]; ok {
			return existing
		}
		entry := &DayMetrics{
			Day:            day,
			WellnessPhase:  string(snap.WellnessPhase),
			CircadianScore: snap.Circadian.Score,
			UpdatedAt:      snap.LastUpdate,
		}
		byDay[day] = entry
		return entry
	}

	for _, r := range snap.Sleep {
		if entry := get(r.Day); entry != nil {
			entry.SleepScore = r.Score
			hours := r.HoursSlept()
			entry.SleepHours = &hours
		}
	}
	for _, r := range snap.Readiness {
		if entry := get(r.Day); entry != nil {
			entry.ReadinessScore = r.Score
			entry.TemperatureDeviation = r.TemperatureDeviation
		}
	}
	for _, r := range snap.Activity {
		if entry := get(r.Day); entry != nil {
			entry.ActivityScore = r.Score
			entry.Steps = r.Steps
			entry.TotalCalories = r.TotalCalories
		}
	}
	for _, r := range snap.HeartRate {
		if entry := get(r.Day); entry != nil {
			resting := r.Resting
			average := r.Average
			entry.RestingHeartRate = &resting
			entry.AverageHeartRate = &average
		}
	}
	for _, r := range snap.Stress {
		if entry := get(r.Day); entry != nil {
			level := string(r.Level())
			entry.StressLevel = &level
		}
	}
	for _, r := range snap.SpO2 {
		if entry := get(r.Day); entry != nil {
			entry.SpO2Percentage = r.Percentage
		}
	}

	days := make([]DayMetrics, 0, len(byDay))
	for _, entry := range byDay {
		days = append(days, *entry)
	}
	return days
}
