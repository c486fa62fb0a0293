package history

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"
)

// WriteJSON streams the day rows as a JSON array.
func WriteJSON(w io.Writer, days []DayMetrics) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(days); err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	return nil
}

// WriteCSV streams the day rows as CSV with a header row. Absent values
// become empty cells.
func WriteCSV(w io.Writer, days []DayMetrics) error {
	writer := csv.NewWriter(w)

	header := []string{
		"day", "sleep_score", "sleep_hours", "readiness_score",
		"activity_score", "steps", "total_calories", "resting_heart_rate",
		"average_heart_rate", "stress_level", "spo2_percentage",
		"temperature_deviation", "wellness_phase", "circadian_score",
		"updated_at",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write export header: %w", err)
	}

	for _, day := range days {
		row := []string{
			day.Day,
			intCell(day.SleepScore),
			floatCell(day.SleepHours),
			intCell(day.ReadinessScore),
			intCell(day.ActivityScore),
			intCell(day.Steps),
			intCell(day.TotalCalories),
			intCell(day.RestingHeartRate),
			floatCell(day.AverageHeartRate),
			stringCell(day.StressLevel),
			floatCell(day.SpO2Percentage),
			floatCell(day.TemperatureDeviation),
			day.WellnessPhase,
			strconv.Itoa(day.CircadianScore),
			day.UpdatedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write export row %s: %w", day.Day, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush export: %w", err)
	}
	return nil
}

func intCell(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func floatCell(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func stringCell(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
