package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"ouralink/internal/model"
	"ouralink/internal/ouraapi"
)

type fakeAPI struct {
	sleep     []json.RawMessage
	periods   []json.RawMessage
	readiness []json.RawMessage
	activity  []json.RawMessage
	heartRate []json.RawMessage
	stress    []json.RawMessage
	workouts  []json.RawMessage
	spo2      []json.RawMessage

	errs       map[model.Category]error
	periodsErr error
}

func (f *fakeAPI) categoryErr(category model.Category) error {
	if f.errs == nil {
		return nil
	}
	return f.errs[category]
}

func (f *fakeAPI) DailySleep(ctx context.Context, _, _ string) ([]json.RawMessage, error) {
	return f.sleep, f.categoryErr(model.CategorySleep)
}

func (f *fakeAPI) SleepPeriods(ctx context.Context, _, _ string) ([]json.RawMessage, error) {
	return f.periods, f.periodsErr
}

func (f *fakeAPI) DailyReadiness(ctx context.Context, _, _ string) ([]json.RawMessage, error) {
	return f.readiness, f.categoryErr(model.CategoryReadiness)
}

func (f *fakeAPI) DailyActivity(ctx context.Context, _, _ string) ([]json.RawMessage, error) {
	return f.activity, f.categoryErr(model.CategoryActivity)
}

func (f *fakeAPI) HeartRate(ctx context.Context, _, _ string) ([]json.RawMessage, error) {
	return f.heartRate, f.categoryErr(model.CategoryHeartRate)
}

func (f *fakeAPI) DailyStress(ctx context.Context, _, _ string) ([]json.RawMessage, error) {
	return f.stress, f.categoryErr(model.CategoryStress)
}

func (f *fakeAPI) Workouts(ctx context.Context, _, _ string) ([]json.RawMessage, error) {
	return f.workouts, f.categoryErr(model.CategoryWorkouts)
}

func (f *fakeAPI) DailySpO2(ctx context.Context, _, _ string) ([]json.RawMessage, error) {
	return f.spo2, f.categoryErr(model.CategorySpO2)
}

func (f *fakeAPI) RateLimitRemaining() int { return 42 }

func raw(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	return data
}

func populatedAPI(t *testing.T) *fakeAPI {
	t.Helper()
	return &fakeAPI{
		sleep: []json.RawMessage{
			raw(t, map[string]interface{}{"id": "s1", "day": "2026-08-31", "score": 82}),
			raw(t, map[string]interface{}{"id": "s2", "day": "2026-09-01", "score": 88}),
		},
		readiness: []json.RawMessage{
			raw(t, map[string]interface{}{
				"id": "r1", "day": "2026-09-01", "score": 77,
				"temperature_deviation": 0.2,
			}),
		},
		activity: []json.RawMessage{
			raw(t, map[string]interface{}{"id": "a1", "day": "2026-09-01", "score": 70, "steps": 9000}),
		},
		heartRate: []json.RawMessage{
			raw(t, map[string]interface{}{"timestamp": "2026-09-01T08:00:00+00:00", "bpm": 61}),
			raw(t, map[string]interface{}{"timestamp": "2026-09-01T09:00:00+00:00", "bpm": 55}),
			raw(t, map[string]interface{}{"timestamp": "2026-09-01T10:00:00+00:00", "bpm": 72}),
		},
		stress: []json.RawMessage{
			raw(t, map[string]interface{}{
				"id": "st1", "day": "2026-09-01",
				"day_summary": map[string]interface{}{"score": 25},
			}),
		},
		workouts: []json.RawMessage{
			raw(t, map[string]interface{}{"id": "w1", "day": "2026-09-01", "activity": "running"}),
		},
		spo2: []json.RawMessage{
			raw(t, map[string]interface{}{
				"id": "o1", "day": "2026-09-01",
				"spo2_percentage": map[string]interface{}{"average": 97.5},
			}),
		},
	}
}

func newTestCoordinator(api API) *Coordinator {
	return New(api, zap.NewNop().Sugar(), Options{})
}

func TestRefreshPopulatesAllCategories(t *testing.T) {
	c := newTestCoordinator(populatedAPI(t))

	snap, err := c.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if len(snap.Sleep) != 2 {
		t.Fatalf("expected 2 sleep records, got %d", len(snap.Sleep))
	}
	if snap.Sleep[0].Day != "2026-09-01" {
		t.Fatalf("expected newest-first sleep ordering, got %s first", snap.Sleep[0].Day)
	}
	if len(snap.Readiness) != 1 || len(snap.Activity) != 1 {
		t.Fatal("expected readiness and activity records")
	}
	if len(snap.HeartRate) != 1 {
		t.Fatalf("expected heart rate samples bucketed into 1 day, got %d", len(snap.HeartRate))
	}
	if snap.HeartRate[0].Resting != 55 {
		t.Fatalf("expected resting heart rate 55 (day minimum), got %d", snap.HeartRate[0].Resting)
	}
	if len(snap.Temperature) != 1 {
		t.Fatalf("expected temperature derived from readiness, got %d records", len(snap.Temperature))
	}
	if snap.Stress[0].Level() != model.StressLow {
		t.Fatalf("expected low stress, got %s", snap.Stress[0].Level())
	}
	if snap.WellnessPhase != model.PhaseChallenge {
		t.Fatalf("expected challenge phase, got %s", snap.WellnessPhase)
	}
	if snap.RateLimitRemaining != 42 {
		t.Fatalf("expected rate limit from client, got %d", snap.RateLimitRemaining)
	}
	if snap.LastUpdate.IsZero() {
		t.Fatal("expected last update to be set")
	}
}

func TestTransientFailureKeepsPreviousData(t *testing.T) {
	api := populatedAPI(t)
	c := newTestCoordinator(api)

	if _, err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("first refresh: %v", err)
	}

	api.errs = map[model.Category]error{
		model.CategoryActivity: errors.New("upstream hiccup"),
	}
	api.sleep = append(api.sleep,
		raw(t, map[string]interface{}{"id": "s3", "day": "2026-09-02", "score": 91}))

	snap, err := c.Refresh(context.Background())
	if err != nil {
		t.Fatalf("second refresh should succeed despite transient failure: %v", err)
	}

	if len(snap.Activity) != 1 {
		t.Fatalf("expected previous activity data to survive, got %d records", len(snap.Activity))
	}
	if len(snap.Sleep) != 3 {
		t.Fatalf("expected fresh sleep data, got %d records", len(snap.Sleep))
	}
	if c.ConsecutiveFailures() != 0 {
		t.Fatalf("partial failure is not a cycle failure, got %d", c.ConsecutiveFailures())
	}
}

func TestAuthFailureAbortsCycle(t *testing.T) {
	api := populatedAPI(t)
	c := newTestCoordinator(api)

	if _, err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	before := c.State()

	api.errs = map[model.Category]error{
		model.CategoryReadiness: &ouraapi.AuthError{Message: "token expired"},
	}
	api.sleep = append(api.sleep,
		raw(t, map[string]interface{}{"id": "s3", "day": "2026-09-02", "score": 91}))

	if _, err := c.Refresh(context.Background()); !ouraapi.IsAuthError(err) {
		t.Fatalf("expected auth error, got %v", err)
	}

	after := c.State()
	if after != before {
		t.Fatal("expected published state to be untouched after auth failure")
	}
	if c.ConsecutiveFailures() != 1 {
		t.Fatalf("expected 1 consecutive failure, got %d", c.ConsecutiveFailures())
	}
}

func TestSleepPeriodAuthFailureAbortsCycle(t *testing.T) {
	api := populatedAPI(t)
	c := newTestCoordinator(api)

	if _, err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	before := c.State()

	api.periodsErr = &ouraapi.AuthError{Message: "token expired"}

	if _, err := c.Refresh(context.Background()); !ouraapi.IsAuthError(err) {
		t.Fatalf("expected auth error from detail fetch, got %v", err)
	}

	if c.State() != before {
		t.Fatal("expected published state to be untouched after auth failure")
	}
	if c.ConsecutiveFailures() != 1 {
		t.Fatalf("expected 1 consecutive failure, got %d", c.ConsecutiveFailures())
	}
}

func TestSleepPeriodTransientFailureSkipsMerge(t *testing.T) {
	api := populatedAPI(t)
	api.periodsErr = errors.New("upstream hiccup")
	c := newTestCoordinator(api)

	snap, err := c.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh should survive a transient detail failure: %v", err)
	}
	if len(snap.Sleep) != 2 {
		t.Fatalf("expected daily sleep records without detail merge, got %d", len(snap.Sleep))
	}
}

func TestRefreshCategoryUpdatesOnlyThatCategory(t *testing.T) {
	api := populatedAPI(t)
	c := newTestCoordinator(api)

	if _, err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	api.activity = []json.RawMessage{
		raw(t, map[string]interface{}{"id": "a2", "day": "2026-09-01", "score": 95, "steps": 15000}),
	}
	api.sleep = append(api.sleep,
		raw(t, map[string]interface{}{"id": "s3", "day": "2026-09-02", "score": 91}))

	if err := c.RefreshCategory(context.Background(), model.CategoryActivity); err != nil {
		t.Fatalf("refresh category: %v", err)
	}

	snap := c.State()
	if got := *snap.Activity[0].Steps; got != 15000 {
		t.Fatalf("expected refreshed activity, got %d steps", got)
	}
	if len(snap.Sleep) != 2 {
		t.Fatalf("sleep must not be refetched, got %d records", len(snap.Sleep))
	}
}

func TestRefreshCategoryRejectsUnknown(t *testing.T) {
	c := newTestCoordinator(populatedAPI(t))
	if err := c.RefreshCategory(context.Background(), model.Category("bogus")); err == nil {
		t.Fatal("expected error for unknown category")
	}
}

func TestTrimHistoryBoundsLists(t *testing.T) {
	c := newTestCoordinator(populatedAPI(t))

	var sleep []model.SleepRecord
	for i := 0; i < 50; i++ {
		sleep = append(sleep, model.SleepRecord{Day: fmt.Sprintf("day-%02d", i)})
	}
	var workouts []model.WorkoutRecord
	for i := 0; i < 120; i++ {
		workouts = append(workouts, model.WorkoutRecord{ID: fmt.Sprintf("w-%03d", i)})
	}

	c.mu.Lock()
	c.state = &model.Snapshot{Sleep: sleep, Workouts: workouts}
	c.mu.Unlock()

	c.TrimHistory()

	snap := c.State()
	if len(snap.Sleep) != maxHistoryEntries {
		t.Fatalf("expected sleep trimmed to %d, got %d", maxHistoryEntries, len(snap.Sleep))
	}
	if len(snap.Workouts) != maxWorkoutEntries {
		t.Fatalf("expected workouts trimmed to %d, got %d", maxWorkoutEntries, len(snap.Workouts))
	}
	if snap.Sleep[0].Day != "day-00" {
		t.Fatalf("trim must keep the head of the list, got %s", snap.Sleep[0].Day)
	}
}

func TestStatePublishedSnapshotsAreImmutable(t *testing.T) {
	c := newTestCoordinator(populatedAPI(t))

	first, err := c.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	firstSleepCount := len(first.Sleep)

	c.TrimHistory()

	if len(first.Sleep) != firstSleepCount {
		t.Fatal("published snapshot was mutated by a later operation")
	}
}
