package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"ouralink/internal/model"
	"ouralink/internal/ouraapi"
)

const (
	defaultLookbackDays = 7
	maxHistoryEntries   = 30
	maxWorkoutEntries   = 90
	failureWarnStreak   = 3
)

// API is the slice of the Oura client the coordinator consumes; tests
// substitute a fake.
type API interface {
	DailySleep(ctx context.Context, startDate, endDate string) ([]json.RawMessage, error)
	SleepPeriods(ctx context.Context, startDate, endDate string) ([]json.RawMessage, error)
	DailyReadiness(ctx context.Context, startDate, endDate string) ([]json.RawMessage, error)
	DailyActivity(ctx context.Context, startDate, endDate string) ([]json.RawMessage, error)
	HeartRate(ctx context.Context, startDatetime, endDatetime string) ([]json.RawMessage, error)
	DailyStress(ctx context.Context, startDate, endDate string) ([]json.RawMessage, error)
	Workouts(ctx context.Context, startDate, endDate string) ([]json.RawMessage, error)
	DailySpO2(ctx context.Context, startDate, endDate string) ([]json.RawMessage, error)
	RateLimitRemaining() int
}

type Options struct {
	LookbackDays      int
	EnableInsights    bool
	EnablePredictions bool
	Now               func() time.Time
}

// Coordinator drives one poll cycle to completion even under partial
// failure: the eight categories are fetched concurrently, a transient
// category failure falls back to the previous cycle's records, and only an
// authentication failure aborts the cycle without publishing state.
type Coordinator struct {
	api  API
	log  *zap.SugaredLogger
	opts Options
	now  func() time.Time

	mu                  sync.RWMutex
	state               *model.Snapshot
	consecutiveFailures int

	flight singleflight.Group
}

func New(api API, log *zap.SugaredLogger, opts Options) *Coordinator {
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = defaultLookbackDays
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coordinator{
		api:   api,
		log:   log,
		opts:  opts,
		now:   opts.Now,
		state: &model.Snapshot{WellnessPhase: model.PhaseMaintenance},
	}
}

// State returns the live snapshot. Snapshots are immutable after
// publication, so callers may read them without further locking.
func (c *Coordinator) State() *model.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Coordinator) ConsecutiveFailures() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.consecutiveFailures
}

// Refresh runs a full poll cycle. Concurrent calls are coalesced into one
// in-flight cycle; a cycle is never started while another is running.
func (c *Coordinator) Refresh(ctx context.Context) (*model.Snapshot, error) {
	result, err, _ := c.flight.Do("refresh", func() (interface{}, error) {
		return c.refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.(*model.Snapshot), nil
}

func (c *Coordinator) refresh(ctx context.Context) (*model.Snapshot, error) {
	win := c.window()

	c.mu.RLock()
	next := c.state.Clone()
	c.mu.RUnlock()

	var applyMu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for category, fetch := range c.fetchers() {
		g.Go(func() error {
			apply, err := fetch(gctx, win)
			if err != nil {
				if ouraapi.IsAuthError(err) {
					return err
				}
				c.log.Errorw("category fetch failed, keeping previous data",
					"category", category, "error", err)
				return nil
			}
			applyMu.Lock()
			apply(next)
			applyMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// Fatal: no partial state is published.
		c.recordFailure(err)
		return nil, err
	}

	c.derive(next)
	next.LastUpdate = c.now()
	next.RateLimitRemaining = c.api.RateLimitRemaining()

	c.mu.Lock()
	c.state = next
	c.consecutiveFailures = 0
	c.mu.Unlock()

	return next, nil
}

// RefreshCategory refetches a single category and re-derives the snapshot;
// used for webhook-driven expedited updates.
func (c *Coordinator) RefreshCategory(ctx context.Context, category model.Category) error {
	fetch, ok := c.fetchers()[category]
	if !ok {
		return fmt.Errorf("unknown category %q", category)
	}

	_, err, _ := c.flight.Do("category:"+string(category), func() (interface{}, error) {
		apply, err := fetch(ctx, c.window())
		if err != nil {
			return nil, err
		}

		c.mu.RLock()
		next := c.state.Clone()
		c.mu.RUnlock()

		apply(next)
		c.derive(next)
		next.LastUpdate = c.now()
		next.RateLimitRemaining = c.api.RateLimitRemaining()

		c.mu.Lock()
		c.state = next
		c.mu.Unlock()
		return nil, nil
	})
	return err
}

// TrimHistory bounds the per-category lists; runs on its own schedule,
// independent of fetch success or failure.
func (c *Coordinator) TrimHistory() {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.state.Clone()
	next.Sleep = next.Sleep[:min(len(next.Sleep), maxHistoryEntries)]
	next.Readiness = next.Readiness[:min(len(next.Readiness), maxHistoryEntries)]
	next.Activity = next.Activity[:min(len(next.Activity), maxHistoryEntries)]
	next.HeartRate = next.HeartRate[:min(len(next.HeartRate), maxHistoryEntries)]
	next.Stress = next.Stress[:min(len(next.Stress), maxHistoryEntries)]
	next.SpO2 = next.SpO2[:min(len(next.SpO2), maxHistoryEntries)]
	next.Temperature = next.Temperature[:min(len(next.Temperature), maxHistoryEntries)]
	next.Workouts = next.Workouts[:min(len(next.Workouts), maxWorkoutEntries)]
	c.state = next
}

func (c *Coordinator) recordFailure(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consecutiveFailures++
	if c.consecutiveFailures >= failureWarnStreak {
		c.log.Warnw("multiple consecutive update failures",
			"failures", c.consecutiveFailures, "error", err)
	}
}

func (c *Coordinator) derive(next *model.Snapshot) {
	next.WellnessPhase = wellnessPhase(next.Readiness, next.Sleep, next.Activity)
	next.Circadian = circadianAlignment(next.Sleep)
	next.Trends = trends(next.Sleep, next.Readiness, next.Activity)
	if c.opts.EnablePredictions {
		next.Predictions = predictions(next.Readiness, next.Sleep, next.Activity)
	} else {
		next.Predictions = nil
	}
	if c.opts.EnableInsights {
		next.Insights = buildInsights(next)
	} else {
		next.Insights = nil
	}
}

type window struct {
	start string
	end   string
}

func (w window) startDatetime() string { return w.start + "T00:00:00" }
func (w window) endDatetime() string   { return w.end + "T23:59:59" }

func (c *Coordinator) window() window {
	end := c.now()
	start := end.AddDate(0, 0, -c.opts.LookbackDays)
	return window{
		start: start.Format("2006-01-02"),
		end:   end.Format("2006-01-02"),
	}
}

type applyFunc func(*model.Snapshot)

type fetchFunc func(ctx context.Context, win window) (applyFunc, error)

// fetchers maps each category to its fetch function. Dispatch through this
// table keeps every category independently testable.
func (c *Coordinator) fetchers() map[model.Category]fetchFunc {
	return map[model.Category]fetchFunc{
		model.CategorySleep:       c.fetchSleep,
		model.CategoryReadiness:   c.fetchReadiness,
		model.CategoryActivity:    c.fetchActivity,
		model.CategoryHeartRate:   c.fetchHeartRate,
		model.CategoryStress:      c.fetchStress,
		model.CategoryWorkouts:    c.fetchWorkouts,
		model.CategorySpO2:        c.fetchSpO2,
		model.CategoryTemperature: c.fetchTemperature,
	}
}

func (c *Coordinator) fetchSleep(ctx context.Context, win window) (applyFunc, error) {
	raw, err := c.api.DailySleep(ctx, win.start, win.end)
	if err != nil {
		return nil, err
	}

	records := make([]model.SleepRecord, 0, len(raw))
	for _, item := range raw {
		record, err := model.ParseSleepRecord(item)
		if err != nil {
			return nil, fmt.Errorf("parse sleep record: %w", err)
		}
		records = append(records, record)
	}
	sortByDayDesc(records, func(r model.SleepRecord) string { return r.Day })

	// Enrich today's summary with the detailed sleep period, when present.
	// A rejected token here is fatal like any other category fetch; only
	// transient failures skip the merge.
	periods, err := c.api.SleepPeriods(ctx, win.end, win.end)
	if err != nil {
		if ouraapi.IsAuthError(err) {
			return nil, err
		}
		c.log.Debugw("sleep period fetch failed, skipping detail merge", "error", err)
	} else if len(periods) > 0 {
		for i := range records {
			if records[i].Day == win.end {
				records[i].AddPeriodDetails(periods[0])
				break
			}
		}
	}

	return func(s *model.Snapshot) { s.Sleep = records }, nil
}

func (c *Coordinator) fetchReadiness(ctx context.Context, win window) (applyFunc, error) {
	records, err := c.readinessRecords(ctx, win)
	if err != nil {
		return nil, err
	}
	return func(s *model.Snapshot) { s.Readiness = records }, nil
}

// fetchTemperature derives temperature rows from the readiness payload; the
// repeated readiness request is served by the client's response cache.
func (c *Coordinator) fetchTemperature(ctx context.Context, win window) (applyFunc, error) {
	readiness, err := c.readinessRecords(ctx, win)
	if err != nil {
		return nil, err
	}

	records := make([]model.TemperatureRecord, 0, len(readiness))
	for _, r := range readiness {
		if r.TemperatureDeviation == nil && r.TemperatureTrend == nil {
			continue
		}
		records = append(records, model.TemperatureRecord{
			Day:       r.Day,
			Deviation: r.TemperatureDeviation,
			Trend:     r.TemperatureTrend,
		})
	}
	return func(s *model.Snapshot) { s.Temperature = records }, nil
}

func (c *Coordinator) readinessRecords(ctx context.Context, win window) ([]model.ReadinessRecord, error) {
	raw, err := c.api.DailyReadiness(ctx, win.start, win.end)
	if err != nil {
		return nil, err
	}

	records := make([]model.ReadinessRecord, 0, len(raw))
	for _, item := range raw {
		record, err := model.ParseReadinessRecord(item)
		if err != nil {
			return nil, fmt.Errorf("parse readiness record: %w", err)
		}
		records = append(records, record)
	}
	sortByDayDesc(records, func(r model.ReadinessRecord) string { return r.Day })
	return records, nil
}

func (c *Coordinator) fetchActivity(ctx context.Context, win window) (applyFunc, error) {
	raw, err := c.api.DailyActivity(ctx, win.start, win.end)
	if err != nil {
		return nil, err
	}

	records := make([]model.ActivityRecord, 0, len(raw))
	for _, item := range raw {
		record, err := model.ParseActivityRecord(item)
		if err != nil {
			return nil, fmt.Errorf("parse activity record: %w", err)
		}
		records = append(records, record)
	}
	sortByDayDesc(records, func(r model.ActivityRecord) string { return r.Day })
	return func(s *model.Snapshot) { s.Activity = records }, nil
}

func (c *Coordinator) fetchHeartRate(ctx context.Context, win window) (applyFunc, error) {
	raw, err := c.api.HeartRate(ctx, win.startDatetime(), win.endDatetime())
	if err != nil {
		return nil, err
	}

	byDay := make(map[string][]int)
	for _, item := range raw {
		sample, err := model.ParseHeartRateSample(item)
		if err != nil {
			return nil, fmt.Errorf("parse heart rate sample: %w", err)
		}
		if len(sample.Timestamp) < 10 {
			continue
		}
		day := sample.Timestamp[:10]
		byDay[day] = append(byDay[day], sample.BPM)
	}

	records := make([]model.HeartRateRecord, 0, len(byDay))
	for day, values := range byDay {
		if len(values) == 0 {
			continue
		}
		sum, minimum, maximum := 0, values[0], values[0]
		for _, v := range values {
			sum += v
			if v < minimum {
				minimum = v
			}
			if v > maximum {
				maximum = v
			}
		}
		records = append(records, model.HeartRateRecord{
			Day:     day,
			Average: float64(sum) / float64(len(values)),
			Minimum: minimum,
			Maximum: maximum,
			Resting: minimum,
			Samples: values,
		})
	}
	sortByDayDesc(records, func(r model.HeartRateRecord) string { return r.Day })
	return func(s *model.Snapshot) { s.HeartRate = records }, nil
}

func (c *Coordinator) fetchStress(ctx context.Context, win window) (applyFunc, error) {
	raw, err := c.api.DailyStress(ctx, win.start, win.end)
	if err != nil {
		return nil, err
	}

	records := make([]model.StressRecord, 0, len(raw))
	for _, item := range raw {
		record, err := model.ParseStressRecord(item)
		if err != nil {
			return nil, fmt.Errorf("parse stress record: %w", err)
		}
		records = append(records, record)
	}
	sortByDayDesc(records, func(r model.StressRecord) string { return r.Day })
	return func(s *model.Snapshot) { s.Stress = records }, nil
}

func (c *Coordinator) fetchWorkouts(ctx context.Context, win window) (applyFunc, error) {
	raw, err := c.api.Workouts(ctx, win.start, win.end)
	if err != nil {
		return nil, err
	}

	records := make([]model.WorkoutRecord, 0, len(raw))
	for _, item := range raw {
		record, err := model.ParseWorkoutRecord(item)
		if err != nil {
			return nil, fmt.Errorf("parse workout record: %w", err)
		}
		records = append(records, record)
	}
	sortByDayDesc(records, func(r model.WorkoutRecord) string { return r.Day })
	return func(s *model.Snapshot) { s.Workouts = records }, nil
}

func (c *Coordinator) fetchSpO2(ctx context.Context, win window) (applyFunc, error) {
	raw, err := c.api.DailySpO2(ctx, win.start, win.end)
	if err != nil {
		return nil, err
	}

	records := make([]model.SpO2Record, 0, len(raw))
	for _, item := range raw {
		record, err := model.ParseSpO2Record(item)
		if err != nil {
			return nil, fmt.Errorf("parse spo2 record: %w", err)
		}
		records = append(records, record)
	}
	sortByDayDesc(records, func(r model.SpO2Record) string { return r.Day })
	return func(s *model.Snapshot) { s.SpO2 = records }, nil
}

func sortByDayDesc[T any](records []T, day func(T) string) {
	sort.SliceStable(records, func(i, j int) bool {
		return day(records[i]) > day(records[j])
	})
}

