package ouraapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(Config{
		Token:   "test-token",
		BaseURL: server.URL,
		Sleep: func(ctx context.Context, d time.Duration) error {
			return nil
		},
	})
	return client, server
}

func TestPaginationFollowsNextToken(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("unexpected authorization header: %s", got)
		}

		page := calls.Add(1)
		resp := map[string]interface{}{
			"data": []map[string]string{{"id": "rec-" + r.URL.Query().Get("next_token")}},
		}
		if page < 3 {
			resp["next_token"] = "token-" + string(rune('0'+page))
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))

	items, err := client.DailySleep(context.Background(), "2026-08-25", "2026-09-01")
	if err != nil {
		t.Fatalf("daily sleep: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items across pages, got %d", len(items))
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 requests, got %d", calls.Load())
	}
}

func TestResponseCacheAvoidsSecondRequest(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"data":[{"id":"one"}]}`))
	}))

	for i := 0; i < 2; i++ {
		if _, err := client.DailyReadiness(context.Background(), "2026-08-25", "2026-09-01"); err != nil {
			t.Fatalf("daily readiness: %v", err)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("expected 1 network request, got %d", calls.Load())
	}

	client.ClearCache()
	if _, err := client.DailyReadiness(context.Background(), "2026-08-25", "2026-09-01"); err != nil {
		t.Fatalf("daily readiness after clear: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected cache clear to force a new request, got %d calls", calls.Load())
	}
}

func TestRateLimitRetryHonorsRetryAfter(t *testing.T) {
	var calls atomic.Int32
	var slept []time.Duration

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	client := NewClient(Config{
		Token:   "test-token",
		BaseURL: server.URL,
		Sleep: func(ctx context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
	})

	if _, err := client.DailyActivity(context.Background(), "2026-08-25", "2026-09-01"); err != nil {
		t.Fatalf("daily activity: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected retry after 429, got %d calls", calls.Load())
	}
	if len(slept) != 1 || slept[0] != 7*time.Second {
		t.Fatalf("expected one 7s sleep from Retry-After, got %v", slept)
	}
}

func TestRateLimitGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := client.DailyActivity(context.Background(), "2026-08-25", "2026-09-01")
	if err == nil {
		t.Fatal("expected rate limit error")
	}
	var rateErr *RateLimitError
	if !errors.As(err, &rateErr) {
		t.Fatalf("expected RateLimitError, got %T: %v", err, err)
	}
	if calls.Load() != maxRetries+1 {
		t.Fatalf("expected %d attempts, got %d", maxRetries+1, calls.Load())
	}
}

func TestUnauthorizedIsFatal(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.DailySleep(context.Background(), "2026-08-25", "2026-09-01")
	if !IsAuthError(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("401 must not be retried, got %d calls", calls.Load())
	}
}

func TestNotFoundMeansNoData(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	items, err := client.DailySpO2(context.Background(), "2026-08-25", "2026-09-01")
	if err != nil {
		t.Fatalf("expected nil error for 404, got %v", err)
	}
	if items != nil {
		t.Fatalf("expected no items for 404, got %v", items)
	}
}

func TestRateLimitFloorWaitsForReset(t *testing.T) {
	var slept []time.Duration
	now := time.Now()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	client := NewClient(Config{
		Token:   "test-token",
		BaseURL: server.URL,
		Now:     func() time.Time { return now },
		Sleep: func(ctx context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
	})
	client.rateRemaining = rateLimitFloor
	client.rateReset = now.Add(42 * time.Second)

	if _, err := client.Workouts(context.Background(), "2026-08-25", "2026-09-01"); err != nil {
		t.Fatalf("workouts: %v", err)
	}
	if len(slept) != 1 || slept[0] != 42*time.Second {
		t.Fatalf("expected one wait until reset, got %v", slept)
	}
}

func TestCacheKeyCanonicalizesQueryOrder(t *testing.T) {
	a := dateParams("2026-08-25", "2026-09-01")
	b := dateParams("", "")
	b.Set("end_date", "2026-09-01")
	b.Set("start_date", "2026-08-25")

	if cacheKey("GET", "v2/usercollection/daily_sleep", a) != cacheKey("GET", "v2/usercollection/daily_sleep", b) {
		t.Fatal("expected identical cache keys regardless of parameter order")
	}
}
