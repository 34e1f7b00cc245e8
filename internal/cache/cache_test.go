// MLflow Grafana Visualization - Experiment Tracking Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization

package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCache_SetGet(t *testing.T) {
	t.Parallel()

	c := New[int](time.Minute)
	c.Set("a", 1)

	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %d, %v; want 1, true", v, ok)
	}
	if _, ok := c.Get("b"); ok {
		t.Error("Get(b) found a missing key")
	}

	st := c.Stats()
	if st.Hits != 1 || st.Misses != 1 || st.Keys != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestCache_Expiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New[string](10 * time.Second)
	c.now = func() time.Time { return now }

	c.Set("k", "v")
	now = now.Add(9 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry expired early")
	}
	now = now.Add(time.Second)
	if _, ok := c.Get("k"); ok {
		t.Fatal("entry survived its TTL")
	}
	if st := c.Stats(); st.Evictions != 1 || st.Keys != 0 {
		t.Errorf("stats = %+v, want one eviction and no keys", st)
	}
}

func TestCache_Clear(t *testing.T) {
	t.Parallel()

	c := New[int](time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Clear()

	if _, ok := c.Get("a"); ok {
		t.Error("Get(a) after Clear found entry")
	}
	if st := c.Stats(); st.Evictions != 2 {
		t.Errorf("evictions = %d, want 2", st.Evictions)
	}
}

func TestCache_GetOrLoad(t *testing.T) {
	t.Parallel()

	c := New[int](time.Minute)
	var calls atomic.Int32
	release := make(chan struct{})
	load := func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.GetOrLoad(context.Background(), "counts", load)
			if err != nil {
				t.Errorf("GetOrLoad() error = %v", err)
			}
			results[i] = v
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, v := range results {
		if v != 42 {
			t.Errorf("results[%d] = %d, want 42", i, v)
		}
	}
	if n := calls.Load(); n < 1 || n > 2 {
		t.Errorf("load calls = %d, want concurrent misses to share one load", n)
	}

	v, err := c.GetOrLoad(context.Background(), "counts", func(context.Context) (int, error) {
		t.Error("loader called for a cached key")
		return 0, nil
	})
	if err != nil || v != 42 {
		t.Errorf("cached GetOrLoad() = %d, %v", v, err)
	}
}

func TestCache_GetOrLoadErrorNotCached(t *testing.T) {
	t.Parallel()

	c := New[int](time.Minute)
	boom := errors.New("boom")
	if _, err := c.GetOrLoad(context.Background(), "k", func(context.Context) (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("GetOrLoad() error = %v, want boom", err)
	}
	v, err := c.GetOrLoad(context.Background(), "k", func(context.Context) (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Errorf("GetOrLoad() after error = %d, %v; want 7", v, err)
	}
}
