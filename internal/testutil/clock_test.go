// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"sync"
	"testing"
	"time"
)

func TestFakeClock(t *testing.T) {
	t.Parallel()

	t.Run("zero time starts at the reference", func(t *testing.T) {
		t.Parallel()
		if got := NewFakeClock(time.Time{}).Now(); !got.Equal(ReferenceTime) {
			t.Errorf("Now() = %v, want %v", got, ReferenceTime)
		}
	})

	t.Run("advance and since", func(t *testing.T) {
		t.Parallel()
		start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
		c := NewFakeClock(start)
		c.Advance(90 * time.Second)
		if got := c.Since(start); got != 90*time.Second {
			t.Errorf("Since() = %v", got)
		}
		if got := c.Now(); !got.Equal(start.Add(90 * time.Second)) {
			t.Errorf("Now() = %v", got)
		}
	})

	t.Run("set", func(t *testing.T) {
		t.Parallel()
		c := NewFakeClock(time.Time{})
		target := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
		c.Set(target)
		if !c.Now().Equal(target) {
			t.Errorf("Now() = %v, want %v", c.Now(), target)
		}
	})

	t.Run("step", func(t *testing.T) {
		t.Parallel()
		c := NewFakeClock(time.Time{}).WithStep(time.Second)
		first, second := c.Now(), c.Now()
		if second.Sub(first) != time.Second {
			t.Errorf("consecutive readings differ by %v", second.Sub(first))
		}
		if c.Since(first) != 2*time.Second {
			t.Errorf("Since(first) = %v", c.Since(first))
		}
	})
}

func TestFakeClock_Concurrent(t *testing.T) {
	t.Parallel()

	c := NewFakeClock(time.Time{})
	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() { c.Advance(time.Millisecond) })
	}
	wg.Wait()
	if got := c.Since(ReferenceTime); got != 50*time.Millisecond {
		t.Errorf("Since() = %v, want 50ms", got)
	}
}

func TestContainerParallelism(t *testing.T) {
	tests := []struct {
		value string
		want  int
	}{
		{"3", 3},
		{"0", 0},
		{"x", 0},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv(EnvContainerParallel, tt.value)
			got := containerParallelism()
			if tt.want > 0 && got != tt.want {
				t.Errorf("containerParallelism() = %d, want %d", got, tt.want)
			}
			if tt.want == 0 && (got < 1 || got > 2) {
				t.Errorf("containerParallelism() = %d, want the default of 1 or 2", got)
			}
		})
	}
}
