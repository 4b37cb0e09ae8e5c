package policy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errTransient = errors.New("transient")

func fastBackoff(maxRetries uint64, retryable func(error) bool) *BackoffPolicy {
	return NewBackoff(Config{
		Name:            NameBackoff,
		MaxRetries:      &maxRetries,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Retryable:       retryable,
	})
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		wantName string
		wantErr  bool
	}{
		{"", NameStrict, false},
		{NameStrict, NameStrict, false},
		{NameBackoff, NameBackoff, false},
		{"aggressive", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New(Config{Name: tt.name})
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if r.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", r.Name(), tt.wantName)
			}
		})
	}
}

func TestStrict_SingleAttempt(t *testing.T) {
	p := NewStrict()
	calls := 0
	err := p.Do(t.Context(), func() error {
		calls++
		return errTransient
	})
	if !errors.Is(err, errTransient) {
		t.Fatalf("expected errTransient, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}

	stats := p.Stats()
	if stats.Attempts != 1 || stats.Retries != 0 || stats.Failures != 1 {
		t.Errorf("Stats = %+v", stats)
	}
}

func TestStrict_CanceledContextSkipsOp(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	called := false
	err := NewStrict().Do(ctx, func() error {
		called = true
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if called {
		t.Error("op should not run on a canceled context")
	}
}

func TestStrict_ConcurrentStats(t *testing.T) {
	p := NewStrict()
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Do(context.Background(), func() error { return nil })
		}()
	}
	wg.Wait()

	if got := p.Stats().Attempts; got != 50 {
		t.Errorf("Attempts = %d, want 50", got)
	}
}

func TestBackoff_RetriesThenSucceeds(t *testing.T) {
	p := fastBackoff(5, nil)
	calls := 0
	err := p.Do(t.Context(), func() error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}

	stats := p.Stats()
	if stats.Attempts != 3 || stats.Retries != 2 || stats.Failures != 0 {
		t.Errorf("Stats = %+v", stats)
	}
}

func TestBackoff_GivesUpAfterMaxRetries(t *testing.T) {
	p := fastBackoff(2, nil)
	calls := 0
	err := p.Do(t.Context(), func() error {
		calls++
		return errTransient
	})
	if !errors.Is(err, errTransient) {
		t.Fatalf("expected errTransient, got %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3 (1 attempt + 2 retries)", calls)
	}
	if p.Stats().Failures != 1 {
		t.Errorf("Failures = %d, want 1", p.Stats().Failures)
	}
}

func TestBackoff_ZeroRetriesSingleAttempt(t *testing.T) {
	p := fastBackoff(0, nil)
	calls := 0
	err := p.Do(t.Context(), func() error {
		calls++
		return errTransient
	})
	if !errors.Is(err, errTransient) {
		t.Fatalf("expected errTransient, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if p.MaxRetries() != 0 {
		t.Errorf("MaxRetries() = %d, want 0", p.MaxRetries())
	}
	if s := p.Stats(); s.Attempts != 1 || s.Retries != 0 || s.Failures != 1 {
		t.Errorf("Stats = %+v", s)
	}
}

func TestBackoff_NonRetryableStopsImmediately(t *testing.T) {
	errIntegrity := errors.New("hash mismatch")
	p := fastBackoff(5, func(err error) bool { return !errors.Is(err, errIntegrity) })

	calls := 0
	err := p.Do(t.Context(), func() error {
		calls++
		return errIntegrity
	})
	if !errors.Is(err, errIntegrity) {
		t.Fatalf("expected errIntegrity, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestBackoff_ContextCanceledDuringRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	p := fastBackoff(100, nil)

	calls := 0
	err := p.Do(ctx, func() error {
		calls++
		if calls == 2 {
			cancel()
		}
		return errTransient
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls > 3 {
		t.Errorf("calls = %d, retries should stop soon after cancel", calls)
	}
}

func TestBackoff_Defaults(t *testing.T) {
	p := NewBackoff(Config{})
	if p.MaxRetries() != DefaultMaxRetries {
		t.Errorf("MaxRetries() = %d, want %d", p.MaxRetries(), DefaultMaxRetries)
	}
	if p.initialInterval != DefaultInitialInterval || p.maxInterval != DefaultMaxInterval {
		t.Errorf("intervals = %v/%v", p.initialInterval, p.maxInterval)
	}
}
