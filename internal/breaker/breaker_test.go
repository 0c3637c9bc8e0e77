package breaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errNoData = errors.New("no data")

func testConfig() Config {
	return Config{MaxRequests: 1, Interval: time.Minute, Timeout: time.Hour, MinRequests: 2, FailureRatio: 0.5}
}

func TestRegistry_TripsOnFailures(t *testing.T) {
	r := NewRegistry(testConfig(), nil, nil, nil)
	boom := errors.New("boom")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := Call(ctx, r, "svc", func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
			t.Fatalf("call %d: expected boom, got %v", i, err)
		}
	}
	_, err := Call(ctx, r, "svc", func() (int, error) { return 1, nil })
	if !errors.Is(err, ErrOpen) {
		t.Errorf("expected ErrOpen after tripping, got %v", err)
	}
	if r.State()["svc"] != "open" {
		t.Errorf("state = %v", r.State())
	}
}

func TestRegistry_IgnoredErrorsDoNotTrip(t *testing.T) {
	r := NewRegistry(testConfig(), func(err error) bool { return errors.Is(err, errNoData) }, nil, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := Call(ctx, r, "svc", func() (int, error) { return 0, errNoData }); !errors.Is(err, errNoData) {
			t.Fatalf("expected errNoData, got %v", err)
		}
	}
	got, err := Call(ctx, r, "svc", func() (int, error) { return 7, nil })
	if err != nil || got != 7 {
		t.Errorf("Call() = %d, %v", got, err)
	}
}

func TestCall_NilRegistry(t *testing.T) {
	got, err := Call(context.Background(), nil, "svc", func() (string, error) { return "ok", nil })
	if err != nil || got != "ok" {
		t.Errorf("Call() = %q, %v", got, err)
	}
}
