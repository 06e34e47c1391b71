package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestNilLimiterNeverBlocks(t *testing.T) {
	var l *Limiter

	if err := l.Wait(context.Background(), APIFundgz); err != nil {
		t.Errorf("Wait() on nil limiter returned %v", err)
	}
	if !l.Allow(APIServerChan) {
		t.Error("Allow() on nil limiter returned false")
	}
}

func TestUnlimitedAPI(t *testing.T) {
	l := New(map[API]float64{APIFundgz: 0})

	for i := 0; i < 100; i++ {
		if !l.Allow(APIFundgz) {
			t.Fatalf("Allow() = false on call %d for unlimited API", i)
		}
	}
	if !l.Allow(APIServerChan) {
		t.Error("unconfigured API should be unlimited")
	}
}

func TestLimitedAPI(t *testing.T) {
	l := New(map[API]float64{APIFundgz: 1})

	if !l.Allow(APIFundgz) {
		t.Fatal("first Allow() should consume the burst")
	}
	if l.Allow(APIFundgz) {
		t.Error("second immediate Allow() should be refused at 1 req/s")
	}
}

func TestWait_ContextCancelled(t *testing.T) {
	l := New(map[API]float64{APIFundgz: 0.1})
	l.Allow(APIFundgz)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx, APIFundgz); err == nil {
		t.Error("Wait() expected error when the next token is beyond the deadline")
	}
}

func TestSetLimit_Remove(t *testing.T) {
	l := New(map[API]float64{APIServerChan: 1})
	l.Allow(APIServerChan)

	l.SetLimit(APIServerChan, 0)
	if !l.Allow(APIServerChan) {
		t.Error("Allow() should succeed after the limit is removed")
	}
}
