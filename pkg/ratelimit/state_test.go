package ratelimit

import (
	"testing"
	"time"
)

func TestState_Decisions(t *testing.T) {
	future := time.Now().Add(30 * time.Minute)
	past := time.Now().Add(-time.Minute)

	tests := []struct {
		name         string
		state        State
		wantBlock    bool
		wantThrottle bool
		wantHealthy  bool
	}{
		{
			name:        "full window",
			state:       State{Limit: 5000, Remaining: 4999, ResetAt: future},
			wantHealthy: true,
		},
		{
			name:         "below warning fraction",
			state:        State{Limit: 5000, Remaining: 499, ResetAt: future},
			wantThrottle: true,
		},
		{
			name:        "at warning fraction",
			state:       State{Limit: 5000, Remaining: 500, ResetAt: future},
			wantHealthy: true,
		},
		{
			name:      "exhausted before reset",
			state:     State{Limit: 60, Remaining: 0, ResetAt: future},
			wantBlock: true,
		},
		{
			name:        "exhausted after reset",
			state:       State{Limit: 60, Remaining: 0, ResetAt: past},
			wantHealthy: true,
		},
		{
			name:        "one request left",
			state:       State{Limit: 60, Remaining: 1, ResetAt: future},
			wantHealthy: false,
			// 1 < 6, throttled rather than blocked
			wantThrottle: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.NeedsCriticalBlock(); got != tt.wantBlock {
				t.Errorf("NeedsCriticalBlock() = %v, want %v", got, tt.wantBlock)
			}
			if got := tt.state.NeedsThrottling(); got != tt.wantThrottle {
				t.Errorf("NeedsThrottling() = %v, want %v", got, tt.wantThrottle)
			}
			if got := tt.state.IsHealthy(); got != tt.wantHealthy {
				t.Errorf("IsHealthy() = %v, want %v", got, tt.wantHealthy)
			}
		})
	}
}

func TestState_TimeUntilReset(t *testing.T) {
	s := State{ResetAt: time.Now().Add(-time.Second)}
	if got := s.TimeUntilReset(); got != 0 {
		t.Errorf("TimeUntilReset() = %v, want 0 for past reset", got)
	}

	s.ResetAt = time.Now().Add(time.Minute)
	if got := s.TimeUntilReset(); got < 59*time.Second || got > time.Minute {
		t.Errorf("TimeUntilReset() = %v, want about 1m", got)
	}
}

func TestState_IsStale(t *testing.T) {
	s := State{LastUpdate: time.Now().Add(-2 * time.Minute)}
	if !s.IsStale(time.Minute) {
		t.Error("IsStale(1m) = false for 2m old state")
	}
	if s.IsStale(5 * time.Minute) {
		t.Error("IsStale(5m) = true for 2m old state")
	}
}
