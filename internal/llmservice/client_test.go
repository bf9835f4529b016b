package llmservice

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryPolicyRetriesOnRateLimit(t *testing.T) {
	var slept []time.Duration
	p := RetryPolicy{
		Enabled:     true,
		MaxAttempts: 3,
		DefaultWait: 60 * time.Second,
		Sleep:       func(d time.Duration) { slept = append(slept, d) },
	}
	calls := 0
	out, err := p.Do(context.Background(), func() (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("429: rate limit exceeded, please try again in 2s")
		}
		return "answer", nil
	})
	if err != nil || out != "answer" {
		t.Fatalf("got %q, %v", out, err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if len(slept) != 2 || slept[0] != 2*time.Second || slept[1] != 2*time.Second {
		t.Errorf("slept = %v, want two 2s waits", slept)
	}
}

func TestRetryPolicyDefaultWait(t *testing.T) {
	var slept []time.Duration
	p := RetryPolicy{
		Enabled:     true,
		MaxAttempts: 2,
		DefaultWait: 60 * time.Second,
		Sleep:       func(d time.Duration) { slept = append(slept, d) },
	}
	calls := 0
	_, err := p.Do(context.Background(), func() (string, error) {
		calls++
		return "", errors.New("429 too many requests")
	})
	if err == nil {
		t.Fatal("expected final error")
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if len(slept) != 1 || slept[0] != 60*time.Second {
		t.Errorf("slept = %v, want one 60s wait", slept)
	}
}

func TestRetryPolicyAttemptCap(t *testing.T) {
	p := RetryPolicy{
		Enabled:     true,
		MaxAttempts: 3,
		DefaultWait: time.Second,
		Sleep:       func(time.Duration) {},
	}
	calls := 0
	_, err := p.Do(context.Background(), func() (string, error) {
		calls++
		return "", errors.New("rate limit reached")
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryPolicyNonRateLimitPropagates(t *testing.T) {
	p := RetryPolicy{
		Enabled:     true,
		MaxAttempts: 3,
		DefaultWait: time.Second,
		Sleep:       func(time.Duration) { t.Fatal("must not sleep") },
	}
	calls := 0
	wantErr := errors.New("500: internal provider failure")
	_, err := p.Do(context.Background(), func() (string, error) {
		calls++
		return "", wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryPolicyDisabled(t *testing.T) {
	p := RetryPolicy{
		Enabled:     false,
		MaxAttempts: 3,
		DefaultWait: time.Second,
		Sleep:       func(time.Duration) { t.Fatal("must not sleep") },
	}
	calls := 0
	_, err := p.Do(context.Background(), func() (string, error) {
		calls++
		return "", errors.New("429 rate limit")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 when retry is disabled", calls)
	}
}

func TestParseSuggestedWait(t *testing.T) {
	tests := []struct {
		msg  string
		want time.Duration
		ok   bool
	}{
		{"Rate limit reached. Please try again in 20s.", 20 * time.Second, true},
		{"please retry after 3s", 3 * time.Second, true},
		{"try again in 1.5s", 1500 * time.Millisecond, true},
		{"rate limit exceeded", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseSuggestedWait(tt.msg)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseSuggestedWait(%q) = %v, %v; want %v, %v", tt.msg, got, ok, tt.want, tt.ok)
		}
	}
}

func TestIsRateLimit(t *testing.T) {
	if !IsRateLimit(errors.New("API returned unexpected status code: 429")) {
		t.Error("429 status not detected")
	}
	if IsRateLimit(errors.New("connection refused")) {
		t.Error("false positive on unrelated error")
	}
	if IsRateLimit(nil) {
		t.Error("nil error detected as rate limit")
	}
}
