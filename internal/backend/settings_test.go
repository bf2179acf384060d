package backend

import (
	"testing"
	"time"
)

func TestParseEffort(t *testing.T) {
	cases := []struct {
		in      any
		want    Effort
		wantErr bool
	}{
		{nil, EffortNone, false},
		{"", EffortNone, false},
		{"low", EffortLow, false},
		{"Medium", EffortMedium, false},
		{"  HIGH  ", EffortHigh, false},
		{EffortHigh, EffortHigh, false},
		{"extreme", EffortNone, true},
		{42, EffortNone, true},
	}
	for _, c := range cases {
		got, err := ParseEffort(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParseEffort(%v): expected error", c.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseEffort(%v): unexpected error: %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("ParseEffort(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestResolveSettings_Defaults(t *testing.T) {
	rs, err := resolveSettings(Settings{}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rs.MaxTokens != defaultMaxTokens {
		t.Errorf("expected default max tokens, got %d", rs.MaxTokens)
	}
	if rs.Timeout != defaultCallTimeout {
		t.Errorf("expected default timeout, got %s", rs.Timeout)
	}
	if rs.Temperature != nil {
		t.Error("unset temperature should stay nil")
	}
}

func TestResolveSettings_EndpointTimeoutFallback(t *testing.T) {
	rs, err := resolveSettings(Settings{}, 45*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rs.Timeout != 45*time.Second {
		t.Errorf("expected endpoint timeout fallback, got %s", rs.Timeout)
	}

	rs, err = resolveSettings(Settings{Timeout: 10 * time.Second}, 45*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rs.Timeout != 10*time.Second {
		t.Errorf("agent timeout should win, got %s", rs.Timeout)
	}
}
