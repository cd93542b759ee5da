package config

import (
	"testing"
	"time"
)

func TestHTTPTimeouts(t *testing.T) {
	tests := []struct {
		name     string
		got      time.Duration
		expected time.Duration
	}{
		{"HTTPReadHeader", HTTPReadHeader, 5 * time.Second},
		{"HTTPRead", HTTPRead, 10 * time.Second},
		{"HTTPWrite", HTTPWrite, 30 * time.Second},
		{"HTTPIdle", HTTPIdle, 120 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.expected)
			}
		})
	}
}

// A stage budget must fit inside the whole-resolve budget, which must fit
// inside the HTTP write timeout.
func TestTimeoutOrdering(t *testing.T) {
	if StageDefault >= ResolveTotal {
		t.Errorf("StageDefault (%v) should be less than ResolveTotal (%v)", StageDefault, ResolveTotal)
	}
	if ResolveTotal >= HTTPWrite {
		t.Errorf("ResolveTotal (%v) should be less than HTTPWrite (%v)", ResolveTotal, HTTPWrite)
	}
	if EmbeddingRetryInitial >= EmbeddingRetryMax {
		t.Errorf("EmbeddingRetryInitial (%v) should be less than EmbeddingRetryMax (%v)", EmbeddingRetryInitial, EmbeddingRetryMax)
	}
}
