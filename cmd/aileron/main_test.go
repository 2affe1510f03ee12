package main

import (
	"fmt"
	"testing"

	"github.com/aileronlabs/aileron/pkg/config"
)

func TestExitCode(t *testing.T) {
	cfgErr := &config.ConfigError{Field: "chat.api_key", Message: "CHAT_API_KEY is required"}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"usage error", usageErrorf("retrieve-only 模式必須提供 --collection"), exitUsage},
		{"config error", cfgErr, exitConfig},
		{"wrapped config error", fmt.Errorf("loading: %w", cfgErr), exitConfig},
		{"runtime error", fmt.Errorf("store: connection refused"), exitRuntime},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestDisplayAddr(t *testing.T) {
	if got := displayAddr(":8080"); got != "localhost:8080" {
		t.Errorf("displayAddr(\":8080\") = %q", got)
	}
	if got := displayAddr("0.0.0.0:9000"); got != "0.0.0.0:9000" {
		t.Errorf("displayAddr(\"0.0.0.0:9000\") = %q", got)
	}
}
