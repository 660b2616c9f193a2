package config

import (
	"testing"
	"time"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidateRejectsBadWindows(t *testing.T) {
	cfg := Default()
	cfg.InsiderWindow = 10 * time.Second // shorter than sniper window
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for insider window <= sniper window")
	}
}

func TestValidateRejectsInvertedThresholds(t *testing.T) {
	cfg := Default()
	cfg.YellowThreshold = 0.05
	cfg.RedThreshold = 0.5
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for yellow <= red threshold")
	}
}

func TestValidateRejectsShortReceiveTimeout(t *testing.T) {
	cfg := Default()
	cfg.ReceiveTimeout = 40 * time.Second
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for receive timeout <= heartbeat interval+timeout")
	}
}
