// Package config holds the explicit runtime configuration passed into each
// component constructor at startup.
package config

import (
	"fmt"
	"time"
)

// Config collects all tunables for the sentinel pipeline. Construct with
// Default() and override fields before wiring components; components keep a
// copy of the values they need, so Config is not read after startup.
type Config struct {
	// Classifier
	TeamThresholdPercent float64       // holder percentage for team role, inclusive
	SniperWindow         time.Duration // buys in (T0, T0+SniperWindow] are snipers
	InsiderWindow        time.Duration // buys in (sniper end, T0+InsiderWindow] are insiders
	MaxHoldersPerMint    int           // holder snapshot processing cap
	ClassificationTTL    time.Duration // classification cache TTL

	// Tracker
	YellowThreshold float64 // retained fraction at or below which status is YELLOW
	RedThreshold    float64 // retained fraction at or below which status is RED

	// Stream
	HeartbeatInterval time.Duration // ping cadence
	HeartbeatTimeout  time.Duration // pong wait before forced disconnect
	ReceiveTimeout    time.Duration // read deadline; must exceed interval+timeout
	ReconnectDelay    time.Duration // fixed delay before reconnect attempt
	AckTimeout        time.Duration // filter-replacement ack wait before rollback
	MaxFilterSize     int           // addresses per subscription before truncation

	// Dispatcher
	QueueCapacity int           // alert queue size
	SendDelay     time.Duration // minimum spacing between deliveries
	DedupTTL      time.Duration // dedup marker lifetime
	DrainTimeout  time.Duration // shutdown drain grace period

	// Engine
	ProcessedTxTTL time.Duration // processed-signature marker lifetime
	SweepInterval  time.Duration // periodic reclassification cadence
	WorkerLimit    int           // concurrent notification handlers
}

// Default returns the configuration the system ships with.
func Default() Config {
	return Config{
		TeamThresholdPercent: 5.0,
		SniperWindow:         15 * time.Second,
		InsiderWindow:        10 * time.Minute,
		MaxHoldersPerMint:    5000,
		ClassificationTTL:    6 * time.Hour,

		YellowThreshold: 0.5,
		RedThreshold:    0.1,

		HeartbeatInterval: 30 * time.Second,
		HeartbeatTimeout:  20 * time.Second,
		ReceiveTimeout:    80 * time.Second,
		ReconnectDelay:    5 * time.Second,
		AckTimeout:        30 * time.Second,
		MaxFilterSize:     45000,

		QueueCapacity: 5000,
		SendDelay:     150 * time.Millisecond,
		DedupTTL:      24 * time.Hour,
		DrainTimeout:  10 * time.Second,

		ProcessedTxTTL: 24 * time.Hour,
		SweepInterval:  5 * time.Minute,
		WorkerLimit:    32,
	}
}

// Validate rejects configurations that would wedge the pipeline.
func (c Config) Validate() error {
	if c.TeamThresholdPercent <= 0 || c.TeamThresholdPercent > 100 {
		return fmt.Errorf("team threshold must be in (0, 100], got %v", c.TeamThresholdPercent)
	}
	if c.SniperWindow <= 0 || c.InsiderWindow <= c.SniperWindow {
		return fmt.Errorf("insider window (%v) must exceed sniper window (%v)", c.InsiderWindow, c.SniperWindow)
	}
	if c.YellowThreshold <= c.RedThreshold {
		return fmt.Errorf("yellow threshold (%v) must exceed red threshold (%v)", c.YellowThreshold, c.RedThreshold)
	}
	if c.ReceiveTimeout <= c.HeartbeatInterval+c.HeartbeatTimeout {
		return fmt.Errorf("receive timeout (%v) must exceed heartbeat interval+timeout (%v)",
			c.ReceiveTimeout, c.HeartbeatInterval+c.HeartbeatTimeout)
	}
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("queue capacity must be positive, got %d", c.QueueCapacity)
	}
	if c.MaxFilterSize <= 0 {
		return fmt.Errorf("max filter size must be positive, got %d", c.MaxFilterSize)
	}
	if c.WorkerLimit <= 0 {
		return fmt.Errorf("worker limit must be positive, got %d", c.WorkerLimit)
	}
	return nil
}
