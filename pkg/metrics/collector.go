package metrics

import (
	"time"
)

// Stats is a point-in-time summary of the session registry
type Stats struct {
	PublicSessions  int
	PrivateSessions int
	Connected       int
	Disconnected    int
	ItemLeases      int
	StackLeases     int
}

// StatsSource is implemented by the session registry
type StatsSource interface {
	Stats() Stats
}

// Collector polls a StatsSource into gauges
type Collector struct {
	source   StatsSource
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(source StatsSource, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{
		source:   source,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		c.Collect()

		for {
			select {
			case <-ticker.C:
				c.Collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

// Collect refreshes every registry gauge once
func (c *Collector) Collect() {
	s := c.source.Stats()

	SessionsActive.WithLabelValues("public").Set(float64(s.PublicSessions))
	SessionsActive.WithLabelValues("private").Set(float64(s.PrivateSessions))
	ParticipantsTotal.WithLabelValues("connected").Set(float64(s.Connected))
	ParticipantsTotal.WithLabelValues("disconnected").Set(float64(s.Disconnected))
	LeasesActive.WithLabelValues("item").Set(float64(s.ItemLeases))
	LeasesActive.WithLabelValues("stack").Set(float64(s.StackLeases))
}
