// Package engine provides the tick-based simulation loop and the simulation
// state it drives.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Tick schedule: one tick is one sim-minute.
const (
	TicksPerSimHour = 60
	TicksPerSimDay  = 1440
)

// Engine drives the simulation forward on a single goroutine.
type Engine struct {
	Tick     uint64        // Current tick counter (monotonic, never resets)
	Interval time.Duration // Wall-clock time per tick

	// Callbacks for each tick layer, populated during setup.
	OnTick func(tick uint64) // Every tick
	OnHour func(tick uint64) // Every 60 ticks
	OnDay  func(tick uint64) // Every 1440 ticks
}

// NewEngine creates an engine ticking at the given interval.
func NewEngine(interval time.Duration) *Engine {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Engine{Interval: interval}
}

// Run ticks until ctx is cancelled. Every callback runs on the calling goroutine.
func (e *Engine) Run(ctx context.Context) {
	slog.Info("simulation engine started", "tick", e.Tick, "interval", e.Interval)

	ticker := time.NewTicker(e.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("simulation engine stopped", "tick", e.Tick)
			return
		case <-ticker.C:
			e.Step()
		}
	}
}

// Step advances the simulation by one tick.
func (e *Engine) Step() {
	e.Tick++

	if e.OnTick != nil {
		e.OnTick(e.Tick)
	}
	if e.Tick%TicksPerSimHour == 0 && e.OnHour != nil {
		e.OnHour(e.Tick)
	}
	if e.Tick%TicksPerSimDay == 0 && e.OnDay != nil {
		e.OnDay(e.Tick)
	}
}

// SimTime returns a human-readable campaign time for a tick number.
func SimTime(tick uint64) string {
	minutes := tick % 60
	totalHours := tick / 60
	hours := totalHours % 24
	days := totalHours/24 + 1
	return fmt.Sprintf("Day %d, %d:%02d", days, hours, minutes)
}
