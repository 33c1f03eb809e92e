// Package tracker converts raw telemetry into a consistent, queryable view
// of unit positions with bounded history, and fans out change notifications.
package tracker

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/softgrid-robotics/fleetmotion/internal/config"
	"github.com/softgrid-robotics/fleetmotion/internal/core"
	"github.com/softgrid-robotics/fleetmotion/internal/device"
)

// defaultVectorWindow is the history window used when deriving a velocity
// for prediction.
const defaultVectorWindow = time.Second

// Sample is one recorded position observation.
type Sample struct {
	At  time.Time
	Pos core.Point
}

// Update is a position-change notification delivered to subscribers.
type Update struct {
	Unit core.UnitID
	Pos  core.Point
	At   time.Time
}

// Tracker samples unit positions from the telemetry collaborator on a fixed
// interval and maintains capped, age-bounded history per unit.
//
// Subscribers receive updates over buffered channels, in subscription order.
// Sends never block: a slow subscriber drops updates rather than stalling
// the sampling loop.
type Tracker struct {
	mu sync.RWMutex

	tel      device.Telemetry
	interval time.Duration

	maxSamples int
	maxAge     time.Duration

	current map[core.UnitID]core.Point
	history map[core.UnitID][]Sample
	subs    []chan Update

	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a tracker over the given telemetry source.
func New(tel device.Telemetry, cfg *config.Config) *Tracker {
	return &Tracker{
		tel:        tel,
		interval:   cfg.TrackerInterval,
		maxSamples: cfg.HistoryMaxSamples,
		maxAge:     cfg.HistoryMaxAge,
		current:    make(map[core.UnitID]core.Point),
		history:    make(map[core.UnitID][]Sample),
	}
}

// Start launches the background sampling loop. Calling Start on a running
// tracker is a no-op.
func (t *Tracker) Start(ctx context.Context) {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return
	}
	ctx, t.cancel = context.WithCancel(ctx)
	t.running = true
	t.mu.Unlock()

	t.wg.Add(1)
	go t.loop(ctx)
}

// Stop halts the sampling loop and waits for it to exit.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	cancel := t.cancel
	t.mu.Unlock()

	cancel()
	t.wg.Wait()
}

func (t *Tracker) loop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for _, id := range t.tel.ConnectedUnits() {
			if p, ok := t.tel.Position(id); ok {
				t.Record(id, p)
			}
		}
		t.evict()
	}
}

// Record ingests one position sample. Samples identical to the last recorded
// position for the unit are suppressed: no history entry, no notification.
// Reports whether the sample was accepted.
func (t *Tracker) Record(id core.UnitID, p core.Point) bool {
	return t.record(id, p, false)
}

// ForceRecord ingests a sample even when it matches the last recorded
// position. Manual-correction hook; subscribers are notified as usual.
func (t *Tracker) ForceRecord(id core.UnitID, p core.Point) {
	t.record(id, p, true)
}

func (t *Tracker) record(id core.UnitID, p core.Point, force bool) bool {
	now := time.Now()

	t.mu.Lock()
	if prev, ok := t.current[id]; !force && ok && prev == p {
		t.mu.Unlock()
		return false
	}
	t.current[id] = p
	h := append(t.history[id], Sample{At: now, Pos: p})
	if len(h) > t.maxSamples {
		h = h[len(h)-t.maxSamples:]
	}
	t.history[id] = h
	subs := make([]chan Update, len(t.subs))
	copy(subs, t.subs)
	t.mu.Unlock()

	u := Update{Unit: id, Pos: p, At: now}
	for _, ch := range subs {
		select {
		case ch <- u:
		default:
			// Subscriber lagging; dropping beats stalling telemetry.
		}
	}
	return true
}

// Remove discards all state for a disconnected unit.
func (t *Tracker) Remove(id core.UnitID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.current, id)
	delete(t.history, id)
}

// evict drops samples older than the max age, and forgets units whose
// history emptied while they were unknown to current tracking.
func (t *Tracker) evict() {
	cutoff := time.Now().Add(-t.maxAge)

	t.mu.Lock()
	defer t.mu.Unlock()
	for id, h := range t.history {
		i := 0
		for i < len(h) && h[i].At.Before(cutoff) {
			i++
		}
		if i > 0 {
			h = h[i:]
			t.history[id] = h
		}
		if len(h) == 0 {
			if _, ok := t.current[id]; !ok {
				delete(t.history, id)
			}
		}
	}
}

// Subscribe registers for position updates. The returned channel is buffered
// with the given capacity; updates beyond it are dropped for this
// subscriber only.
func (t *Tracker) Subscribe(buffer int) <-chan Update {
	ch := make(chan Update, buffer)
	t.mu.Lock()
	t.subs = append(t.subs, ch)
	n := len(t.subs)
	t.mu.Unlock()
	log.Printf("tracker: subscriber added (%d total)", n)
	return ch
}

// CurrentPosition returns the unit's last recorded position.
func (t *Tracker) CurrentPosition(id core.UnitID) (core.Point, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.current[id]
	return p, ok
}

// AllPositions returns a copy of every unit's current position.
func (t *Tracker) AllPositions() map[core.UnitID]core.Point {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[core.UnitID]core.Point, len(t.current))
	for id, p := range t.current {
		out[id] = p
	}
	return out
}

// History returns the unit's samples no older than maxAge, oldest first.
// maxAge <= 0 returns the full retained history.
func (t *Tracker) History(id core.UnitID, maxAge time.Duration) []Sample {
	t.mu.RLock()
	defer t.mu.RUnlock()

	h := t.history[id]
	if maxAge > 0 {
		cutoff := time.Now().Add(-maxAge)
		i := 0
		for i < len(h) && h[i].At.Before(cutoff) {
			i++
		}
		h = h[i:]
	}
	out := make([]Sample, len(h))
	copy(out, h)
	return out
}

// MovementVector estimates the unit's linear velocity in mm/s from the
// oldest and newest samples within the window. ok is false with fewer than
// two samples or zero elapsed time.
func (t *Tracker) MovementVector(id core.UnitID, window time.Duration) (vx, vy float64, ok bool) {
	h := t.History(id, window)
	if len(h) < 2 {
		return 0, 0, false
	}
	oldest, newest := h[0], h[len(h)-1]
	dt := newest.At.Sub(oldest.At).Seconds()
	if dt <= 0 {
		return 0, 0, false
	}
	vx = float64(newest.Pos.X-oldest.Pos.X) / dt
	vy = float64(newest.Pos.Y-oldest.Pos.Y) / dt
	return vx, vy, true
}

// PredictPosition extrapolates the unit's position over the horizon using
// its current velocity. With no derivable velocity it returns the current
// position unchanged; ok is false only when the unit has no position at all.
func (t *Tracker) PredictPosition(id core.UnitID, horizon time.Duration) (core.Point, bool) {
	cur, ok := t.CurrentPosition(id)
	if !ok {
		return core.Point{}, false
	}
	vx, vy, ok := t.MovementVector(id, defaultVectorWindow)
	if !ok {
		return cur, true
	}
	s := horizon.Seconds()
	return core.Point{
		X: cur.X + int(vx*s),
		Y: cur.Y + int(vy*s),
	}, true
}

// IsMoving reports whether the unit's summed displacement across history
// samples within the window exceeds minDist.
func (t *Tracker) IsMoving(id core.UnitID, minDist float64, window time.Duration) bool {
	h := t.History(id, window)
	if len(h) < 2 {
		return false
	}
	total := 0.0
	for i := 1; i < len(h); i++ {
		total += h[i-1].Pos.Dist(h[i].Pos)
	}
	return total >= minDist
}

// Status summarizes tracking state.
type Status struct {
	Running bool
	Tracked int
}

// Snapshot returns the current tracker status.
func (t *Tracker) Snapshot() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Status{Running: t.running, Tracked: len(t.current)}
}
