// Package planner arbitrates path requests across units, detects and
// resolves cross-unit plan conflicts, and supervises plan execution.
package planner

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/softgrid-robotics/fleetmotion/internal/config"
	"github.com/softgrid-robotics/fleetmotion/internal/core"
	"github.com/softgrid-robotics/fleetmotion/internal/grid"
	"github.com/softgrid-robotics/fleetmotion/internal/tracker"
)

// Request is a queued path request. At most one live request exists per
// unit; a newer request supersedes the old one.
type Request struct {
	Unit     core.UnitID
	Start    core.Point
	Goal     core.Point
	Priority core.Priority
	Created  time.Time
	Timeout  time.Duration

	escalated bool
}

// Expired reports whether the request outlived its timeout.
func (r *Request) Expired() bool {
	return time.Since(r.Created) > r.Timeout
}

// Plan is the result of a successful request. Conflicts carries the units
// whose plans still spatio-temporally overlap this one after resolution.
type Plan struct {
	ID            uuid.UUID
	Unit          core.UnitID
	Path          []core.Point
	EstimatedTime time.Duration
	Created       time.Time
	Conflicts     []core.UnitID
}

// expired reports whether the plan outlived its estimate plus grace.
func (p *Plan) expired(grace time.Duration) bool {
	return time.Since(p.Created) > p.EstimatedTime+grace
}

// Planner owns the request queue and the active-plan table. One mutex
// guards both, so an emergency stop clears them atomically with respect to
// the planning loop.
type Planner struct {
	grid *grid.Grid
	trk  *tracker.Tracker
	cfg  *config.Config

	mu    sync.Mutex
	queue []*Request
	plans map[core.UnitID]*Plan

	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a planner over the given grid and tracker.
func New(g *grid.Grid, trk *tracker.Tracker, cfg *config.Config) *Planner {
	return &Planner{
		grid:  g,
		trk:   trk,
		cfg:   cfg,
		plans: make(map[core.UnitID]*Plan),
	}
}

// Start launches the background planning loop. No-op if already running.
func (p *Planner) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.running = true
	p.mu.Unlock()

	p.wg.Add(1)
	go p.loop(ctx)
}

// Stop halts the planning loop and waits for it to exit.
func (p *Planner) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancel
	p.mu.Unlock()

	cancel()
	p.wg.Wait()
}

func (p *Planner) loop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.PlannerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		p.Step()
	}
}

// Step runs one planning cycle: process the best live request, monitor
// executing plans, collect garbage. The loop calls it every interval;
// tests call it directly for deterministic sequencing.
func (p *Planner) Step() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processLocked()
	p.monitorLocked()
	p.gcLocked()
}

// RequestPath queues a path request for the unit, superseding any pending
// request for it. Reports whether the request was accepted.
func (p *Planner) RequestPath(unit core.UnitID, start, goal core.Point, prio core.Priority) bool {
	req := &Request{
		Unit:     unit,
		Start:    start,
		Goal:     goal,
		Priority: prio,
		Created:  time.Now(),
		Timeout:  p.cfg.RequestTimeout,
	}
	p.mu.Lock()
	p.enqueueLocked(req, false)
	p.mu.Unlock()
	return true
}

// Path returns a copy of the unit's active planned path, nil if none.
func (p *Planner) Path(unit core.UnitID) []core.Point {
	p.mu.Lock()
	defer p.mu.Unlock()
	plan, ok := p.plans[unit]
	if !ok {
		return nil
	}
	out := make([]core.Point, len(plan.Path))
	copy(out, plan.Path)
	return out
}

// PlanFor returns a copy of the unit's active plan.
func (p *Planner) PlanFor(unit core.UnitID) (Plan, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	plan, ok := p.plans[unit]
	if !ok {
		return Plan{}, false
	}
	cp := *plan
	cp.Path = append([]core.Point(nil), plan.Path...)
	cp.Conflicts = append([]core.UnitID(nil), plan.Conflicts...)
	return cp, true
}

// Cancel removes the unit's queued request and active plan.
func (p *Planner) Cancel(unit core.UnitID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeQueuedLocked(unit)
	delete(p.plans, unit)
}

// EmergencyStop clears the request queue and the active-plan table
// atomically with respect to the planning loop.
func (p *Planner) EmergencyStop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = nil
	p.plans = make(map[core.UnitID]*Plan)
	log.Printf("planner: emergency stop, queue and plans cleared")
}

// enqueueLocked inserts a request, replacing any pending request for the
// same unit. front pushes the request ahead of everything at its priority.
func (p *Planner) enqueueLocked(req *Request, front bool) {
	p.removeQueuedLocked(req.Unit)
	if front {
		p.queue = append([]*Request{req}, p.queue...)
	} else {
		p.queue = append(p.queue, req)
	}
	// Stable: equal priorities keep arrival order.
	sort.SliceStable(p.queue, func(i, j int) bool {
		return p.queue[i].Priority > p.queue[j].Priority
	})
}

func (p *Planner) removeQueuedLocked(unit core.UnitID) {
	kept := p.queue[:0]
	for _, r := range p.queue {
		if r.Unit != unit {
			kept = append(kept, r)
		}
	}
	p.queue = kept
}

// popLocked removes and returns the highest-priority non-expired request.
func (p *Planner) popLocked() *Request {
	for len(p.queue) > 0 {
		req := p.queue[0]
		p.queue = p.queue[1:]
		if req.Expired() {
			log.Printf("planner: request for %s expired in queue", req.Unit)
			continue
		}
		return req
	}
	return nil
}

// processLocked handles one request end to end.
func (p *Planner) processLocked() {
	req := p.popLocked()
	if req == nil {
		return
	}

	// Plan from the live tracked position when we have one; the requested
	// start may be stale by the time the request is processed.
	start := req.Start
	if cur, ok := p.trk.CurrentPosition(req.Unit); ok {
		start = cur
	}

	path := p.grid.PlanPath(req.Unit, start, req.Goal)
	if len(path) == 0 {
		// Unreachable goal is a normal outcome. High-priority requests get
		// another chance at the front of the queue; the rest are dropped.
		if req.Priority >= core.PriorityHigh {
			req.Created = time.Now()
			p.enqueueLocked(req, true)
		} else {
			log.Printf("planner: no path for %s to (%d,%d), dropped", req.Unit, req.Goal.X, req.Goal.Y)
		}
		return
	}

	plan := &Plan{
		ID:            uuid.New(),
		Unit:          req.Unit,
		Path:          path,
		EstimatedTime: p.estimate(path),
		Created:       time.Now(),
	}

	conflicts := p.detectConflictsLocked(req.Unit, path)
	if len(conflicts) > 0 && req.Priority != core.PriorityEmergency {
		conflicts = p.resolveLocked(req.Unit, path, conflicts)
	}

	if len(conflicts) > 0 {
		switch p.cfg.ConflictPolicy {
		case config.PolicyBlock:
			log.Printf("planner: unresolved conflicts for %s with %v, plan dropped", req.Unit, conflicts)
			return
		case config.PolicyEscalate:
			if !req.escalated {
				req.escalated = true
				req.Priority = core.PriorityEmergency
				req.Created = time.Now()
				p.enqueueLocked(req, true)
				log.Printf("planner: unresolved conflicts for %s with %v, escalated", req.Unit, conflicts)
				return
			}
			fallthrough
		default:
			// Soft-fail: keep the plan, retain the conflict set as a warning.
			// Liveness over strict safety once retries exhaust.
			log.Printf("planner: unresolved conflicts for %s with %v, plan kept", req.Unit, conflicts)
		}
	}

	plan.Conflicts = conflicts
	p.plans[req.Unit] = plan
}

// monitorLocked supervises executing plans: deviation triggers a
// High-priority replan to the original goal, arrival retires the plan.
func (p *Planner) monitorLocked() {
	for _, unit := range p.sortedPlanUnitsLocked() {
		plan := p.plans[unit]
		if len(plan.Path) == 0 {
			continue
		}
		cur, ok := p.trk.CurrentPosition(unit)
		if !ok {
			continue
		}

		goal := plan.Path[len(plan.Path)-1]
		if cur.Dist(goal) <= float64(p.cfg.ArrivalThreshold) {
			delete(p.plans, unit)
			continue
		}

		if deviation(cur, plan.Path) > float64(p.cfg.DeviationThreshold) {
			log.Printf("planner: %s deviated from path, replanning", unit)
			p.enqueueLocked(&Request{
				Unit:     unit,
				Start:    cur,
				Goal:     goal,
				Priority: core.PriorityHigh,
				Created:  time.Now(),
				Timeout:  p.cfg.RequestTimeout,
			}, false)
		}
	}
}

// gcLocked drops expired queued requests and aged-out plans.
func (p *Planner) gcLocked() {
	kept := p.queue[:0]
	for _, r := range p.queue {
		if !r.Expired() {
			kept = append(kept, r)
		}
	}
	p.queue = kept

	for unit, plan := range p.plans {
		if plan.expired(p.cfg.PlanGrace) {
			log.Printf("planner: plan %s for %s aged out", plan.ID, unit)
			delete(p.plans, unit)
		}
	}
}

// estimate derives execution time from path length at the assumed speed.
func (p *Planner) estimate(path []core.Point) time.Duration {
	if len(path) < 2 {
		return 0
	}
	total := 0.0
	for i := 1; i < len(path); i++ {
		total += path[i-1].Dist(path[i])
	}
	return time.Duration(total / p.cfg.AssumedSpeed * float64(time.Second))
}

// deviation is the distance from pos to the nearest waypoint of path.
func deviation(pos core.Point, path []core.Point) float64 {
	min := -1.0
	for _, wp := range path {
		if d := pos.Dist(wp); min < 0 || d < min {
			min = d
		}
	}
	return min
}

func (p *Planner) sortedPlanUnitsLocked() []core.UnitID {
	units := make([]core.UnitID, 0, len(p.plans))
	for unit := range p.plans {
		units = append(units, unit)
	}
	sort.Slice(units, func(i, j int) bool { return units[i] < units[j] })
	return units
}

// Status summarizes planner state.
type Status struct {
	Running     bool
	QueueDepth  int
	ActivePlans int
	ActiveUnits []core.UnitID
}

// Snapshot returns the current planner status.
func (p *Planner) Snapshot() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Status{
		Running:     p.running,
		QueueDepth:  len(p.queue),
		ActivePlans: len(p.plans),
		ActiveUnits: p.sortedPlanUnitsLocked(),
	}
}
