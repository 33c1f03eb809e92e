package planner

import (
	"log"
	"sort"
	"time"

	"github.com/softgrid-robotics/fleetmotion/internal/core"
)

// PathsConflict tests two planned paths for a spatio-temporal overlap. Two
// waypoints conflict when they are closer than the spatial threshold and
// the time offset implied by their indices - under a constant assumed
// traversal interval per waypoint - is within the temporal window.
func PathsConflict(a, b []core.Point, dist float64, window, waypointInterval time.Duration) bool {
	for i, pa := range a {
		for j, pb := range b {
			if pa.Dist(pb) >= dist {
				continue
			}
			offset := i - j
			if offset < 0 {
				offset = -offset
			}
			if time.Duration(offset)*waypointInterval < window {
				return true
			}
		}
	}
	return false
}

// detectConflictsLocked returns the units whose active plans conflict with
// path, in deterministic (sorted) order. Callers hold the planner lock.
func (p *Planner) detectConflictsLocked(unit core.UnitID, path []core.Point) []core.UnitID {
	var conflicts []core.UnitID
	for other, plan := range p.plans {
		if other == unit {
			continue
		}
		if PathsConflict(path, plan.Path, float64(p.cfg.ConflictDistance), p.cfg.ConflictWindow, p.cfg.WaypointInterval) {
			conflicts = append(conflicts, other)
		}
	}
	sort.Slice(conflicts, func(i, j int) bool { return conflicts[i] < conflicts[j] })
	return conflicts
}

// resolveLocked attempts to clear conflicts by injecting a delay into each
// conflicting unit's plan and re-testing, up to the configured attempt
// budget. Returns the conflicts that remain.
func (p *Planner) resolveLocked(unit core.UnitID, path []core.Point, conflicts []core.UnitID) []core.UnitID {
	for attempt := 0; attempt < p.cfg.MaxResolveAttempts && len(conflicts) > 0; attempt++ {
		for _, other := range conflicts {
			if plan, ok := p.plans[other]; ok {
				p.delayPlanLocked(plan, p.cfg.DelayStep)
			}
		}
		conflicts = p.detectConflictsLocked(unit, path)
	}
	return conflicts
}

// delayPlanLocked postpones a plan by prepending repeated copies of its
// leading waypoint, one per assumed waypoint interval.
func (p *Planner) delayPlanLocked(plan *Plan, delay time.Duration) {
	if len(plan.Path) == 0 || p.cfg.WaypointInterval <= 0 {
		return
	}
	steps := int(delay / p.cfg.WaypointInterval)
	if steps <= 0 {
		return
	}
	hold := plan.Path[0]
	delayed := make([]core.Point, 0, steps+len(plan.Path))
	for i := 0; i < steps; i++ {
		delayed = append(delayed, hold)
	}
	plan.Path = append(delayed, plan.Path...)
	plan.EstimatedTime += delay
	log.Printf("planner: delayed %s by %s to clear a conflict", plan.Unit, delay)
}
