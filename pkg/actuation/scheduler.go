// Package actuation attaches time-keyed target schedules to motor
// constraints.
//
// A profile covers the closed interval [first keyframe, last keyframe] of
// its constraint's timeline and keeps holding its last value afterwards
// until a later profile takes over. Two profiles on the same constraint
// conflict when their intervals share more than a single handover instant.
package actuation

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/chazu/rigkit/pkg/assembly"
)

// Schedule is one profile attached to one constraint.
type Schedule struct {
	Constraint assembly.ConstraintID     `json:"constraint" yaml:"constraint"`
	Profile    assembly.ActuationProfile `json:"profile" yaml:"profile"`
}

// Scheduler owns the schedules of an assembly. It is safe for concurrent
// use.
type Scheduler struct {
	mu     sync.RWMutex
	motors map[assembly.ConstraintID]assembly.Constraint
	byID   map[assembly.ConstraintID][]Schedule // sorted by start time
	order  []assembly.ConstraintID
}

// NewScheduler returns a scheduler over the given constraints. Only motor
// constraints accept schedules.
func NewScheduler(constraints []assembly.Constraint) *Scheduler {
	s := &Scheduler{
		motors: make(map[assembly.ConstraintID]assembly.Constraint),
		byID:   make(map[assembly.ConstraintID][]Schedule),
	}
	for _, c := range constraints {
		if c.Kind == assembly.KindMotor {
			s.motors[c.ID] = c
		}
	}
	return s
}

// Validate checks that p has at least one keyframe and strictly increasing,
// finite times and values.
func Validate(p assembly.ActuationProfile) error {
	if len(p.Keyframes) == 0 {
		return &assembly.InvalidProfileError{Profile: p.Name, Reason: "no keyframes"}
	}
	for i, k := range p.Keyframes {
		if math.IsNaN(k.T) || math.IsInf(k.T, 0) || math.IsNaN(k.Value) || math.IsInf(k.Value, 0) {
			return &assembly.InvalidProfileError{Profile: p.Name, Index: i, T: k.T, Reason: "non-finite keyframe"}
		}
		if i > 0 && k.T <= p.Keyframes[i-1].T {
			return &assembly.InvalidProfileError{Profile: p.Name, Index: i, Prev: p.Keyframes[i-1].T, T: k.T}
		}
	}
	return nil
}

// overlaps reports whether two profiles on one constraint conflict.
// Touching at a single instant (a ends exactly where b starts) is a
// handover, not a conflict, unless either profile is a single instant
// itself and lies inside the other.
func overlaps(a, b *assembly.ActuationProfile) (bool, float64, float64) {
	as, ae := a.Start(), a.End()
	bs, be := b.Start(), b.End()
	if as == bs {
		return true, as, math.Min(ae, be)
	}
	if as < be && bs < ae {
		return true, math.Max(as, bs), math.Min(ae, be)
	}
	// Point profiles strictly inside the other range.
	if as == ae && bs < as && as < be {
		return true, as, as
	}
	if bs == be && as < bs && bs < ae {
		return true, bs, bs
	}
	return false, 0, 0
}

// Schedule attaches p to constraint id.
func (s *Scheduler) Schedule(id assembly.ConstraintID, p assembly.ActuationProfile) error {
	if err := Validate(p); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.motors[id]; !ok {
		return &assembly.DeclarationError{Decl: p.Name, Reason: fmt.Sprintf("constraint %s is not a motor; only motor constraints accept schedules", id)}
	}

	existing := s.byID[id]
	for i := range existing {
		if hit, from, to := overlaps(&existing[i].Profile, &p); hit {
			return &assembly.ScheduleConflictError{
				Constraint: id,
				Existing:   existing[i].Profile.Name,
				Incoming:   p.Name,
				From:       from,
				To:         to,
			}
		}
	}

	kf := make([]assembly.Keyframe, len(p.Keyframes))
	copy(kf, p.Keyframes)
	p.Keyframes = kf

	if len(existing) == 0 {
		s.order = append(s.order, id)
	}
	existing = append(existing, Schedule{Constraint: id, Profile: p})
	sort.SliceStable(existing, func(i, j int) bool { return existing[i].Profile.Start() < existing[j].Profile.Start() })
	s.byID[id] = existing
	return nil
}

// Target returns the target value of constraint id at time t. The active
// profile is the one with the latest start at or before t. ok is false when
// no profile has started yet.
func (s *Scheduler) Target(id assembly.ConstraintID, t float64) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scheds := s.byID[id]
	for i := len(scheds) - 1; i >= 0; i-- {
		if scheds[i].Profile.Start() <= t {
			return scheds[i].Profile.ValueAt(t)
		}
	}
	return 0, false
}

// For returns the schedules on constraint id, ordered by start time.
func (s *Scheduler) For(id assembly.ConstraintID) []Schedule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Schedule(nil), s.byID[id]...)
}

// All returns every schedule, grouped by constraint in first-scheduled order.
func (s *Scheduler) All() []Schedule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Schedule
	for _, id := range s.order {
		out = append(out, s.byID[id]...)
	}
	return out
}

// Span returns the earliest start and latest end over all schedules.
func (s *Scheduler) Span() (from, to float64, ok bool) {
	for _, sc := range s.All() {
		if !ok {
			from, to, ok = sc.Profile.Start(), sc.Profile.End(), true
			continue
		}
		from = math.Min(from, sc.Profile.Start())
		to = math.Max(to, sc.Profile.End())
	}
	return from, to, ok
}

// Samples evaluates constraint id from `from` to `to` inclusive in steps of
// step. Times before any profile starts sample as 0.
func (s *Scheduler) Samples(id assembly.ConstraintID, from, to, step float64) []float64 {
	if step <= 0 || to < from {
		return nil
	}
	n := int(math.Floor((to-from)/step)) + 1
	out := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		v, _ := s.Target(id, from+float64(i)*step)
		out = append(out, v)
	}
	return out
}
