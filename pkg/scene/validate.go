package scene

import (
	"fmt"

	"github.com/chazu/rigkit/pkg/actuation"
	"github.com/chazu/rigkit/pkg/assembly"
)

// ValidationSeverity indicates whether a finding makes the scene unusable
// or is merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // scene is inconsistent
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	Subject  string             // "member m1", "joint J0"; empty if scene-level
	Message  string             // human-readable description
	Severity ValidationSeverity // error or warning
}

func (e ValidationError) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Severity, e.Subject, e.Message)
}

// ValidationWarning describes a non-blocking advisory finding.
type ValidationWarning struct {
	Subject string
	Message string
}

func (w ValidationWarning) String() string {
	if w.Subject == "" {
		return w.Message
	}
	return w.Subject + ": " + w.Message
}

// ValidationResult bundles errors (blocking) and warnings (advisory)
// from all validation tiers.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// OK reports whether no blocking errors were found.
func (r ValidationResult) OK() bool { return len(r.Errors) == 0 }

func errorf(subject, format string, args ...any) ValidationError {
	return ValidationError{Subject: subject, Message: fmt.Sprintf(format, args...), Severity: SeverityError}
}

func warnf(subject, format string, args ...any) ValidationWarning {
	return ValidationWarning{Subject: subject, Message: fmt.Sprintf(format, args...)}
}

// Validate runs the Tier 1 structural checks and returns every finding. An
// empty slice means every reference in the scene resolves. Validate never
// mutates s.
func Validate(s *Scene) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateIDs(s)...)
	errs = append(errs, validateMemberNodes(s)...)
	errs = append(errs, validateJointCoverage(s)...)
	errs = append(errs, validateConstraints(s)...)
	errs = append(errs, validateDuplicateConstraints(s)...)
	errs = append(errs, validateSchedules(s)...)
	errs = append(errs, validateLoadTargets(s)...)
	return errs
}

// ValidateAll runs all validation tiers (structural, geometric, physical)
// and returns a ValidationResult with separated errors and warnings.
func ValidateAll(s *Scene) ValidationResult {
	var result ValidationResult
	result.Errors = append(result.Errors, Validate(s)...)

	geoErrs, geoWarnings := validateGeometry(s)
	result.Errors = append(result.Errors, geoErrs...)
	result.Warnings = append(result.Warnings, geoWarnings...)

	result.Warnings = append(result.Warnings, validatePhysical(s)...)
	return result
}

// ---------------------------------------------------------------------------
// Tier 1: structural validation
// ---------------------------------------------------------------------------

// validateIDs checks that node, member, joint and constraint ids are unique
// within their kind.
func validateIDs(s *Scene) []ValidationError {
	var errs []ValidationError
	dup := func(kind string, ids []string) {
		seen := make(map[string]bool, len(ids))
		for _, id := range ids {
			if id == "" {
				errs = append(errs, errorf(kind, "empty id"))
				continue
			}
			if seen[id] {
				errs = append(errs, errorf(kind+" "+id, "duplicate id"))
			}
			seen[id] = true
		}
	}

	ids := make([]string, 0, len(s.Nodes))
	for _, n := range s.Nodes {
		ids = append(ids, string(n.ID))
	}
	dup("node", ids)

	ids = ids[:0]
	for _, m := range s.Members {
		ids = append(ids, string(m.ID))
	}
	dup("member", ids)

	ids = ids[:0]
	for _, j := range s.Joints {
		ids = append(ids, string(j.ID))
	}
	dup("joint", ids)

	ids = ids[:0]
	for _, c := range s.Constraints {
		ids = append(ids, string(c.ID))
	}
	dup("constraint", ids)
	return errs
}

// validateMemberNodes checks that member endpoints name known nodes and
// sit on them.
func validateMemberNodes(s *Scene) []ValidationError {
	nodes := make(map[assembly.NodeID]assembly.Vec3, len(s.Nodes))
	for _, n := range s.Nodes {
		nodes[n.ID] = n.Position
	}
	tol := s.tolerance()

	var errs []ValidationError
	for _, m := range s.Members {
		subject := "member " + string(m.ID)
		for _, ref := range []struct {
			id  assembly.NodeID
			end assembly.End
		}{{m.StartNode, assembly.EndA}, {m.EndNode, assembly.EndB}} {
			if ref.id == "" {
				continue
			}
			pos, ok := nodes[ref.id]
			if !ok {
				errs = append(errs, errorf(subject, "%s references unknown node %q", ref.end, ref.id))
				continue
			}
			if !pos.ApproxEq(m.Endpoint(ref.end), tol) {
				errs = append(errs, errorf(subject, "%s %s does not sit on node %s at %s", ref.end, m.Endpoint(ref.end), ref.id, pos))
			}
		}
	}
	return errs
}

// validateJointCoverage checks that every member end lies in exactly one
// joint and that joints only name known members.
func validateJointCoverage(s *Scene) []ValidationError {
	members := s.memberIndex()
	count := make(map[assembly.EndRef]int, 2*len(s.Members))

	var errs []ValidationError
	for _, j := range s.Joints {
		subject := "joint " + string(j.ID)
		if len(j.Ends) == 0 {
			errs = append(errs, errorf(subject, "has no member ends"))
		}
		for _, e := range j.Ends {
			if _, ok := members[e.Member]; !ok {
				errs = append(errs, errorf(subject, "references unknown member %q", e.Member))
				continue
			}
			count[e]++
		}
	}

	for _, m := range s.Members {
		for _, end := range []assembly.End{assembly.EndA, assembly.EndB} {
			ref := assembly.EndRef{Member: m.ID, End: end}
			switch n := count[ref]; {
			case n == 0:
				errs = append(errs, errorf("member "+string(m.ID), "%s end is in no joint", end))
			case n > 1:
				errs = append(errs, errorf("member "+string(m.ID), "%s end is in %d joints", end, n))
			}
		}
	}
	return errs
}

// validateConstraints checks each constraint against its joint and kind.
func validateConstraints(s *Scene) []ValidationError {
	var errs []ValidationError
	for _, c := range s.Constraints {
		subject := "constraint " + string(c.ID)
		j, ok := s.Joint(c.Joint)
		if !ok {
			errs = append(errs, errorf(subject, "references unknown joint %q", c.Joint))
			continue
		}
		if c.Anchor == c.Target {
			errs = append(errs, errorf(subject, "anchor and target are both %s", c.Anchor))
		}
		incident := make(map[assembly.MemberID]bool)
		for _, m := range j.Members() {
			incident[m] = true
		}
		for _, m := range []assembly.MemberID{c.Anchor, c.Target} {
			if !incident[m] {
				errs = append(errs, errorf(subject, "member %s is not incident on joint %s", m, j.ID))
			}
		}

		if c.Kind.IsHinge() && (c.Axis == nil || c.Axis.IsZero()) {
			errs = append(errs, errorf(subject, "%s constraint has no axis", c.Kind))
		}
		if c.Limits != nil && c.Limits.Lower > c.Limits.Upper {
			errs = append(errs, errorf(subject, "lower limit %g exceeds upper limit %g", c.Limits.Lower, c.Limits.Upper))
		}
		if c.Profile != "" {
			if c.Kind != assembly.KindMotor {
				errs = append(errs, errorf(subject, "%s constraint references profile %q", c.Kind, c.Profile))
			} else if _, ok := s.Profile(c.Profile); !ok {
				errs = append(errs, errorf(subject, "references unknown profile %q", c.Profile))
			}
		}
	}
	return errs
}

// constraintKey produces a canonical key for a member pair at a joint so
// that (A, B) and (B, A) collide.
type constraintKey struct {
	joint assembly.JointID
	a, b  assembly.MemberID
}

func makeConstraintKey(j assembly.JointID, a, b assembly.MemberID) constraintKey {
	if b < a {
		a, b = b, a
	}
	return constraintKey{joint: j, a: a, b: b}
}

// validateDuplicateConstraints flags two constraints on the same
// unordered member pair at the same joint.
func validateDuplicateConstraints(s *Scene) []ValidationError {
	seen := make(map[constraintKey]assembly.ConstraintID, len(s.Constraints))
	var errs []ValidationError
	for _, c := range s.Constraints {
		key := makeConstraintKey(c.Joint, c.Anchor, c.Target)
		if prev, dup := seen[key]; dup {
			errs = append(errs, errorf("constraint "+string(c.ID), "duplicates %s between %s and %s at %s", prev, key.a, key.b, key.joint))
			continue
		}
		seen[key] = c.ID
	}
	return errs
}

// validateSchedules replays every schedule through a fresh scheduler, which
// rejects invalid profiles, non-motor targets and overlaps.
func validateSchedules(s *Scene) []ValidationError {
	sch := actuation.NewScheduler(s.Constraints)
	var errs []ValidationError
	for _, sc := range s.Schedules {
		if err := sch.Schedule(sc.Constraint, sc.Profile); err != nil {
			errs = append(errs, errorf("schedule "+string(sc.Constraint), "%v", err))
		}
	}
	for _, p := range s.Profiles {
		if err := actuation.Validate(p); err != nil {
			errs = append(errs, errorf("profile "+p.Name, "%v", err))
		}
	}
	return errs
}

// validateLoadTargets checks that applied loads name known members or nodes.
func validateLoadTargets(s *Scene) []ValidationError {
	members := s.memberIndex()
	nodes := make(map[assembly.NodeID]bool, len(s.Nodes))
	for _, n := range s.Nodes {
		nodes[n.ID] = true
	}
	var errs []ValidationError
	for i, l := range s.Loads {
		subject := fmt.Sprintf("load %s[%d]", l.Load, i)
		switch l.Kind {
		case assembly.TargetMember:
			if _, ok := members[assembly.MemberID(l.Target)]; !ok {
				errs = append(errs, errorf(subject, "targets unknown member %q", l.Target))
			}
		case assembly.TargetNode:
			if !nodes[assembly.NodeID(l.Target)] {
				errs = append(errs, errorf(subject, "targets unknown node %q", l.Target))
			}
		}
	}
	return errs
}

func (s *Scene) memberIndex() map[assembly.MemberID]int {
	idx := make(map[assembly.MemberID]int, len(s.Members))
	for i, m := range s.Members {
		idx[m.ID] = i
	}
	return idx
}

// DefaultTolerance is used when the scene records none.
const DefaultTolerance = 1e-6

func (s *Scene) tolerance() float64 {
	if s.Meta.Tolerance > 0 {
		return s.Meta.Tolerance
	}
	return DefaultTolerance
}
