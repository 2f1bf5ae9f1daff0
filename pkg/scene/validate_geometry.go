package scene

import (
	"fmt"
	"math"

	"github.com/chazu/rigkit/pkg/assembly"
	"github.com/chazu/rigkit/pkg/constraint"
	"github.com/chazu/rigkit/pkg/member"
)

// ---------------------------------------------------------------------------
// Tier 2: geometric validation (errors + warnings)
// ---------------------------------------------------------------------------

// validateGeometry runs all Tier 2 geometric checks.
// Returns errors (blocking) and warnings (advisory) separately.
func validateGeometry(s *Scene) ([]ValidationError, []ValidationWarning) {
	var errs []ValidationError
	var warnings []ValidationWarning

	errs = append(errs, validateDerivedFields(s)...)
	errs = append(errs, validateJointSpread(s)...)

	warnings = append(warnings, validateFreeEnds(s)...)
	warnings = append(warnings, validateConnectivity(s)...)

	return errs, warnings
}

// validateDerivedFields recomputes length, center and orientation of every
// member from its endpoints and compares them with the stored values.
func validateDerivedFields(s *Scene) []ValidationError {
	tol := s.tolerance()
	var errs []ValidationError
	for _, m := range s.Members {
		subject := "member " + string(m.ID)
		length := m.Start.Dist(m.End)
		if length < assembly.Epsilon {
			errs = append(errs, errorf(subject, "zero length"))
			continue
		}
		if math.Abs(length-m.Length) > tol {
			errs = append(errs, errorf(subject, "length is %.6g, endpoints are %.6g apart", m.Length, length))
		}
		if !m.Center.ApproxEq(m.Start.Midpoint(m.End), tol) {
			errs = append(errs, errorf(subject, "center %s is not the midpoint %s", m.Center, m.Start.Midpoint(m.End)))
		}
		axis := m.Orientation.Apply(member.CanonicalAxis)
		if !axis.ApproxEq(m.Direction(), 1e-6) {
			errs = append(errs, errorf(subject, "orientation maps the local axis to %s, direction is %s", axis, m.Direction()))
		}
	}
	return errs
}

// validateJointSpread checks that every end of a joint lies near its
// centroid. Transitive merging can stretch a joint, so the limit is one
// tolerance per incident end.
func validateJointSpread(s *Scene) []ValidationError {
	members := s.memberIndex()
	tol := s.tolerance()
	var errs []ValidationError
	for _, j := range s.Joints {
		limit := tol * float64(max(1, len(j.Ends)))
		for _, e := range j.Ends {
			i, ok := members[e.Member]
			if !ok {
				continue
			}
			p := s.Members[i].Endpoint(e.End)
			if d := p.Dist(j.Centroid); d > limit {
				errs = append(errs, errorf("joint "+string(j.ID), "%s is %.6g from the centroid, limit %.6g", e, d, limit))
			}
		}
	}
	return errs
}

// validateFreeEnds warns about joints with a single incident member.
func validateFreeEnds(s *Scene) []ValidationWarning {
	var warnings []ValidationWarning
	for i := range s.Joints {
		j := &s.Joints[i]
		if j.IsFree() && len(j.Ends) > 0 {
			warnings = append(warnings, warnf("joint "+string(j.ID), "free end %s is not connected to another member", j.Ends[0]))
		}
	}
	return warnings
}

// validateConnectivity warns when constraints split the members into more
// than one rigid group.
func validateConnectivity(s *Scene) []ValidationWarning {
	if len(s.Members) < 2 {
		return nil
	}
	ids := make([]assembly.MemberID, len(s.Members))
	for i, m := range s.Members {
		ids[i] = m.ID
	}
	groups := constraint.Components(ids, s.Constraints)
	if len(groups) < 2 {
		return nil
	}
	return []ValidationWarning{warnf("", "members form %d disconnected groups; smallest has %d member(s)", len(groups), smallest(groups))}
}

func smallest(groups [][]assembly.MemberID) int {
	n := math.MaxInt
	for _, g := range groups {
		n = min(n, len(g))
	}
	return n
}

// ---------------------------------------------------------------------------
// Tier 3: physical plausibility (warnings only)
// ---------------------------------------------------------------------------

// validatePhysical runs all Tier 3 checks.
func validatePhysical(s *Scene) []ValidationWarning {
	var warnings []ValidationWarning
	warnings = append(warnings, validateMass(s)...)
	warnings = append(warnings, validateFixedLoads(s)...)
	warnings = append(warnings, validateIdleMotors(s)...)
	return warnings
}

// validateMass warns about members whose mass disagrees with density ×
// area × length.
func validateMass(s *Scene) []ValidationWarning {
	var warnings []ValidationWarning
	for _, m := range s.Members {
		want := m.Material.Density * m.Section.Area() * m.Length
		if m.Mass <= 0 {
			warnings = append(warnings, warnf("member "+string(m.ID), "mass is %.6g", m.Mass))
			continue
		}
		if math.Abs(want-m.Mass) > 1e-9*math.Max(1, want) {
			warnings = append(warnings, warnf("member "+string(m.ID), "mass %.6g does not match density × area × length = %.6g", m.Mass, want))
		}
	}
	return warnings
}

// validateFixedLoads warns when a load acts on a fixed member, where the
// simulator will never move it.
func validateFixedLoads(s *Scene) []ValidationWarning {
	members := s.memberIndex()
	var warnings []ValidationWarning
	for _, l := range s.Loads {
		if l.Kind != assembly.TargetMember {
			continue
		}
		i, ok := members[assembly.MemberID(l.Target)]
		if !ok || s.Members[i].Mobility != assembly.Fixed {
			continue
		}
		warnings = append(warnings, warnf("member "+l.Target, "fixed member carries load %s of %s", loadName(l), fmtForce(l.Force)))
	}
	return warnings
}

// validateIdleMotors warns about motor constraints with no schedule.
func validateIdleMotors(s *Scene) []ValidationWarning {
	scheduled := make(map[assembly.ConstraintID]bool, len(s.Schedules))
	for _, sc := range s.Schedules {
		scheduled[sc.Constraint] = true
	}
	var warnings []ValidationWarning
	for _, c := range s.Constraints {
		if c.Kind == assembly.KindMotor && !scheduled[c.ID] {
			warnings = append(warnings, warnf("constraint "+string(c.ID), "motor has no actuation schedule"))
		}
	}
	return warnings
}

func loadName(l assembly.AppliedLoad) string {
	if l.Load == "" {
		return "(unnamed)"
	}
	return l.Load
}

func fmtForce(f assembly.Vec3) string {
	return fmt.Sprintf("%.4g N", f.Length())
}
