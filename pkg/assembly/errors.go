package assembly

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels for errors.Is. Every typed error below unwraps to one of these.
var (
	ErrParameterInconsistency = errors.New("assembly: parameter inconsistency")
	ErrUndefinedParameter     = errors.New("assembly: undefined parameter")
	ErrDegenerateMember       = errors.New("assembly: degenerate member")
	ErrInvalidMaterial        = errors.New("assembly: invalid material")
	ErrOrientationDegeneracy  = errors.New("assembly: orientation degeneracy")
	ErrUnderconstrainedJoint  = errors.New("assembly: underconstrained joint")
	ErrScheduleConflict       = errors.New("assembly: schedule conflict")
	ErrInvalidProfile         = errors.New("assembly: invalid actuation profile")
	ErrDeclaration            = errors.New("assembly: invalid declaration")
	ErrLoad                   = errors.New("assembly: invalid load")
)

// ParameterInconsistencyError reports declared totals that disagree with
// the geometry derived from them.
type ParameterInconsistencyError struct {
	Parameter string
	Declared  any
	Derived   any
	Reason    string
}

func (e *ParameterInconsistencyError) Error() string {
	if e.Declared == nil && e.Derived == nil {
		return fmt.Sprintf("parameter %q: %s", e.Parameter, e.Reason)
	}
	return fmt.Sprintf("parameter %q: %s (declared %v, derived %v)", e.Parameter, e.Reason, e.Declared, e.Derived)
}

func (e *ParameterInconsistencyError) Unwrap() error { return ErrParameterInconsistency }

// UndefinedParameterError reports names that a blueprint requires or an
// expression references but that the parameter table does not define.
type UndefinedParameterError struct {
	Names []string
	In    string // referencing parameter or "manifest"
}

func (e *UndefinedParameterError) Error() string {
	return fmt.Sprintf("undefined parameter(s) %s referenced by %s", strings.Join(e.Names, ", "), e.In)
}

func (e *UndefinedParameterError) Unwrap() error { return ErrUndefinedParameter }

// DegenerateMemberError reports a member shorter than the degeneracy threshold.
type DegenerateMemberError struct {
	Member MemberID
	Start  Vec3
	End    Vec3
	Length float64
}

func (e *DegenerateMemberError) Error() string {
	return fmt.Sprintf("member %s: length %.3g between %s and %s is degenerate", e.Member, e.Length, e.Start, e.End)
}

func (e *DegenerateMemberError) Unwrap() error { return ErrDegenerateMember }

// InvalidMaterialError reports a non-positive density or cross-section.
type InvalidMaterialError struct {
	Member  MemberID
	Density float64
	Section Section
}

func (e *InvalidMaterialError) Error() string {
	return fmt.Sprintf("member %s: density %g with section %s must both be positive", e.Member, e.Density, e.Section)
}

func (e *InvalidMaterialError) Unwrap() error { return ErrInvalidMaterial }

// OrientationDegeneracyError reports a direction for which no rotation is
// defined under the active policy.
type OrientationDegeneracyError struct {
	Member    MemberID
	Local     Vec3
	Direction Vec3
	Reason    string
}

func (e *OrientationDegeneracyError) Error() string {
	prefix := "orientation"
	if e.Member != "" {
		prefix = fmt.Sprintf("member %s: orientation", e.Member)
	}
	return fmt.Sprintf("%s: %s (local %s, direction %s)", prefix, e.Reason, e.Local, e.Direction)
}

func (e *OrientationDegeneracyError) Unwrap() error { return ErrOrientationDegeneracy }

// UnderconstrainedJointError reports a joint declared rigid whose
// constraints leave relative degrees of freedom.
type UnderconstrainedJointError struct {
	Joint    JointID
	Members  []MemberID
	Have     int
	Required int
	Reason   string
}

func (e *UnderconstrainedJointError) Error() string {
	return fmt.Sprintf("joint %s (%d members): %s (have %d, need %d)", e.Joint, len(e.Members), e.Reason, e.Have, e.Required)
}

func (e *UnderconstrainedJointError) Unwrap() error { return ErrUnderconstrainedJoint }

// ScheduleConflictError reports two profiles on one constraint whose time
// ranges overlap.
type ScheduleConflictError struct {
	Constraint ConstraintID
	Existing   string
	Incoming   string
	From, To   float64
}

func (e *ScheduleConflictError) Error() string {
	return fmt.Sprintf("constraint %s: profile %q overlaps %q on [%g, %g]", e.Constraint, e.Incoming, e.Existing, e.From, e.To)
}

func (e *ScheduleConflictError) Unwrap() error { return ErrScheduleConflict }

// InvalidProfileError reports keyframes that are empty or not strictly
// increasing in time.
type InvalidProfileError struct {
	Profile string
	Index   int
	Prev    float64
	T       float64
	Reason  string
}

func (e *InvalidProfileError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("profile %q: %s", e.Profile, e.Reason)
	}
	return fmt.Sprintf("profile %q: keyframe %d at t=%g does not follow t=%g", e.Profile, e.Index, e.T, e.Prev)
}

func (e *InvalidProfileError) Unwrap() error { return ErrInvalidProfile }

// DeclarationError reports a joint, constraint or schedule declaration that
// cannot be applied to the built assembly.
type DeclarationError struct {
	Decl   string
	Reason string
}

func (e *DeclarationError) Error() string {
	return fmt.Sprintf("declaration %s: %s", e.Decl, e.Reason)
}

func (e *DeclarationError) Unwrap() error { return ErrDeclaration }

// LoadError reports a load specification that cannot be applied.
type LoadError struct {
	Load   string
	Reason string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %q: %s", e.Load, e.Reason)
}

func (e *LoadError) Unwrap() error { return ErrLoad }
