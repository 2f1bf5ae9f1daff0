package assembly

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestSectionArea(t *testing.T) {
	if got := Rect(0.1, 0.2).Area(); math.Abs(got-0.02) > 1e-12 {
		t.Errorf("rect area = %g", got)
	}
	if got := Circle(1).Area(); math.Abs(got-math.Pi) > 1e-12 {
		t.Errorf("circle area = %g", got)
	}
	if Rect(0, 1).Positive() {
		t.Error("zero-width rect reported positive")
	}
	if Circle(-1).Positive() {
		t.Error("negative radius reported positive")
	}
}

func TestProfileValueAtStepInterpolates(t *testing.T) {
	p := ActuationProfile{Name: "steer", Keyframes: []Keyframe{{0, 0.5}, {200, 0.0}, {350, 0.5}}}

	if _, ok := p.ValueAt(-1); ok {
		t.Error("expected no value before the first keyframe")
	}
	cases := []struct {
		t    float64
		want float64
	}{
		{0, 0.5}, {100, 0.5}, {199.999, 0.5},
		{200, 0.0}, {300, 0.0}, {349.9, 0.0},
		{350, 0.5}, {10000, 0.5},
	}
	for _, c := range cases {
		got, ok := p.ValueAt(c.t)
		if !ok || got != c.want {
			t.Errorf("ValueAt(%g) = %g, %v; want %g", c.t, got, ok, c.want)
		}
	}
	if p.Start() != 0 || p.End() != 350 {
		t.Errorf("range = [%g, %g]", p.Start(), p.End())
	}
}

func TestJointMembersDeduplicates(t *testing.T) {
	j := Joint{Ends: []EndRef{{"a", EndA}, {"b", EndB}, {"a", EndB}}}
	got := j.Members()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Members() = %v", got)
	}
	if j.IsFree() {
		t.Error("two-member joint reported free")
	}
	if !(&Joint{Ends: []EndRef{{"a", EndA}}}).IsFree() {
		t.Error("singleton joint not reported free")
	}
}

func TestEnumTextRoundTrip(t *testing.T) {
	for _, k := range []ConstraintKind{KindRigid, KindHinge, KindMotor} {
		b, _ := k.MarshalText()
		var got ConstraintKind
		if err := got.UnmarshalText(b); err != nil || got != k {
			t.Errorf("kind %v round-trip = %v, %v", k, got, err)
		}
	}
	for _, r := range []Role{RoleStructural, RoleActuated, RoleLoadBearing} {
		b, _ := r.MarshalText()
		var got Role
		if err := got.UnmarshalText(b); err != nil || got != r {
			t.Errorf("role %v round-trip = %v, %v", r, got, err)
		}
	}
	var m Mobility
	if err := m.UnmarshalText([]byte("fixed")); err != nil || m != Fixed {
		t.Errorf("mobility = %v, %v", m, err)
	}
	if err := m.UnmarshalText([]byte("floating")); err == nil {
		t.Error("expected error for unknown mobility")
	}
}

func TestTypedErrorsUnwrapToSentinels(t *testing.T) {
	cases := []struct {
		err      error
		sentinel error
		substr   string
	}{
		{&ParameterInconsistencyError{Parameter: "panel_count", Declared: 7, Derived: 6, Reason: "panel count does not match node intervals"}, ErrParameterInconsistency, "declared 7, derived 6"},
		{&UndefinedParameterError{Names: []string{"height"}, In: "apex"}, ErrUndefinedParameter, "height"},
		{&DegenerateMemberError{Member: "m1"}, ErrDegenerateMember, "m1"},
		{&InvalidMaterialError{Member: "m2", Density: -1, Section: Rect(1, 1)}, ErrInvalidMaterial, "density -1"},
		{&UnderconstrainedJointError{Joint: "J3", Members: []MemberID{"a", "b", "c"}, Have: 2, Required: 3, Reason: "braced"}, ErrUnderconstrainedJoint, "have 2, need 3"},
		{&ScheduleConflictError{Constraint: "C1", Existing: "p", Incoming: "q", From: 1, To: 2}, ErrScheduleConflict, `"q" overlaps "p"`},
		{&InvalidProfileError{Profile: "p", Index: 2, Prev: 5, T: 5}, ErrInvalidProfile, "does not follow"},
		{&DeclarationError{Decl: "knuckle", Reason: "missing axis"}, ErrDeclaration, "missing axis"},
		{&LoadError{Load: "wind", Reason: "zero direction"}, ErrLoad, "wind"},
	}
	for _, c := range cases {
		if !errors.Is(c.err, c.sentinel) {
			t.Errorf("%T does not unwrap to %v", c.err, c.sentinel)
		}
		if !strings.Contains(c.err.Error(), c.substr) {
			t.Errorf("%T message %q missing %q", c.err, c.err.Error(), c.substr)
		}
	}
}
