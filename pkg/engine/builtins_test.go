package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/chazu/rigkit/pkg/assembly"
	"github.com/chazu/rigkit/pkg/constraint"
	"github.com/chazu/rigkit/pkg/params"
	"github.com/chazu/rigkit/pkg/pipeline"
	"github.com/chazu/rigkit/pkg/scene"
)

const craneScript = `
;; Jib crane: a motorised jib slewing about a fixed mast, held by a stay.
(settings :name "jib-crane" :tolerance 0.01)

(def pivot (param "pivot" (vec3 2.5 0 1.5)))
(def skew (param "skew" 0.003))

(section "boom" (rect 0.1 0.15))
(material "cable" 7800)

(def root (node "root" (vec3 0 0 1.5)))
(def tip (node "tip" pivot))
(def base (node "base" (vec3 2.5 0 0)))
(def mast-top (node "mast-top" (vadd pivot (vec3 skew 0 0))))
(def anchor (node "anchor" (vec3 5 0 3)))
(def stay-end (node "stay-end" (vadd pivot (vec3 0 0 skew))))

(def jib (member "jib" root tip :section "boom" :material "aluminium"))
(def mast (member "mast" base mast-top :section "boom" :material "steel" :mobility :fixed))
(member "stay" anchor stay-end :section "boom" :material "cable")

(profile "swing-out" 0 0.5 200 0.0 350 0.5)
(profile "swing-back" 350 0.0 500 -0.5)

(joint "slew" :end (member-end jib :end) :kind :motor :axis (vec3 0 0 1)
       :lower -1.5 :upper 1.5 :profile "swing-out")
(schedule :end (member-end mast :end) :profile "swing-back")

(load "hook" :members (list jib) :magnitude 500 :direction (vec3 0 0 -2) :radius 10)
`

const prattScript = `
;; Pratt truss with six panels.
(settings :name "pratt-truss")
(require "span" "panel-count")

(param "span" 12.0)
(param "height" 2.0)
(param "panel-count" 6)
(param "panel" "(/ span panel-count)")
(param "half" "(* 0.5 span)")

(section "chord" (rect 0.2 0.2))
(section "rod" (circle 0.05))

(def bottom-row (row "b" :from "(vec3 (* -1 half) 0 0)" :to "(vec3 half 0 0)"
                     :count 7 :panels "panel-count"))
(def top-row (row "t" :from "(vec3 (* -1 half) 0 height)" :to "(vec3 half 0 height)"
                  :spacing "panel"))

(chain "bottom" bottom-row :section "chord" :material "steel" :role :load-bearing)
(chain "top" top-row :section "chord" :material "steel")
(zip "post" bottom-row top-row :section "rod" :material "steel")
(diagonal "diag" bottom-row top-row :section "rod" :material "steel")

(load "deck" :role :load-bearing :magnitude 6000 :direction (vec3 0 0 -1) :radius 100)
`

// evaluateOK runs source and fails the test on any error.
func evaluateOK(t *testing.T, source string, overrides params.Table) *pipeline.Blueprint {
	t.Helper()
	bp, evalErrs, err := NewEngine().Evaluate(source, overrides)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}
	return bp
}

func assembleOK(t *testing.T, bp *pipeline.Blueprint) *scene.Scene {
	t.Helper()
	s, err := pipeline.Assemble(context.Background(), bp, pipeline.Options{})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	return s
}

// ---------------------------------------------------------------------------
// Crane
// ---------------------------------------------------------------------------

func TestCraneScriptBlueprint(t *testing.T) {
	bp := evaluateOK(t, craneScript, nil)

	if bp.Name != "jib-crane" {
		t.Errorf("name = %q", bp.Name)
	}
	if bp.Tolerance.Absolute != 0.01 {
		t.Errorf("tolerance = %g, want 0.01", bp.Tolerance.Absolute)
	}
	if got := bp.Params["skew"]; got != params.Scalar(0.003) {
		t.Errorf("skew = %v", got)
	}
	if len(bp.Layout.Nodes) != 6 {
		t.Fatalf("expected 6 nodes, got %d", len(bp.Layout.Nodes))
	}
	if bp.Layout.Nodes[3].ID != "mast-top" {
		t.Errorf("node 3 = %q, want mast-top", bp.Layout.Nodes[3].ID)
	}
	if len(bp.Layout.Members) != 3 {
		t.Fatalf("expected 3 members, got %d", len(bp.Layout.Members))
	}
	mast := bp.Layout.Members[1]
	if mast.From != "base" || mast.To != "mast-top" || mast.Mobility != assembly.Fixed {
		t.Errorf("mast = %+v", mast)
	}
	if bp.Materials["cable"].Density != 7800 {
		t.Errorf("cable density = %g", bp.Materials["cable"].Density)
	}

	if len(bp.Joints) != 1 {
		t.Fatalf("expected 1 joint declaration, got %d", len(bp.Joints))
	}
	d := bp.Joints[0]
	if d.Name != "slew" || d.End == nil || d.End.String() != "jib.end" {
		t.Errorf("joint = %+v", d)
	}
	if d.Kind != assembly.KindMotor || d.Profile != "swing-out" {
		t.Errorf("joint kind/profile = %s/%s", d.Kind, d.Profile)
	}
	if d.Limits == nil || d.Limits.Lower != -1.5 || d.Limits.Upper != 1.5 {
		t.Errorf("limits = %+v", d.Limits)
	}
	if d.Axis == nil || *d.Axis != assembly.AxisZ {
		t.Errorf("axis = %v", d.Axis)
	}

	if len(bp.Profiles) != 2 || len(bp.Profiles[0].Keyframes) != 3 {
		t.Fatalf("profiles = %+v", bp.Profiles)
	}
	if len(bp.Schedules) != 1 || bp.Schedules[0].End.String() != "mast.end" {
		t.Errorf("schedules = %+v", bp.Schedules)
	}
	if len(bp.Loads) != 1 || bp.Loads[0].Target.Members[0] != "jib" || bp.Loads[0].FalloffRadius != 10 {
		t.Errorf("loads = %+v", bp.Loads)
	}
}

func TestCraneScriptAssembles(t *testing.T) {
	s := assembleOK(t, evaluateOK(t, craneScript, nil))

	if len(s.Joints) != 4 {
		t.Errorf("expected 4 joints, got %d", len(s.Joints))
	}
	if len(s.Constraints) != 2 {
		t.Fatalf("expected 2 constraints, got %d", len(s.Constraints))
	}
	for _, c := range s.Constraints {
		if c.Kind != assembly.KindMotor || c.Anchor != "jib" {
			t.Errorf("constraint = %+v", c)
		}
	}
	if len(s.Schedules) != 4 {
		t.Errorf("expected 4 schedules, got %d", len(s.Schedules))
	}
	if res := scene.ValidateAll(s); !res.OK() {
		t.Errorf("validation errors: %v", res.Errors)
	}
}

func TestCraneScriptMatchesBlueprintFile(t *testing.T) {
	fromScript := assembleOK(t, evaluateOK(t, craneScript, nil))
	file, err := pipeline.LoadFile("../pipeline/testdata/crane.yaml")
	if err != nil {
		t.Fatal(err)
	}
	fromFile := assembleOK(t, file)

	if len(fromScript.Members) != len(fromFile.Members) {
		t.Fatalf("members: %d vs %d", len(fromScript.Members), len(fromFile.Members))
	}
	for i := range fromFile.Members {
		a, b := fromScript.Members[i], fromFile.Members[i]
		if a.ID != b.ID || !a.Start.ApproxEq(b.Start, 1e-12) || !a.End.ApproxEq(b.End, 1e-12) {
			t.Errorf("member %d: %s %v-%v vs %s %v-%v", i, a.ID, a.Start, a.End, b.ID, b.Start, b.End)
		}
		if a.Mass != b.Mass {
			t.Errorf("member %s mass: %g vs %g", a.ID, a.Mass, b.Mass)
		}
	}
}

// ---------------------------------------------------------------------------
// Pratt truss
// ---------------------------------------------------------------------------

func TestPrattScriptAssembles(t *testing.T) {
	bp := evaluateOK(t, prattScript, nil)
	if len(bp.Manifest) != 2 || bp.Manifest[1] != "panel-count" {
		t.Errorf("manifest = %v", bp.Manifest)
	}
	if bp.Params["panel"] != params.Expr("(/ span panel-count)") {
		t.Errorf("panel = %v", bp.Params["panel"])
	}

	s := assembleOK(t, bp)
	if len(s.Nodes) != 14 {
		t.Errorf("expected 14 nodes, got %d", len(s.Nodes))
	}
	if len(s.Members) != 25 {
		t.Errorf("expected 25 members, got %d", len(s.Members))
	}
	if len(s.Constraints) != 36 {
		t.Errorf("expected 36 constraints, got %d", len(s.Constraints))
	}
	if len(s.Loads) != 6 {
		t.Errorf("expected 6 loads, got %d", len(s.Loads))
	}
	if res := scene.ValidateAll(s); !res.OK() || len(res.Warnings) > 0 {
		t.Errorf("findings: %v %v", res.Errors, res.Warnings)
	}
}

func TestPrattScriptOverride(t *testing.T) {
	bp := evaluateOK(t, prattScript, params.Table{"span": params.Scalar(24)})
	if got := bp.Params["span"]; got != params.Scalar(24) {
		t.Fatalf("span = %v, want override", got)
	}
	s := assembleOK(t, bp)
	var last assembly.Node
	for _, n := range s.Nodes {
		if n.ID == "b6" {
			last = n
		}
	}
	if last.Position.X != 12 {
		t.Errorf("b6 at %v, want x = 12", last.Position)
	}
}

func TestPrattScriptPanelOverrideMismatch(t *testing.T) {
	bp := evaluateOK(t, prattScript, params.Table{"panel-count": params.Count(7)})
	_, err := pipeline.Assemble(context.Background(), bp, pipeline.Options{})
	if !errors.Is(err, assembly.ErrParameterInconsistency) {
		t.Fatalf("err = %v, want parameter inconsistency", err)
	}
}

func TestUnusedOverrideWarns(t *testing.T) {
	res, err := NewEngine().EvaluateResult(prattScript, params.Table{"spam": params.Scalar(1)})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Errors) > 0 {
		t.Fatalf("eval errors: %v", res.Errors)
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Param != "spam" {
		t.Errorf("warnings = %v", res.Warnings)
	}
}

// ---------------------------------------------------------------------------
// Individual builtins
// ---------------------------------------------------------------------------

func TestInlineSection(t *testing.T) {
	bp := evaluateOK(t, `
(node "a" (vec3 0 0 0))
(node "b" (vec3 1 0 0))
(member "rod" "a" "b" :section (circle 0.1) :material "steel" :role :actuated)
`, nil)
	sec, ok := bp.Layout.Sections["rod"]
	if !ok {
		t.Fatal("inline section not registered under the member id")
	}
	if sec.Kind != assembly.SectionCircle || sec.Radius != params.Scalar(0.1) {
		t.Errorf("section = %+v", sec)
	}
	if bp.Layout.Members[0].Section != "rod" || bp.Layout.Members[0].Role != assembly.RoleActuated {
		t.Errorf("member = %+v", bp.Layout.Members[0])
	}
}

func TestJointExplicitPairs(t *testing.T) {
	bp := evaluateOK(t, `
(joint "hub" :at (vec3 1 2 3) :pairs (list (list "a" "b") (list "b" "c")) :rigidity :connected)
`, nil)
	d := bp.Joints[0]
	if d.Topology != constraint.TopologyExplicit {
		t.Errorf("topology = %s, want explicit", d.Topology)
	}
	if len(d.Pairs) != 2 || d.Pairs[1] != (constraint.Pair{Anchor: "b", Target: "c"}) {
		t.Errorf("pairs = %+v", d.Pairs)
	}
	if d.At == nil || *d.At != (assembly.Vec3{X: 1, Y: 2, Z: 3}) {
		t.Errorf("at = %v", d.At)
	}
	if d.Rigidity != constraint.RigidityConnected {
		t.Errorf("rigidity = %s", d.Rigidity)
	}
}

func TestLoadSelectors(t *testing.T) {
	bp := evaluateOK(t, `
(load "wind" :nodes (list "n1" "n2") :pattern "top*" :magnitude 50
      :direction (vec3 1 0 0) :radius 4 :origin (vec3 0 0 2)
      :weights (list "n1" 2.0 "n2" 1.0))
`, nil)
	l := bp.Loads[0]
	if l.Name != "wind" || len(l.Target.Nodes) != 2 || l.Target.Pattern != "top*" {
		t.Errorf("target = %+v", l.Target)
	}
	if l.Origin == nil || l.Origin.Z != 2 {
		t.Errorf("origin = %v", l.Origin)
	}
	if l.Weights["n1"] != 2 || l.Weights["n2"] != 1 {
		t.Errorf("weights = %v", l.Weights)
	}
}

func TestSettingsDegeneracy(t *testing.T) {
	bp := evaluateOK(t, `(settings :degeneracy :strict :relative 0.001 :floor 0.0001)`, nil)
	if bp.Degeneracy == nil || *bp.Degeneracy != assembly.DegeneracyStrict {
		t.Errorf("degeneracy = %v", bp.Degeneracy)
	}
	if bp.Tolerance.Relative != 0.001 || bp.Tolerance.Floor != 0.0001 {
		t.Errorf("tolerance = %+v", bp.Tolerance)
	}
}

func TestProfileFromList(t *testing.T) {
	bp := evaluateOK(t, `(profile "ramp" (list 0 0.0 10 1.0))`, nil)
	p := bp.Profiles[0]
	if len(p.Keyframes) != 2 || p.Keyframes[1] != (assembly.Keyframe{T: 10, Value: 1}) {
		t.Errorf("profile = %+v", p)
	}
}

func TestBuiltinErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"node without position", `(node "a")`, "position: missing"},
		{"param declared twice", `(param "x" 1) (param "x" 2)`, "declared twice"},
		{"keyword as param value", `(param "x" :y)`, "keyword"},
		{"rect without depth", `(rect 0.1)`, "depth: missing"},
		{"section needs shape", `(section "s" 3)`, "expected rect or circle"},
		{"member with one end", `(member "m" "a")`, "expected two end nodes"},
		{"unknown mobility", `(member "m" "a" "b" :mobility :floating)`, "mobility"},
		{"odd keyframes", `(profile "p" 0 1 5)`, "time/value pairs"},
		{"decreasing keyframes", `(profile "p" 5 1 0 2)`, "does not follow"},
		{"schedule without target", `(schedule :profile "p")`, "exactly one of"},
		{"joint without selector", `(joint :kind :motor)`, "expected :end or :at"},
		{"joint with half limits", `(joint :at (vec3 0 0 0) :lower 1)`, "both :lower and :upper"},
		{"bad member end", `(joint :end "jib")`, "member end"},
		{"family as load target", `(load :members (list (chain "c" "r")))`, "member family"},
		{"material without density", `(material "wood")`, "density: missing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bp, evalErrs, err := NewEngine().Evaluate(tt.source, nil)
			if err != nil {
				t.Fatalf("expected eval error, got fatal: %v", err)
			}
			if bp != nil {
				t.Fatal("expected nil blueprint")
			}
			if len(evalErrs) == 0 {
				t.Fatal("expected an eval error")
			}
			if !strings.Contains(evalErrs[0].Message, tt.want) {
				t.Errorf("message = %q, want containing %q", evalErrs[0].Message, tt.want)
			}
		})
	}
}
