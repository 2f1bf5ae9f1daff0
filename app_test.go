package main

import (
	"context"
	"os"
	"testing"

	"github.com/chazu/rigkit/pkg/assembly"
	"github.com/chazu/rigkit/pkg/config"
	"github.com/chazu/rigkit/pkg/params"
	"github.com/chazu/rigkit/pkg/tessellate"
)

// newTestApp returns an App with a coarse mesh resolution.
func newTestApp() *App {
	cfg := config.Default()
	cfg.Mesh.Cells = 64
	return NewApp(cfg)
}

// TestE2ECraneExample exercises the full pipeline: script → engine →
// blueprint → pipeline → scene → tessellate → meshes.
func TestE2ECraneExample(t *testing.T) {
	app := newTestApp()

	source, err := os.ReadFile("examples/crane.rig")
	if err != nil {
		t.Fatalf("failed to read crane.rig: %v", err)
	}

	result := app.Evaluate(context.Background(), string(source), nil)

	// No errors expected.
	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			t.Errorf("eval error (line %d): %s", e.Line, e.Message)
		}
		t.FailNow()
	}
	if result.Scene == nil {
		t.Fatal("expected a scene")
	}

	// Three members plus one marker for the shared joint at the jib tip.
	if len(result.Meshes) != 4 {
		t.Fatalf("expected 4 meshes, got %d", len(result.Meshes))
	}

	expected := map[string]bool{"jib": false, "mast": false, "stay": false}
	joints := 0
	for _, m := range result.Meshes {
		if m.Kind == tessellate.KindJoint {
			joints++
			if m.Color != jointColor {
				t.Errorf("joint %q: color %q, want %q", m.Name, m.Color, jointColor)
			}
			continue
		}
		if _, ok := expected[m.Name]; !ok {
			t.Errorf("unexpected member mesh: %q", m.Name)
			continue
		}
		expected[m.Name] = true

		// Each mesh must have non-empty geometry.
		if len(m.Vertices) == 0 {
			t.Errorf("member %q: no vertices", m.Name)
		}
		if len(m.Normals) == 0 {
			t.Errorf("member %q: no normals", m.Name)
		}
		if len(m.Indices) == 0 {
			t.Errorf("member %q: no indices", m.Name)
		}
		if m.Color == "" {
			t.Errorf("member %q: no color assigned", m.Name)
		}
	}
	if joints != 1 {
		t.Errorf("expected 1 joint marker, got %d", joints)
	}
	for name, found := range expected {
		if !found {
			t.Errorf("missing mesh for member %q", name)
		}
	}
}

// TestE2EEmptySource ensures the pipeline handles empty input gracefully.
func TestE2EEmptySource(t *testing.T) {
	app := newTestApp()
	result := app.Evaluate(context.Background(), "", nil)

	if len(result.Errors) > 0 {
		t.Errorf("unexpected errors for empty source: %v", result.Errors)
	}
	if len(result.Meshes) != 0 {
		t.Errorf("expected 0 meshes for empty source, got %d", len(result.Meshes))
	}
}

// TestE2ESyntaxError ensures eval errors are reported, not fatal errors.
func TestE2ESyntaxError(t *testing.T) {
	app := newTestApp()
	result := app.Evaluate(context.Background(), `(member "m" a`, nil)

	if len(result.Errors) == 0 {
		t.Fatal("expected eval errors for syntax error")
	}
	if len(result.Meshes) != 0 {
		t.Errorf("expected 0 meshes on error, got %d", len(result.Meshes))
	}
}

// TestE2ESingleMember ensures a minimal single-member source renders one
// mesh and no joint markers.
func TestE2ESingleMember(t *testing.T) {
	app := newTestApp()
	source := `
(section "s" (rect 0.1 0.1))
(member "post" (node "a" (vec3 0 0 0)) (node "b" (vec3 0 0 2)) :section "s" :material "steel")
`
	result := app.Evaluate(context.Background(), source, nil)

	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			t.Errorf("eval error: %s", e.Message)
		}
		t.FailNow()
	}
	if len(result.Meshes) != 1 {
		t.Fatalf("expected 1 mesh, got %d", len(result.Meshes))
	}
	if result.Meshes[0].Name != "post" {
		t.Errorf("expected member name 'post', got %q", result.Meshes[0].Name)
	}
}

// TestE2EPrattBlueprintMatchesScript builds the same truss from the YAML
// blueprint and from the script.
func TestE2EPrattBlueprintMatchesScript(t *testing.T) {
	app := newTestApp()
	ctx := context.Background()

	fromYAML, _, err := app.Build(ctx, "examples/pratt.yaml", nil)
	if err != nil {
		t.Fatalf("build pratt.yaml: %v", err)
	}
	fromScript, warnings, err := app.Build(ctx, "examples/pratt.rig", nil)
	if err != nil {
		t.Fatalf("build pratt.rig: %v", err)
	}
	if len(warnings) > 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}

	if len(fromYAML.Members) != 25 || len(fromScript.Members) != 25 {
		t.Fatalf("members: yaml %d, script %d, want 25", len(fromYAML.Members), len(fromScript.Members))
	}
	if len(fromYAML.Constraints) != len(fromScript.Constraints) {
		t.Errorf("constraints: yaml %d, script %d", len(fromYAML.Constraints), len(fromScript.Constraints))
	}
	if fromScript.Meta.Source != "pratt.rig" {
		t.Errorf("source = %q", fromScript.Meta.Source)
	}
}

// TestE2EBlueprintOverride applies a command-line style override to a
// YAML blueprint.
func TestE2EBlueprintOverride(t *testing.T) {
	app := newTestApp()

	overrides, err := parseOverrides([]string{"span=24.0", "colour=3"})
	if err != nil {
		t.Fatal(err)
	}
	s, warnings, err := app.Build(context.Background(), "examples/pratt.yaml", overrides)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(warnings) != 1 {
		t.Errorf("expected one warning for the undeclared override, got %v", warnings)
	}

	maxX := 0.0
	for _, n := range s.Nodes {
		if n.Position.X > maxX {
			maxX = n.Position.X
		}
	}
	if maxX != 12 {
		t.Errorf("rightmost node x = %g, want 12", maxX)
	}
}

func TestParseOverrides(t *testing.T) {
	got, err := parseOverrides([]string{"span=24", "height=2.5", "pivot=[1, 2, 3]", "panel=(/ span 4)"})
	if err != nil {
		t.Fatal(err)
	}
	want := params.Table{
		"span":   params.Count(24),
		"height": params.Scalar(2.5),
		"pivot":  params.Vector(assembly.Vec3{X: 1, Y: 2, Z: 3}),
		"panel":  params.Expr("(/ span 4)"),
	}
	for name, v := range want {
		if got[name] != v {
			t.Errorf("%s = %v, want %v", name, got[name], v)
		}
	}

	for _, bad := range []string{"span", "=3", "span="} {
		if _, err := parseOverrides([]string{bad}); err == nil {
			t.Errorf("parseOverrides(%q): expected error", bad)
		}
	}
}
