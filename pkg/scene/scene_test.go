package scene

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/rigkit/pkg/actuation"
	"github.com/chazu/rigkit/pkg/assembly"
	"github.com/chazu/rigkit/pkg/constraint"
	"github.com/chazu/rigkit/pkg/joint"
	"github.com/chazu/rigkit/pkg/member"
)

// triangle builds a closed three-member frame with a motor at the apex
// joint and one load on the base.
func triangle(t *testing.T) *Scene {
	t.Helper()
	nodes := []assembly.Node{
		{ID: "a", Position: assembly.Vec3{}},
		{ID: "b", Position: assembly.Vec3{X: 2}},
		{ID: "c", Position: assembly.Vec3{X: 1, Z: 1}},
	}
	pos := map[assembly.NodeID]assembly.Vec3{}
	for _, n := range nodes {
		pos[n.ID] = n.Position
	}
	steel, _ := assembly.LookupMaterial("steel")
	var members []assembly.MemberDescriptor
	for _, e := range []struct {
		id       assembly.MemberID
		from, to assembly.NodeID
		mob      assembly.Mobility
	}{{"base", "a", "b", assembly.Fixed}, {"right", "b", "c", assembly.Simulated}, {"left", "c", "a", assembly.Simulated}} {
		m, err := member.Synthesize(e.id, pos[e.from], pos[e.to], assembly.Circle(0.05), steel, member.Options{StartNode: e.from, EndNode: e.to, Mobility: e.mob})
		require.NoError(t, err)
		members = append(members, m)
	}

	cl, err := joint.Cluster(members, 1e-6)
	require.NoError(t, err)
	axis := assembly.AxisY
	g, err := constraint.Build(cl.Joints, []constraint.Decl{{
		End:     &assembly.EndRef{Member: "right", End: assembly.EndB},
		Kind:    assembly.KindMotor,
		Axis:    &axis,
		Profile: "swing",
	}}, constraint.Options{Tolerance: 1e-6})
	require.NoError(t, err)

	swing := assembly.ActuationProfile{Name: "swing", Keyframes: []assembly.Keyframe{{T: 0, Value: 0.5}, {T: 2, Value: 0}}}
	var schedules []actuation.Schedule
	for _, c := range g.Motors() {
		schedules = append(schedules, actuation.Schedule{Constraint: c.ID, Profile: swing})
	}

	return &Scene{
		Meta:        Meta{Name: "triangle", ID: NewID("triangle", nil), Tolerance: 1e-6, Policy: "fallback"},
		Nodes:       nodes,
		Members:     members,
		Joints:      cl.Joints,
		Constraints: g.Constraints,
		Profiles:    []assembly.ActuationProfile{swing},
		Schedules:   schedules,
		Loads: []assembly.AppliedLoad{
			{Load: "snow", Kind: assembly.TargetMember, Target: "left", Point: members[2].Center, Force: assembly.Vec3{Z: -100}},
		},
	}
}

func TestTriangleIsValid(t *testing.T) {
	s := triangle(t)
	require.Len(t, s.Joints, 3)
	require.Len(t, s.Constraints, 3)
	require.Len(t, s.Schedules, 1)

	res := ValidateAll(s)
	assert.True(t, res.OK(), "errors: %v", res.Errors)
	assert.Empty(t, res.Warnings)

	st := s.Stats()
	assert.Equal(t, 3, st.Members)
	assert.Equal(t, 0, st.FreeEnds)
	assert.Equal(t, 2, st.Constraints[assembly.KindRigid])
	assert.Equal(t, 1, st.Constraints[assembly.KindMotor])
	assert.InDelta(t, member.TotalMass(s.Members), st.Mass, 1e-9)
}

func TestNewIDIsStable(t *testing.T) {
	assert.Equal(t, NewID("x", []byte("src")), NewID("x", []byte("src")))
	assert.NotEqual(t, NewID("x", []byte("src")), NewID("y", []byte("src")))
}

func TestRoundTrip(t *testing.T) {
	s := triangle(t)
	for _, f := range []Format{FormatYAML, FormatJSON} {
		t.Run(f.String(), func(t *testing.T) {
			data, err := Marshal(s, f)
			require.NoError(t, err)
			back, err := Decode(strings.NewReader(string(data)), f)
			require.NoError(t, err)
			assert.Equal(t, s, back)
		})
	}
}

func TestReadWriteFile(t *testing.T) {
	s := triangle(t)
	dir := t.TempDir()
	for _, name := range []string{"scene.yaml", "scene.json"} {
		path := filepath.Join(dir, name)
		require.NoError(t, WriteFile(path, s))
		back, err := ReadFile(path)
		require.NoError(t, err)
		assert.Len(t, back.Members, len(s.Members))
		assert.Len(t, back.Joints, len(s.Joints))
		assert.Len(t, back.Constraints, len(s.Constraints))
		assert.Equal(t, s.Meta.ID, back.Meta.ID)
	}
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	_, err := Decode(strings.NewReader("meta: {name: x}\nbogus: 1\n"), FormatYAML)
	assert.Error(t, err)
	_, err = Decode(strings.NewReader(`{"meta": {"name": "x"}, "bogus": 1}`), FormatJSON)
	assert.Error(t, err)
	_, err = Decode(strings.NewReader(`{"meta": {"name": "x", "colour": "red"}}`), FormatJSON)
	assert.Error(t, err)
}

func TestSchedulerFromScene(t *testing.T) {
	s := triangle(t)
	sch, err := s.Scheduler()
	require.NoError(t, err)
	v, ok := sch.Target(s.Schedules[0].Constraint, 1)
	require.True(t, ok)
	assert.Equal(t, 0.5, v)
}

func TestStructuralFindings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Scene)
		want   string
	}{
		{"duplicate constraint", func(s *Scene) {
			c := s.Constraints[0]
			c.ID = "C99"
			c.Anchor, c.Target = c.Target, c.Anchor
			s.Constraints = append(s.Constraints, c)
		}, "duplicates C0"},
		{"unknown joint", func(s *Scene) { s.Constraints[0].Joint = "J42" }, "unknown joint"},
		{"end in no joint", func(s *Scene) { s.Joints[0].Ends = s.Joints[0].Ends[1:] }, "in no joint"},
		{"hinge without axis", func(s *Scene) {
			for i := range s.Constraints {
				if s.Constraints[i].Kind == assembly.KindMotor {
					s.Constraints[i].Axis = nil
				}
			}
		}, "has no axis"},
		{"schedule on rigid", func(s *Scene) { s.Schedules[0].Constraint = s.Constraints[0].ID }, "not a motor"},
		{"unknown load target", func(s *Scene) { s.Loads[0].Target = "ghost" }, "unknown member"},
		{"duplicate member", func(s *Scene) { s.Members[1].ID = "base" }, "duplicate id"},
		{"member off its node", func(s *Scene) { s.Nodes[0].Position.Y = 1 }, "does not sit on node"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := triangle(t)
			tt.mutate(s)
			errs := Validate(s)
			require.NotEmpty(t, errs)
			var msgs []string
			for _, e := range errs {
				assert.Equal(t, SeverityError, e.Severity)
				msgs = append(msgs, e.Error())
			}
			assert.Contains(t, strings.Join(msgs, "\n"), tt.want)
		})
	}
}

func TestGeometricFindings(t *testing.T) {
	s := triangle(t)
	s.Members[0].Length = 3
	s.Members[1].Orientation = assembly.Rotation{W: 1}
	res := ValidateAll(s)
	require.Len(t, res.Errors, 2)
	assert.Contains(t, res.Errors[0].Error(), "endpoints are 2 apart")
	assert.Contains(t, res.Errors[1].Error(), "orientation")
}

func TestWarnings(t *testing.T) {
	s := triangle(t)
	s.Loads[0].Target = "base"
	s.Schedules = nil

	// A detached strut adds two free ends and a second group.
	steel, _ := assembly.LookupMaterial("steel")
	m, err := member.Synthesize("strut", assembly.Vec3{X: 5}, assembly.Vec3{X: 6}, assembly.Rect(0.1, 0.1), steel, member.Options{})
	require.NoError(t, err)
	s.Members = append(s.Members, m)
	cl, err := joint.Cluster(s.Members, 1e-6)
	require.NoError(t, err)
	s.Joints = cl.Joints

	res := ValidateAll(s)
	require.True(t, res.OK(), "errors: %v", res.Errors)
	var msgs []string
	for _, w := range res.Warnings {
		msgs = append(msgs, w.String())
	}
	all := strings.Join(msgs, "\n")
	assert.Contains(t, all, "free end strut.start")
	assert.Contains(t, all, "2 disconnected groups")
	assert.Contains(t, all, "fixed member carries load snow")
	assert.Contains(t, all, "motor has no actuation schedule")
}

func TestToDOT(t *testing.T) {
	s := triangle(t)
	dot := ToDOT(s, DOTOptions{})
	assert.True(t, strings.HasPrefix(dot, "digraph G {"))
	assert.Contains(t, dot, `"base" [label="base", fillcolor=lightgrey];`)
	assert.Equal(t, 3, strings.Count(dot, " -> "))
	assert.Contains(t, dot, "firebrick")

	dot = ToDOT(s, DOTOptions{Joints: true})
	assert.Equal(t, 6, strings.Count(dot, " -> "))
	assert.Contains(t, dot, `"J0" [shape=circle`)
}

func TestRenderSVG(t *testing.T) {
	svg, err := RenderSVG(context.Background(), ToDOT(triangle(t), DOTOptions{}))
	require.NoError(t, err)
	assert.Contains(t, string(svg), "<svg")
}

func TestFormat(t *testing.T) {
	assert.Equal(t, FormatJSON, FormatFor("out/scene.JSON"))
	assert.Equal(t, FormatYAML, FormatFor("scene.yml"))
	f, err := ParseFormat("json")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)
	_, err = ParseFormat("xml")
	assert.Error(t, err)
}
