package member

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/rigkit/pkg/assembly"
)

var steel = assembly.Material{Name: "steel", Density: 7850}

func TestSynthesizeCenterAndLength(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		start := assembly.Vec3{X: rng.Float64()*20 - 10, Y: rng.Float64()*20 - 10, Z: rng.Float64()*20 - 10}
		end := assembly.Vec3{X: rng.Float64()*20 - 10, Y: rng.Float64()*20 - 10, Z: rng.Float64()*20 - 10}
		if start.Dist(end) < 1e-3 {
			continue
		}
		m, err := Synthesize("m", start, end, assembly.Rect(0.1, 0.1), steel, Options{})
		require.NoError(t, err)
		assert.InDelta(t, start.Dist(end), m.Length, 1e-6)
		assert.True(t, m.Center.ApproxEq(start.Midpoint(end), 1e-6), "center %s", m.Center)

		// The canonical axis must land on the member direction.
		got := m.Orientation.Apply(CanonicalAxis)
		assert.True(t, got.ApproxEq(m.Direction(), 1e-9), "axis maps to %s, want %s", got, m.Direction())
	}
}

func TestSynthesizeMass(t *testing.T) {
	m, err := Synthesize("rod", assembly.Vec3{}, assembly.Vec3{X: 2}, assembly.Circle(0.05), steel, Options{Role: assembly.RoleActuated, Mobility: assembly.Fixed})
	require.NoError(t, err)
	want := 7850 * math.Pi * 0.05 * 0.05 * 2
	assert.InDelta(t, want, m.Mass, 1e-9)
	assert.Equal(t, assembly.Fixed, m.Mobility)
	assert.Equal(t, assembly.RoleActuated, m.Role)
}

func TestSynthesizeDegenerate(t *testing.T) {
	p := assembly.Vec3{X: 1, Y: 1, Z: 1}
	_, err := Synthesize("zero", p, p, assembly.Rect(1, 1), steel, Options{})
	var de *assembly.DegenerateMemberError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, assembly.MemberID("zero"), de.Member)
	assert.Equal(t, p, de.Start)
}

func TestSynthesizeMinLength(t *testing.T) {
	_, err := Synthesize("short", assembly.Vec3{}, assembly.Vec3{X: 0.005}, assembly.Rect(1, 1), steel, Options{MinLength: 0.01})
	assert.ErrorIs(t, err, assembly.ErrDegenerateMember)
}

func TestSynthesizeInvalidMaterial(t *testing.T) {
	end := assembly.Vec3{Y: 3}
	cases := []struct {
		name    string
		section assembly.Section
		density float64
	}{
		{"zero density", assembly.Rect(1, 1), 0},
		{"negative density", assembly.Rect(1, 1), -5},
		{"zero width", assembly.Rect(0, 1), 100},
		{"negative radius", assembly.Circle(-0.1), 100},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Synthesize("bad", assembly.Vec3{}, end, c.section, assembly.Material{Density: c.density}, Options{})
			var me *assembly.InvalidMaterialError
			require.ErrorAs(t, err, &me)
			assert.Equal(t, c.density, me.Density)
		})
	}
}

func TestSynthesizeVerticalMembers(t *testing.T) {
	up, err := Synthesize("up", assembly.Vec3{}, assembly.Vec3{Z: 3}, assembly.Rect(1, 1), steel, Options{})
	require.NoError(t, err)
	assert.Equal(t, assembly.Identity, up.Orientation)

	down, err := Synthesize("down", assembly.Vec3{Z: 3}, assembly.Vec3{}, assembly.Rect(1, 1), steel, Options{})
	require.NoError(t, err)
	assert.True(t, down.Orientation.Apply(CanonicalAxis).ApproxEq(assembly.Vec3{Z: -1}, 1e-9))

	_, err = Synthesize("strict", assembly.Vec3{Z: 3}, assembly.Vec3{}, assembly.Rect(1, 1), steel, Options{Policy: assembly.DegeneracyStrict})
	var oe *assembly.OrientationDegeneracyError
	require.True(t, errors.As(err, &oe))
	assert.Equal(t, assembly.MemberID("strict"), oe.Member)
}

func TestCharacteristicLength(t *testing.T) {
	assert.Zero(t, CharacteristicLength(nil))
	ms := []assembly.MemberDescriptor{
		{Start: assembly.Vec3{X: -6}, End: assembly.Vec3{X: 6}},
		{Start: assembly.Vec3{X: 0}, End: assembly.Vec3{Z: 5}},
	}
	assert.InDelta(t, 13, CharacteristicLength(ms), 1e-12)
}
