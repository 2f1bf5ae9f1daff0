package actuation

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/rigkit/pkg/assembly"
)

func motors(ids ...string) []assembly.Constraint {
	out := []assembly.Constraint{{ID: "rigid", Kind: assembly.KindRigid}}
	for _, id := range ids {
		out = append(out, assembly.Constraint{ID: assembly.ConstraintID(id), Kind: assembly.KindMotor})
	}
	return out
}

func profile(name string, kf ...float64) assembly.ActuationProfile {
	p := assembly.ActuationProfile{Name: name}
	for i := 0; i+1 < len(kf); i += 2 {
		p.Keyframes = append(p.Keyframes, assembly.Keyframe{T: kf[i], Value: kf[i+1]})
	}
	return p
}

func TestStepInterpolation(t *testing.T) {
	s := NewScheduler(motors("m"))
	require.NoError(t, s.Schedule("m", profile("p", 0, 0.5, 200, 0.0, 350, 0.5)))

	cases := []struct {
		t    float64
		want float64
	}{
		{0, 0.5}, {100, 0.5}, {199.999, 0.5},
		{200, 0}, {300, 0}, {349.999, 0},
		{350, 0.5}, {1e6, 0.5},
	}
	for _, c := range cases {
		got, ok := s.Target("m", c.t)
		require.True(t, ok, "t=%g", c.t)
		assert.Equal(t, c.want, got, "t=%g", c.t)
	}

	_, ok := s.Target("m", -1)
	assert.False(t, ok, "no target before the first keyframe")
}

func TestInvalidProfiles(t *testing.T) {
	tests := []struct {
		name string
		p    assembly.ActuationProfile
	}{
		{"empty", profile("e")},
		{"equal times", profile("eq", 0, 1, 0, 2)},
		{"decreasing", profile("dec", 10, 1, 5, 2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScheduler(motors("m"))
			err := s.Schedule("m", tt.p)
			assert.ErrorIs(t, err, assembly.ErrInvalidProfile)
		})
	}

	var ie *assembly.InvalidProfileError
	err := Validate(profile("dec", 10, 1, 5, 2))
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, 1, ie.Index)
	assert.Equal(t, 10.0, ie.Prev)
	assert.Equal(t, 5.0, ie.T)
}

func TestOnlyMotorsAcceptSchedules(t *testing.T) {
	s := NewScheduler(motors("m"))
	assert.ErrorIs(t, s.Schedule("rigid", profile("p", 0, 1)), assembly.ErrDeclaration)
	assert.ErrorIs(t, s.Schedule("missing", profile("p", 0, 1)), assembly.ErrDeclaration)
}

func TestOverlapOnSameConstraintConflicts(t *testing.T) {
	s := NewScheduler(motors("m"))
	require.NoError(t, s.Schedule("m", profile("lift", 0, 1, 100, 0)))

	err := s.Schedule("m", profile("swing", 50, 2, 150, 0))
	var ce *assembly.ScheduleConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, assembly.ConstraintID("m"), ce.Constraint)
	assert.Equal(t, "lift", ce.Existing)
	assert.Equal(t, "swing", ce.Incoming)
	assert.Equal(t, 50.0, ce.From)
	assert.Equal(t, 100.0, ce.To)

	// The rejected profile left no trace.
	assert.Len(t, s.For("m"), 1)
}

func TestOverlapCases(t *testing.T) {
	base := profile("base", 100, 1, 200, 0)
	tests := []struct {
		name     string
		incoming assembly.ActuationProfile
		conflict bool
	}{
		{"handover after", profile("after", 200, 3, 300, 0), false},
		{"handover before", profile("before", 0, 3, 100, 0), false},
		{"disjoint", profile("far", 500, 1), false},
		{"same start", profile("same", 100, 2), true},
		{"contained", profile("inner", 120, 2, 150, 0), true},
		{"containing", profile("outer", 0, 2, 300, 0), true},
		{"point inside", profile("blip", 150, 9), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScheduler(motors("m"))
			require.NoError(t, s.Schedule("m", base))
			err := s.Schedule("m", tt.incoming)
			if tt.conflict {
				assert.ErrorIs(t, err, assembly.ErrScheduleConflict)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHandoverPicksLatestStart(t *testing.T) {
	s := NewScheduler(motors("m"))
	require.NoError(t, s.Schedule("m", profile("second", 200, 5, 300, 6)))
	require.NoError(t, s.Schedule("m", profile("first", 0, 1, 200, 2)))

	v, _ := s.Target("m", 150)
	assert.Equal(t, 1.0, v)
	v, _ = s.Target("m", 200)
	assert.Equal(t, 5.0, v)
	v, _ = s.Target("m", 1000)
	assert.Equal(t, 6.0, v)

	got := s.For("m")
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Profile.Name)
}

func TestDifferentConstraintsOverlapFreely(t *testing.T) {
	// One motor runs early, the second only after the first settles, and a
	// third overlaps both.
	s := NewScheduler(motors("shoulder", "elbow", "wrist"))
	require.NoError(t, s.Schedule("shoulder", profile("raise", 0, 0.5, 200, 0)))
	require.NoError(t, s.Schedule("elbow", profile("bend", 200, 0.8, 350, 0)))
	require.NoError(t, s.Schedule("wrist", profile("twist", 0, 0.1, 400, 0)))

	_, ok := s.Target("elbow", 100)
	assert.False(t, ok)
	v, ok := s.Target("elbow", 250)
	assert.True(t, ok)
	assert.Equal(t, 0.8, v)

	from, to, ok := s.Span()
	require.True(t, ok)
	assert.Equal(t, 0.0, from)
	assert.Equal(t, 400.0, to)
	assert.Len(t, s.All(), 3)
}

func TestScheduleCopiesKeyframes(t *testing.T) {
	s := NewScheduler(motors("m"))
	p := profile("p", 0, 1)
	require.NoError(t, s.Schedule("m", p))
	p.Keyframes[0].Value = 99
	v, _ := s.Target("m", 0)
	assert.Equal(t, 1.0, v)
}

func TestSamples(t *testing.T) {
	s := NewScheduler(motors("m"))
	require.NoError(t, s.Schedule("m", profile("p", 0, 0.5, 200, 0.0, 350, 0.5)))
	assert.Equal(t, []float64{0.5, 0.5, 0, 0, 0.5}, s.Samples("m", 0, 400, 100))
	assert.Nil(t, s.Samples("m", 0, 10, 0))
}

func TestConcurrentSchedulesOnDistinctConstraints(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	s := NewScheduler(motors(ids...))
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			assert.NoError(t, s.Schedule(assembly.ConstraintID(id), profile(id, 0, 1, 10, 0)))
		}(id)
	}
	wg.Wait()
	assert.Len(t, s.All(), len(ids))
}
