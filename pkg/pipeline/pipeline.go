package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chazu/rigkit/pkg/actuation"
	"github.com/chazu/rigkit/pkg/assembly"
	"github.com/chazu/rigkit/pkg/constraint"
	"github.com/chazu/rigkit/pkg/joint"
	"github.com/chazu/rigkit/pkg/load"
	"github.com/chazu/rigkit/pkg/member"
	"github.com/chazu/rigkit/pkg/params"
	"github.com/chazu/rigkit/pkg/scene"
)

// Options tune a run. Zero values take the blueprint's settings, then the
// package defaults.
type Options struct {
	// Tolerance overrides every blueprint tolerance setting when > 0.
	Tolerance float64
	// RelativeTolerance and ToleranceFloor apply when the blueprint sets
	// neither.
	RelativeTolerance float64
	ToleranceFloor    float64
	// Policy applies when the blueprint sets no degeneracy policy.
	Policy assembly.DegeneracyPolicy
	// DefaultDensity is used for members that name no material. Zero
	// makes such members an error.
	DefaultDensity float64
	// ID fixes the scene id. The zero UUID derives one from the blueprint.
	ID uuid.UUID
	// Source is recorded in the scene metadata.
	Source string
}

// stageError wraps err with the stage that produced it.
func stageError(stage string, err error) error {
	return fmt.Errorf("pipeline: %s: %w", stage, err)
}

// Assemble runs every stage over bp and returns the scene.
func Assemble(ctx context.Context, bp *Blueprint, opts Options) (*scene.Scene, error) {
	logger := LoggerFromContext(ctx).With("blueprint", bp.Name)
	start := time.Now()

	// Stage 1: parameters and layout.
	resolved, err := params.Resolve(bp.Params, bp.Manifest)
	if err != nil {
		return nil, stageError("resolve", err)
	}
	logger.Debug("resolved parameters", "count", len(resolved.Names()))

	plan, err := bp.Layout.Apply(resolved)
	if err != nil {
		return nil, stageError("layout", err)
	}
	logger.Debug("laid out", "nodes", len(plan.Nodes), "members", len(plan.Members))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Stage 2: member synthesis.
	policy := opts.Policy
	if bp.Degeneracy != nil {
		policy = *bp.Degeneracy
	}
	members, err := synthesize(bp, plan, policy, opts.DefaultDensity)
	if err != nil {
		return nil, stageError("synthesize", err)
	}

	// Stage 3: joints from the complete member set.
	tol := tolerance(bp.Tolerance, opts, members)
	if err := checkShortMembers(members, tol); err != nil {
		return nil, stageError("synthesize", err)
	}
	clustering, err := joint.Cluster(members, tol)
	if err != nil {
		return nil, stageError("cluster", err)
	}
	logger.Debug("clustered", "joints", len(clustering.Joints), "shared", len(clustering.Shared()), "tolerance", tol)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Stage 4: constraints.
	graph, err := constraint.Build(clustering.Joints, bp.Joints, constraint.Options{Tolerance: tol})
	if err != nil {
		return nil, stageError("constraints", err)
	}
	if graph.Dropped > 0 {
		logger.Debug("dropped duplicate constraints", "count", graph.Dropped)
	}

	// Stage 5: actuation.
	sched, err := schedule(bp, clustering, graph)
	if err != nil {
		return nil, stageError("schedule", err)
	}

	// Stage 6: loads.
	var applied []assembly.AppliedLoad
	for _, spec := range bp.Loads {
		ls, err := load.Apply(members, plan.Nodes, spec)
		if err != nil {
			return nil, stageError("loads", err)
		}
		applied = append(applied, ls...)
	}

	id := opts.ID
	if id == uuid.Nil {
		src, err := bp.Marshal()
		if err != nil {
			return nil, err
		}
		id = scene.NewID(bp.Name, src)
	}

	s := &scene.Scene{
		Meta: scene.Meta{
			Name:      bp.Name,
			ID:        id,
			Tolerance: tol,
			Policy:    policy.String(),
			Source:    opts.Source,
		},
		Nodes:       plan.Nodes,
		Members:     members,
		Joints:      clustering.Joints,
		Constraints: graph.Constraints,
		Profiles:    bp.Profiles,
		Schedules:   sched.All(),
		Loads:       applied,
	}
	logger.Info("assembled",
		"members", len(s.Members),
		"joints", len(s.Joints),
		"constraints", len(s.Constraints),
		"schedules", len(s.Schedules),
		"loads", len(s.Loads),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return s, nil
}

// synthesize builds one descriptor per planned member.
func synthesize(bp *Blueprint, plan *params.Plan, policy assembly.DegeneracyPolicy, defaultDensity float64) ([]assembly.MemberDescriptor, error) {
	pos := make(map[assembly.NodeID]assembly.Vec3, len(plan.Nodes))
	for _, n := range plan.Nodes {
		pos[n.ID] = n.Position
	}

	out := make([]assembly.MemberDescriptor, 0, len(plan.Members))
	for _, pm := range plan.Members {
		mat, err := material(bp, pm, defaultDensity)
		if err != nil {
			return nil, err
		}
		m, err := member.Synthesize(pm.ID, pos[pm.Start], pos[pm.End], pm.Section, mat, member.Options{
			StartNode: pm.Start,
			EndNode:   pm.End,
			Mobility:  pm.Mobility,
			Role:      pm.Role,
			Policy:    policy,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func material(bp *Blueprint, pm params.PlannedMember, defaultDensity float64) (assembly.Material, error) {
	if pm.Material == "" {
		if defaultDensity <= 0 {
			return assembly.Material{}, &assembly.DeclarationError{Decl: "member " + string(pm.ID), Reason: "no material and no default density"}
		}
		return assembly.Material{Name: "default", Density: defaultDensity}, nil
	}
	m, ok := bp.Material(pm.Material)
	if !ok {
		return assembly.Material{}, &assembly.DeclarationError{Decl: "member " + string(pm.ID), Reason: fmt.Sprintf("unknown material %q", pm.Material)}
	}
	return m, nil
}

// tolerance picks the clustering ε.
func tolerance(t Tolerance, opts Options, members []assembly.MemberDescriptor) float64 {
	switch {
	case opts.Tolerance > 0:
		return opts.Tolerance
	case t.Absolute > 0:
		return t.Absolute
	}
	rel, floor := t.Relative, t.Floor
	if rel <= 0 {
		rel = opts.RelativeTolerance
	}
	if floor <= 0 {
		floor = opts.ToleranceFloor
	}
	return joint.ScaledTolerance(members, rel, floor)
}

// checkShortMembers rejects members no longer than ε; both of their ends
// would fall into one joint.
func checkShortMembers(members []assembly.MemberDescriptor, tol float64) error {
	for _, m := range members {
		if m.Length <= tol {
			return &assembly.DegenerateMemberError{Member: m.ID, Start: m.Start, End: m.End, Length: m.Length}
		}
	}
	return nil
}

// schedule attaches declared and bound profiles to motor constraints.
// Constraints carry their declaration's profile; bindings add further
// profiles in blueprint order.
func schedule(bp *Blueprint, c *joint.Clustering, g *constraint.Graph) (*actuation.Scheduler, error) {
	seen := make(map[string]bool, len(bp.Profiles))
	for _, p := range bp.Profiles {
		if seen[p.Name] {
			return nil, &assembly.DeclarationError{Decl: "profile " + p.Name, Reason: "defined twice"}
		}
		seen[p.Name] = true
		if err := actuation.Validate(p); err != nil {
			return nil, err
		}
	}

	lookup := func(decl, name string) (assembly.ActuationProfile, error) {
		p, ok := bp.Profile(name)
		if !ok {
			return p, &assembly.DeclarationError{Decl: decl, Reason: fmt.Sprintf("unknown profile %q", name)}
		}
		return p, nil
	}

	sched := actuation.NewScheduler(g.Constraints)
	for _, con := range g.Motors() {
		if con.Profile == "" {
			continue
		}
		p, err := lookup("constraint "+string(con.ID), con.Profile)
		if err != nil {
			return nil, err
		}
		if err := sched.Schedule(con.ID, p); err != nil {
			return nil, err
		}
	}

	for i, b := range bp.Schedules {
		decl := fmt.Sprintf("schedule %d", i)
		p, err := lookup(decl, b.Profile)
		if err != nil {
			return nil, err
		}
		var targets []assembly.ConstraintID
		switch {
		case b.End != nil:
			j, ok := c.JointOf(*b.End)
			if !ok {
				return nil, &assembly.DeclarationError{Decl: decl, Reason: fmt.Sprintf("no joint contains member end %s", b.End)}
			}
			for _, con := range g.ForJoint(j.ID) {
				if con.Kind == assembly.KindMotor {
					targets = append(targets, con.ID)
				}
			}
			if len(targets) == 0 {
				return nil, &assembly.DeclarationError{Decl: decl, Reason: fmt.Sprintf("joint %s has no motor constraint", j.ID)}
			}
		case b.Constraint != "":
			targets = []assembly.ConstraintID{b.Constraint}
		default:
			return nil, &assembly.DeclarationError{Decl: decl, Reason: "binding selects no constraint (set end or constraint)"}
		}
		for _, id := range targets {
			if err := sched.Schedule(id, p); err != nil {
				return nil, err
			}
		}
	}
	return sched, nil
}
