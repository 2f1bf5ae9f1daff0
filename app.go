package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/chazu/rigkit/pkg/config"
	"github.com/chazu/rigkit/pkg/engine"
	"github.com/chazu/rigkit/pkg/kernel"
	"github.com/chazu/rigkit/pkg/params"
	"github.com/chazu/rigkit/pkg/pipeline"
	"github.com/chazu/rigkit/pkg/scene"
	"github.com/chazu/rigkit/pkg/tessellate"
)

// colorPalette is a default palette used to assign distinct colors to members.
var colorPalette = []string{
	"#4A90D9", "#E67E22", "#2ECC71", "#9B59B6",
	"#E74C3C", "#1ABC9C", "#F39C12", "#3498DB",
}

// jointColor is used for every joint marker.
const jointColor = "#7F8C8D"

// scriptExts are the file extensions evaluated as generator scripts.
// Anything else is read as a YAML blueprint.
var scriptExts = map[string]bool{".rig": true, ".lisp": true, ".zy": true}

// App ties the script engine, the pipeline and the mesh kernel together.
type App struct {
	cfg    *config.Config
	engine *engine.Engine
	kernel kernel.Kernel
}

// MeshData is the JSON-serializable mesh format written by `rigkit mesh`.
type MeshData struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
	Name     string    `json:"name"`
	Kind     string    `json:"kind"`
	Color    string    `json:"color"`
}

// EvalErrorData is a JSON-serializable error or warning.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// EvalResult is the full result of evaluating a script down to meshes.
type EvalResult struct {
	Scene    *scene.Scene    `json:"-"`
	Meshes   []MeshData      `json:"meshes"`
	Errors   []EvalErrorData `json:"errors"`
	Warnings []EvalErrorData `json:"warnings"`
}

// NewApp creates an App from cfg. A nil cfg uses config.Default().
func NewApp(cfg *config.Config) *App {
	if cfg == nil {
		cfg = config.Default()
	}
	return &App{
		cfg:    cfg,
		engine: cfg.Engine(),
		kernel: cfg.Kernel(),
	}
}

// IsScript reports whether path names a generator script.
func IsScript(path string) bool {
	return scriptExts[strings.ToLower(filepath.Ext(path))]
}

// Blueprint reads path as a script or a YAML blueprint and applies
// overrides. Script evaluation errors are joined into the returned error.
func (a *App) Blueprint(path string, overrides params.Table) (*pipeline.Blueprint, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	if IsScript(path) {
		return a.evalScript(string(data), overrides)
	}

	bp, err := pipeline.Parse(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return bp, applyOverrides(bp, overrides), nil
}

func (a *App) evalScript(source string, overrides params.Table) (*pipeline.Blueprint, []string, error) {
	res, err := a.engine.EvaluateResult(source, overrides)
	if err != nil {
		return nil, nil, err
	}
	if len(res.Errors) > 0 {
		msgs := make([]string, len(res.Errors))
		for i, e := range res.Errors {
			msgs[i] = e.Error()
		}
		return nil, nil, fmt.Errorf("script: %s", strings.Join(msgs, "; "))
	}
	var warnings []string
	for _, w := range res.Warnings {
		warnings = append(warnings, w.String())
	}
	return res.Blueprint, warnings, nil
}

// applyOverrides replaces blueprint parameters with overrides and returns a
// warning for each override the blueprint does not declare.
func applyOverrides(bp *pipeline.Blueprint, overrides params.Table) []string {
	if len(overrides) == 0 {
		return nil
	}
	if bp.Params == nil {
		bp.Params = params.Table{}
	}
	names := make([]string, 0, len(overrides))
	for name := range overrides {
		names = append(names, name)
	}
	sort.Strings(names)

	var warnings []string
	for _, name := range names {
		if _, ok := bp.Params[name]; !ok {
			warnings = append(warnings, name+": override is not declared by the blueprint")
		}
		bp.Params[name] = overrides[name]
	}
	return warnings
}

// Assemble runs bp through the pipeline with the configured options.
func (a *App) Assemble(ctx context.Context, bp *pipeline.Blueprint, source string) (*scene.Scene, error) {
	opts, err := a.cfg.PipelineOptions()
	if err != nil {
		return nil, err
	}
	opts.Source = source
	return pipeline.Assemble(ctx, bp, opts)
}

// Build reads path and assembles it into a scene.
func (a *App) Build(ctx context.Context, path string, overrides params.Table) (*scene.Scene, []string, error) {
	bp, warnings, err := a.Blueprint(path, overrides)
	if err != nil {
		return nil, nil, err
	}
	s, err := a.Assemble(ctx, bp, filepath.Base(path))
	if err != nil {
		return nil, warnings, err
	}
	return s, warnings, nil
}

// Meshes tessellates s into colored mesh data. Members cycle through the
// palette; joint markers share one color.
func (a *App) Meshes(s *scene.Scene) ([]MeshData, error) {
	meshes, err := tessellate.Tessellate(s, a.kernel, a.tessellateOptions())
	if err != nil {
		return nil, err
	}
	out := make([]MeshData, 0, len(meshes))
	for i, m := range meshes {
		color := jointColor
		if m.Kind == tessellate.KindMember {
			color = colorPalette[i%len(colorPalette)]
		}
		out = append(out, MeshData{
			Vertices: m.Vertices,
			Normals:  m.Normals,
			Indices:  m.Indices,
			Name:     m.Name,
			Kind:     m.Kind,
			Color:    color,
		})
	}
	return out, nil
}

// WriteSTL writes the union of every member solid in s to path.
func (a *App) WriteSTL(s *scene.Scene, path string) error {
	solid, err := tessellate.Solid(s, a.kernel, a.tessellateOptions())
	if err != nil {
		return err
	}
	return a.kernel.WriteSTL(solid, path)
}

func (a *App) tessellateOptions() tessellate.Options {
	return tessellate.Options{Joints: a.cfg.Mesh.Joints}
}

// Evaluate takes script source and returns mesh data + errors.
// Nothing here is fatal: every failure is reported in Errors.
func (a *App) Evaluate(ctx context.Context, source string, overrides params.Table) EvalResult {
	result := EvalResult{
		Meshes:   []MeshData{},
		Errors:   []EvalErrorData{},
		Warnings: []EvalErrorData{},
	}
	logger := pipeline.LoggerFromContext(ctx)

	// Step 1: Evaluate the script into a blueprint.
	res, err := a.engine.EvaluateResult(source, overrides)
	if err != nil {
		logger.Error("evaluate", "err", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}
	if len(res.Errors) > 0 {
		for _, e := range res.Errors {
			result.Errors = append(result.Errors, EvalErrorData{
				Line:    e.Line,
				Col:     e.Col,
				Message: e.Message,
			})
		}
		return result
	}
	for _, w := range res.Warnings {
		result.Warnings = append(result.Warnings, EvalErrorData{Message: w.String()})
	}

	// Step 2: Assemble the blueprint into a scene.
	s, err := a.Assemble(ctx, res.Blueprint, "")
	if err != nil {
		logger.Debug("assemble", "err", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}
	result.Scene = s
	for _, w := range scene.ValidateAll(s).Warnings {
		result.Warnings = append(result.Warnings, EvalErrorData{Message: w.String()})
	}

	// Step 3: Tessellate the scene into colored meshes.
	if len(s.Members) == 0 {
		return result
	}
	meshes, err := a.Meshes(s)
	if err != nil {
		logger.Error("tessellate", "err", err)
		result.Errors = append(result.Errors, EvalErrorData{
			Message: "tessellation failed: " + err.Error(),
		})
		return result
	}
	result.Meshes = meshes
	return result
}

// parseOverrides parses name=value pairs. Values are read the way blueprint
// params are: integers are counts, decimals are scalars, [x, y, z] is a
// vector and anything else is an expression.
func parseOverrides(pairs []string) (params.Table, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := params.Table{}
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("override %q: expected name=value", pair)
		}
		if strings.TrimSpace(raw) == "" {
			return nil, fmt.Errorf("override %s: missing value", name)
		}
		var v params.Value
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("override %s: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}

// Scene returns the scene for path. Scene files are decoded as they are;
// blueprints and scripts are assembled with overrides.
func (a *App) Scene(ctx context.Context, path string, overrides params.Table) (*scene.Scene, []string, error) {
	if !isSceneFile(path) {
		return a.Build(ctx, path, overrides)
	}
	if len(overrides) > 0 {
		return nil, nil, fmt.Errorf("%s: overrides apply to blueprints and scripts, not scene files", path)
	}
	s, err := scene.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	return s, nil, nil
}

// isSceneFile reports whether path holds a generated scene rather than a
// blueprint. JSON files are always scenes; YAML scenes carry a meta block.
func isSceneFile(path string) bool {
	if IsScript(path) {
		return false
	}
	if scene.FormatFor(path) == scene.FormatJSON {
		return true
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	var top map[string]yaml.Node
	if err := yaml.Unmarshal(data, &top); err != nil {
		return false
	}
	_, ok := top["meta"]
	return ok
}
