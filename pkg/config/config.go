// Package config holds rigkit's tool settings, read from a TOML file.
//
// Blueprint settings always win over the config; the config only fills in
// what a blueprint leaves unset.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/chazu/rigkit/pkg/assembly"
	"github.com/chazu/rigkit/pkg/engine"
	"github.com/chazu/rigkit/pkg/joint"
	"github.com/chazu/rigkit/pkg/kernel/sdfx"
	"github.com/chazu/rigkit/pkg/pipeline"
	"github.com/chazu/rigkit/pkg/scene"
)

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = "rigkit.toml"

// Duration is a time.Duration written as "5s" in TOML.
type Duration struct {
	time.Duration
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Tolerance sets the joint clustering tolerance used when a blueprint sets
// none.
type Tolerance struct {
	Relative float64 `toml:"relative"`
	Floor    float64 `toml:"floor"`
}

// Mesh configures preview meshes.
type Mesh struct {
	Cells  int  `toml:"cells"`
	Joints bool `toml:"joints"`
}

// Config is the full tool configuration.
type Config struct {
	Tolerance      Tolerance `toml:"tolerance"`
	Degeneracy     string    `toml:"degeneracy"`
	DefaultDensity float64   `toml:"default_density"`
	EvalTimeout    Duration  `toml:"eval_timeout"`
	Format         string    `toml:"format"`
	Mesh           Mesh      `toml:"mesh"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Tolerance: Tolerance{
			Relative: joint.DefaultRelativeTolerance,
			Floor:    joint.DefaultToleranceFloor,
		},
		Degeneracy:  assembly.DegeneracyFallback.String(),
		EvalTimeout: Duration{engine.EvalTimeout},
		Format:      scene.FormatYAML.String(),
		Mesh: Mesh{
			Cells:  sdfx.DefaultMeshCells,
			Joints: true,
		},
	}
}

// Load reads path over the defaults. Keys missing from the file keep their
// default value; unknown keys are an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config: %s: unknown key %q", path, undecoded[0].String())
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault loads path when it exists and returns the defaults
// otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// Encode writes cfg to w as TOML.
func Encode(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Save writes cfg to path.
func Save(path string, cfg *Config) error {
	var buf bytes.Buffer
	if err := Encode(&buf, cfg); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// Validate checks that every setting is usable.
func (c *Config) Validate() error {
	if c.Tolerance.Relative < 0 || c.Tolerance.Floor < 0 {
		return fmt.Errorf("tolerance must not be negative")
	}
	if c.DefaultDensity < 0 {
		return fmt.Errorf("default_density must not be negative, got %g", c.DefaultDensity)
	}
	if c.EvalTimeout.Duration < 0 {
		return fmt.Errorf("eval_timeout must not be negative, got %s", c.EvalTimeout)
	}
	if c.Mesh.Cells < 0 {
		return fmt.Errorf("mesh.cells must not be negative, got %d", c.Mesh.Cells)
	}
	if _, err := c.Policy(); err != nil {
		return err
	}
	if _, err := c.SceneFormat(); err != nil {
		return err
	}
	return nil
}

// Policy returns the parsed degeneracy policy.
func (c *Config) Policy() (assembly.DegeneracyPolicy, error) {
	return assembly.ParseDegeneracyPolicy(c.Degeneracy)
}

// SceneFormat returns the parsed scene output format.
func (c *Config) SceneFormat() (scene.Format, error) {
	if c.Format == "" {
		return scene.FormatYAML, nil
	}
	return scene.ParseFormat(c.Format)
}

// PipelineOptions returns the pipeline options this config implies.
func (c *Config) PipelineOptions() (pipeline.Options, error) {
	policy, err := c.Policy()
	if err != nil {
		return pipeline.Options{}, err
	}
	return pipeline.Options{
		RelativeTolerance: c.Tolerance.Relative,
		ToleranceFloor:    c.Tolerance.Floor,
		Policy:            policy,
		DefaultDensity:    c.DefaultDensity,
	}, nil
}

// Engine returns a script engine using the configured timeout.
func (c *Config) Engine() *engine.Engine {
	e := engine.NewEngine()
	if c.EvalTimeout.Duration > 0 {
		e.Timeout = c.EvalTimeout.Duration
	}
	return e
}

// Kernel returns the mesh kernel at the configured resolution.
func (c *Config) Kernel() *sdfx.SdfxKernel {
	k := sdfx.New()
	if c.Mesh.Cells > 0 {
		k.Cells = c.Mesh.Cells
	}
	return k
}
