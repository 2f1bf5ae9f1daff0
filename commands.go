package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/chazu/rigkit/pkg/assembly"
	"github.com/chazu/rigkit/pkg/config"
	"github.com/chazu/rigkit/pkg/pipeline"
	"github.com/chazu/rigkit/pkg/scene"
)

// ---------------------------------------------------------------------------
// build
// ---------------------------------------------------------------------------

func newBuildCmd(root *rootOptions) *cobra.Command {
	var (
		output string
		format string
		sets   []string
	)
	cmd := &cobra.Command{
		Use:   "build <blueprint|script>",
		Short: "Assemble a blueprint or script into a scene description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides, err := parseOverrides(sets)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			s, warnings, err := root.app().Build(ctx, args[0], overrides)
			if err != nil {
				return err
			}
			stderr := cmd.ErrOrStderr()
			printWarnings(stderr, warnings)
			if !printValidation(stderr, scene.ValidateAll(s)) {
				return fmt.Errorf("%s: scene failed validation", args[0])
			}

			f, err := outputFormat(root.cfg, format, output)
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				return scene.Encode(cmd.OutOrStdout(), s, f)
			}
			data, err := scene.Marshal(s, f)
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, data, 0644); err != nil {
				return err
			}
			printSummary(stderr, s)
			pipeline.LoggerFromContext(ctx).Info("wrote scene", "path", output, "format", f)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "output format: yaml or json (default from extension or config)")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "override a parameter (name=value, repeatable)")
	return cmd
}

// outputFormat picks the explicit format, then the output extension, then
// the configured default.
func outputFormat(cfg *config.Config, format, output string) (scene.Format, error) {
	if format != "" {
		return scene.ParseFormat(format)
	}
	if output != "" && output != "-" {
		return scene.FormatFor(output), nil
	}
	return cfg.SceneFormat()
}

// ---------------------------------------------------------------------------
// eval
// ---------------------------------------------------------------------------

func newEvalCmd(root *rootOptions) *cobra.Command {
	var sets []string
	cmd := &cobra.Command{
		Use:   "eval <script>",
		Short: "Evaluate a generator script and print the blueprint it declares",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !IsScript(args[0]) {
				return fmt.Errorf("%s: not a script (expected .rig, .lisp or .zy)", args[0])
			}
			overrides, err := parseOverrides(sets)
			if err != nil {
				return err
			}
			bp, warnings, err := root.app().Blueprint(args[0], overrides)
			if err != nil {
				return err
			}
			printWarnings(cmd.ErrOrStderr(), warnings)
			data, err := bp.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", nil, "override a parameter (name=value, repeatable)")
	return cmd
}

// ---------------------------------------------------------------------------
// inspect
// ---------------------------------------------------------------------------

func newInspectCmd(root *rootOptions) *cobra.Command {
	var (
		members bool
		joints  bool
		sets    []string
	)
	cmd := &cobra.Command{
		Use:   "inspect <scene|blueprint|script>",
		Short: "Summarise and validate a scene",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides, err := parseOverrides(sets)
			if err != nil {
				return err
			}
			s, warnings, err := root.app().Scene(cmd.Context(), args[0], overrides)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			printSummary(w, s)
			if members {
				printMembers(w, s)
			}
			if joints {
				printJoints(w, s)
			}
			printWarnings(w, warnings)
			if !printValidation(w, scene.ValidateAll(s)) {
				return fmt.Errorf("%s: scene failed validation", args[0])
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&members, "members", false, "list members")
	cmd.Flags().BoolVar(&joints, "joints", false, "list joints")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "override a parameter (name=value, repeatable)")
	return cmd
}

// ---------------------------------------------------------------------------
// graph
// ---------------------------------------------------------------------------

func newGraphCmd(root *rootOptions) *cobra.Command {
	var (
		output string
		joints bool
		sets   []string
	)
	cmd := &cobra.Command{
		Use:   "graph <scene|blueprint|script>",
		Short: "Draw the constraint graph as DOT or SVG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides, err := parseOverrides(sets)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			s, _, err := root.app().Scene(ctx, args[0], overrides)
			if err != nil {
				return err
			}
			dot := scene.ToDOT(s, scene.DOTOptions{Joints: joints})

			if output == "" || output == "-" {
				_, err := fmt.Fprint(cmd.OutOrStdout(), dot)
				return err
			}
			data := []byte(dot)
			if strings.EqualFold(filepath.Ext(output), ".svg") {
				if data, err = scene.RenderSVG(ctx, dot); err != nil {
					return err
				}
			}
			if err := os.WriteFile(output, data, 0644); err != nil {
				return err
			}
			pipeline.LoggerFromContext(ctx).Info("wrote graph", "path", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file; .svg renders with graphviz, anything else is DOT")
	cmd.Flags().BoolVar(&joints, "joints", false, "draw joints as nodes")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "override a parameter (name=value, repeatable)")
	return cmd
}

// ---------------------------------------------------------------------------
// schedule
// ---------------------------------------------------------------------------

func newScheduleCmd(root *rootOptions) *cobra.Command {
	var (
		step       float64
		height     int
		width      int
		constraint string
		sets       []string
	)
	cmd := &cobra.Command{
		Use:   "schedule <scene|blueprint|script>",
		Short: "Plot the actuation target of every scheduled motor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides, err := parseOverrides(sets)
			if err != nil {
				return err
			}
			s, _, err := root.app().Scene(cmd.Context(), args[0], overrides)
			if err != nil {
				return err
			}
			plots, err := schedulePlots(s, assembly.ConstraintID(constraint), step, height, width)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(plots) == 0 {
				fmt.Fprintln(w, styleDim.Render("no schedules"))
				return nil
			}
			for _, p := range plots {
				fmt.Fprintln(w, p)
				fmt.Fprintln(w)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&step, "step", 0, "sample step (default span/width)")
	cmd.Flags().IntVar(&height, "height", 10, "plot height")
	cmd.Flags().IntVar(&width, "width", 80, "plot width")
	cmd.Flags().StringVar(&constraint, "constraint", "", "plot only this constraint")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "override a parameter (name=value, repeatable)")
	return cmd
}

// schedulePlots renders one plot per scheduled constraint over the span of
// all schedules. A non-empty only restricts the output to that constraint.
func schedulePlots(s *scene.Scene, only assembly.ConstraintID, step float64, height, width int) ([]string, error) {
	sched, err := s.Scheduler()
	if err != nil {
		return nil, err
	}
	from, to, ok := sched.Span()
	if !ok {
		if only != "" {
			return nil, fmt.Errorf("constraint %q has no schedule", only)
		}
		return nil, nil
	}
	if step <= 0 {
		step = (to - from) / float64(max(width, 1))
	}
	if step <= 0 {
		step = 1
	}

	var ids []assembly.ConstraintID
	seen := map[assembly.ConstraintID]bool{}
	for _, sc := range sched.All() {
		if !seen[sc.Constraint] {
			seen[sc.Constraint] = true
			ids = append(ids, sc.Constraint)
		}
	}
	if only != "" {
		if !seen[only] {
			return nil, fmt.Errorf("constraint %q has no schedule", only)
		}
		ids = []assembly.ConstraintID{only}
	}

	var plots []string
	for _, id := range ids {
		data := sched.Samples(id, from, to, step)
		if len(data) == 0 {
			continue
		}
		var names []string
		for _, sc := range sched.For(id) {
			names = append(names, sc.Profile.Name)
		}
		caption := fmt.Sprintf("%s  [%s]  t=%g..%g", id, strings.Join(names, ", "), from, to)
		plots = append(plots, asciigraph.Plot(data,
			asciigraph.Height(height),
			asciigraph.Width(width),
			asciigraph.Caption(caption),
		))
	}
	return plots, nil
}

// ---------------------------------------------------------------------------
// mesh
// ---------------------------------------------------------------------------

func newMeshCmd(root *rootOptions) *cobra.Command {
	var (
		output string
		sets   []string
	)
	cmd := &cobra.Command{
		Use:   "mesh <scene|blueprint|script>",
		Short: "Export preview meshes as STL or JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				return fmt.Errorf("--output is required (.stl or .json)")
			}
			overrides, err := parseOverrides(sets)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			app := root.app()
			s, _, err := app.Scene(ctx, args[0], overrides)
			if err != nil {
				return err
			}

			switch strings.ToLower(filepath.Ext(output)) {
			case ".stl":
				if err := app.WriteSTL(s, output); err != nil {
					return err
				}
			case ".json":
				meshes, err := app.Meshes(s)
				if err != nil {
					return err
				}
				data, err := json.Marshal(meshes)
				if err != nil {
					return err
				}
				if err := os.WriteFile(output, data, 0644); err != nil {
					return err
				}
			default:
				return fmt.Errorf("%s: unknown mesh format (expected .stl or .json)", output)
			}
			pipeline.LoggerFromContext(ctx).Info("wrote mesh", "path", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (.stl or .json)")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "override a parameter (name=value, repeatable)")
	return cmd
}

// ---------------------------------------------------------------------------
// config
// ---------------------------------------------------------------------------

func newConfigCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or create the tool configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := root.configPath
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := config.Save(path, config.Default()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s wrote %s\n", styleSuccess.Render(iconSuccess), path)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.Encode(cmd.OutOrStdout(), root.cfg)
		},
	})
	return cmd
}
