// Command rigkit turns parametric assembly descriptions into rigid-body
// scene descriptions.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/chazu/rigkit/pkg/config"
	"github.com/chazu/rigkit/pkg/pipeline"
)

var version = "dev"

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, styleError.Render("error: ")+err.Error())
		os.Exit(1)
	}
}

// rootOptions are shared by every subcommand.
type rootOptions struct {
	verbose    bool
	configPath string
	cfg        *config.Config
}

// app builds an App from the loaded config.
func (o *rootOptions) app() *App {
	return NewApp(o.cfg)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "rigkit",
		Short:         "rigkit generates rigid-body scenes from parametric assemblies",
		Long:          `rigkit resolves a parametric blueprint or generator script into members, joints, constraints, actuation schedules and loads, and writes the result as a scene description.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := log.InfoLevel
			if opts.verbose {
				level = log.DebugLevel
			}
			logger := pipeline.NewLogger(os.Stderr, level)
			cmd.SetContext(pipeline.WithLogger(cmd.Context(), logger))

			cfg, err := config.LoadOrDefault(opts.configPath)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			logger.Debug("config", "path", opts.configPath, "policy", cfg.Degeneracy, "timeout", cfg.EvalTimeout)
			return nil
		},
	}

	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultFile, "config file")

	root.AddCommand(newBuildCmd(opts))
	root.AddCommand(newEvalCmd(opts))
	root.AddCommand(newInspectCmd(opts))
	root.AddCommand(newGraphCmd(opts))
	root.AddCommand(newScheduleCmd(opts))
	root.AddCommand(newMeshCmd(opts))
	root.AddCommand(newConfigCmd(opts))
	return root
}

func execute() error {
	return newRootCmd().ExecuteContext(context.Background())
}
