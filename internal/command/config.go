package command

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adamavenir/huddle/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type configView struct {
	Config *config.Config `json:"config"`
	Paths  configPaths    `json:"paths"`
}

type configPaths struct {
	User    string `json:"user,omitempty"`
	Project string `json:"project"`
	Env     string `json:"env"`
}

// NewConfigCmd creates the config command.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			paths := configPaths{
				Project: filepath.Join(ctx.Project.Dir(), config.ProjectConfigFile),
				Env:     filepath.Join(ctx.Project.Dir(), config.EnvFile),
			}
			if home, err := os.UserHomeDir(); err == nil {
				paths.User = filepath.Join(home, config.UserConfigDir, config.UserConfigFile)
			}

			if ctx.JSONMode {
				return writeJSON(cmd.OutOrStdout(), configView{Config: ctx.Config, Paths: paths})
			}

			out := cmd.OutOrStdout()
			if paths.User != "" {
				fmt.Fprintf(out, "# user:    %s\n", paths.User)
			}
			fmt.Fprintf(out, "# project: %s\n", paths.Project)
			fmt.Fprintf(out, "# env:     %s\n", paths.Env)
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(ctx.Config); err != nil {
				return writeCommandError(cmd, err)
			}
			return enc.Close()
		},
	}
	return cmd
}
