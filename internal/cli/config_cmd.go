// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stellarchat/stellarchat-tui/internal/config"
)

func newConfigCommand(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
	}
	cmd.AddCommand(
		newConfigShowCommand(st),
		newConfigPathCommand(st),
		newConfigInitCommand(st),
	)
	return cmd
}

func newConfigShowCommand(st *state) *cobra.Command {
	return &cobra.Command{
		Use:         "show",
		Short:       "Print the effective configuration (API key redacted)",
		Annotations: map[string]string{annotationLog: logNone},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), st.cfg.String())
			return err
		},
	}
}

func newConfigPathCommand(st *state) *cobra.Command {
	return &cobra.Command{
		Use:         "path",
		Short:       "Print the config file location",
		Annotations: map[string]string{annotationSkipConfig: "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := st.targetPath()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
			return err
		},
	}
}

func newConfigInitCommand(st *state) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a config file with the default settings",
		Annotations: map[string]string{annotationSkipConfig: "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := st.targetPath()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if st.configPath == "" {
				if err := config.EnsureConfigDir(); err != nil {
					return err
				}
			}
			if err := config.SaveTOML(config.Default(), path); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "wrote "+path)
			return err
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

// targetPath is --config when given, else the default location.
func (st *state) targetPath() (string, error) {
	if st.configPath != "" {
		return st.configPath, nil
	}
	return config.ConfigPath()
}
