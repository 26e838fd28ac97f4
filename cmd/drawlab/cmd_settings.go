// Copyright 2025 Zintix Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/zintix-labs/drawlab/errs"
	"github.com/zintix-labs/drawlab/settings"
)

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Print or validate settings files",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "print",
			Short: "Print the default settings as YAML",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return settings.Default().WriteYAML(cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "validate [file]",
			Short: "Validate a YAML settings file and print it with defaults filled in",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return errs.Wrap(err, "read settings")
				}
				set, err := settings.FromYAML(data)
				if err != nil {
					return errs.WrapWithExtra(err, "invalid settings", args[0])
				}
				return set.WriteYAML(cmd.OutOrStdout())
			},
		},
	)
	return cmd
}
