// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Majel Contributors

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Guffawaffle/majel/internal/provider"
)

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the known Gemini models",
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tDEFAULT")
			for _, m := range provider.KnownModels() {
				def := ""
				if m.ID == provider.DefaultModel {
					def = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", m.ID, m.Name, def)
			}
			return w.Flush()
		},
	}
}
