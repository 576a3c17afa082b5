package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

func (a *cli) newExportCommand() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every tab and note to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(strings.TrimSpace(format))
			if format != formatJSON && format != formatYAML {
				return fmt.Errorf("unsupported export format %q", format)
			}
			return a.withRuntime(cmd.Context(), cmd.OutOrStdout(), func(rt *runtime) error {
				snapshot := rt.engine.Snapshot()
				if format == formatYAML {
					encoder := yaml.NewEncoder(rt.out)
					encoder.SetIndent(2)
					if err := encoder.Encode(snapshot); err != nil {
						return err
					}
					return encoder.Close()
				}
				encoder := json.NewEncoder(rt.out)
				encoder.SetIndent("", "  ")
				return encoder.Encode(snapshot)
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", formatJSON, "Export format (json or yaml)")
	return cmd
}
