package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"comfyd/internal/params"
	"comfyd/internal/registry"
	"comfyd/pkg/types"
)

func newOptionsCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "options",
		Short: "Print samplers, schedulers, size presets and workflows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := registry.LoadDir(a.cfg.WorkflowsDir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					types.OptionsResponse
					Workflows []types.Workflow `json:"workflows"`
				}{
					OptionsResponse: types.OptionsResponse{
						Samplers:   params.Samplers,
						Schedulers: params.Schedulers,
						Sizes:      params.Extensions,
						Defaults:   params.DefaultRequest(),
					},
					Workflows: reg.Workflows(),
				})
			}
			ids := make([]string, 0)
			for _, w := range reg.Workflows() {
				ids = append(ids, w.ID)
			}
			fmt.Fprintf(out, "samplers:   %s\n", strings.Join(params.Samplers, ", "))
			fmt.Fprintf(out, "schedulers: %s\n", strings.Join(params.Schedulers, ", "))
			fmt.Fprintf(out, "sizes:      %s\n", strings.Join(params.Extensions, ", "))
			fmt.Fprintf(out, "workflows:  %s (default %s)\n", strings.Join(ids, ", "), a.cfg.DefaultWorkflow)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}
