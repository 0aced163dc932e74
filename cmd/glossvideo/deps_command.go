package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"glossvideo/internal/deps"
	"glossvideo/internal/preflight"
	"glossvideo/internal/transcode"
)

type depStatusView struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

type directoryView struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

type depsView struct {
	Tools       []depStatusView `json:"tools"`
	Directories []directoryView `json:"directories"`
}

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check external tools and writable directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			statuses := deps.CheckBinaries(deps.Requirements(cfg))
			if statuses[0].Available {
				for _, encoder := range []string{transcode.VideoEncoder(cfg.Transcode.CanonicalCodec), "aac"} {
					statuses = append(statuses, deps.CheckEncoder(cmd.Context(), statuses[0].Command, encoder))
				}
			}

			missing := 0
			view := depsView{Tools: []depStatusView{}, Directories: []directoryView{}}
			toolRows := make([][]string, 0, len(statuses))
			for _, status := range statuses {
				if !status.Available && !status.Optional {
					missing++
				}
				view.Tools = append(view.Tools, depStatusView{
					Name:        status.Name,
					Command:     status.Command,
					Description: status.Description,
					Available:   status.Available,
					Detail:      status.Detail,
				})
				toolRows = append(toolRows, []string{status.Name, status.Command, okMissing(status.Available), status.Detail})
			}

			dirRows := [][]string{}
			for _, result := range preflight.RunAll(cfg) {
				if !result.Passed {
					missing++
				}
				view.Directories = append(view.Directories, directoryView{Name: result.Name, Passed: result.Passed, Detail: result.Detail})
				dirRows = append(dirRows, []string{result.Name, okMissing(result.Passed), result.Detail})
			}

			if ctx.jsonOutput() {
				if err := writeJSON(cmd, view); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderTable(out, []string{"Dependency", "Command", "Status", "Detail"}, toolRows, nil))
				fmt.Fprintln(out, renderTable(out, []string{"Directory", "Status", "Detail"}, dirRows, nil))
			}
			if missing > 0 {
				return fmt.Errorf("%d required dependencies unavailable", missing)
			}
			return nil
		},
	}
}

func okMissing(ok bool) string {
	if ok {
		return "ok"
	}
	return "missing"
}
