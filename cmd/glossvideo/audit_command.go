package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"glossvideo/internal/audit"
)

func newAuditCommand(ctx *commandContext) *cobra.Command {
	var datasetFlag string
	var strict bool

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Report inconsistencies between video records and files",
		Long:  "The audit only reads; it never renames, moves or deletes anything.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(s *services) error {
				var opts audit.Options
				if strings.TrimSpace(datasetFlag) != "" {
					dataset, err := s.dataset(cmd.Context(), datasetFlag)
					if err != nil {
						return err
					}
					opts.DatasetID = dataset.ID
				}
				report, err := audit.New(s.cfg, s.store, s.logger).Run(cmd.Context(), opts)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					if err := writeJSON(cmd, report); err != nil {
						return err
					}
				} else {
					printAudit(cmd, report)
				}
				if strict && report.Total() > 0 {
					return fmt.Errorf("audit found %d inconsistencies", report.Total())
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&datasetFlag, "dataset", "", "Limit the audit to one dataset acronym")
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit with an error when anything is reported")
	return cmd
}

func printAudit(cmd *cobra.Command, report audit.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Checked %d records and %d files\n", report.Assets, report.Files)
	summary := make([][]string, 0, len(audit.Kinds))
	for _, kind := range audit.Kinds {
		summary = append(summary, []string{string(kind), strconv.Itoa(report.Count(kind))})
	}
	fmt.Fprintln(out, renderTable(out, []string{"Check", "Findings"}, summary, []columnAlignment{alignLeft, alignRight}))
	if report.Total() == 0 {
		fmt.Fprintln(out, "No inconsistencies found")
		return
	}
	var rows [][]string
	for _, kind := range audit.Kinds {
		for _, f := range report.Findings[kind] {
			detail := f.Detail
			if f.Expected != "" {
				detail = "expected " + f.Expected
			}
			rows = append(rows, []string{string(kind), formatID(f.EntryID), formatID(f.AssetID), f.Path, detail})
		}
	}
	fmt.Fprintln(out, renderTable(out, []string{"Check", "Entry", "Asset", "Path", "Detail"}, rows,
		[]columnAlignment{alignLeft, alignRight, alignRight}))
}
