package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"glossvideo/internal/config"
	"glossvideo/internal/failure"
	"glossvideo/internal/zipimport"
)

type importItemView struct {
	Name     string `json:"name"`
	Language string `json:"language"`
	EntryID  int64  `json:"entry_id,omitempty"`
	AssetID  int64  `json:"asset_id,omitempty"`
	Path     string `json:"path,omitempty"`
	Replaced bool   `json:"replaced,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Error    string `json:"error,omitempty"`
}

type importView struct {
	Dataset   string           `json:"dataset"`
	Stage     string           `json:"stage"`
	BatchID   string           `json:"batch_id"`
	Imported  []importItemView `json:"imported"`
	Unmatched []importItemView `json:"unmatched"`
	Ambiguous []importItemView `json:"ambiguous"`
	Failures  []importItemView `json:"failures"`
}

func importItems(items []zipimport.Item) []importItemView {
	views := make([]importItemView, 0, len(items))
	for _, item := range items {
		view := importItemView{
			Name:     item.Name,
			Language: item.Language,
			EntryID:  item.EntryID,
			AssetID:  item.AssetID,
			Path:     item.Path,
			Replaced: item.Replaced,
			Error:    item.ErrorText(),
		}
		if item.Err != nil {
			view.Kind = failure.Kind(item.Err)
		}
		views = append(views, view)
	}
	return views
}

func newImportCommand(ctx *commandContext) *cobra.Command {
	var actorFlag string

	cmd := &cobra.Command{
		Use:   "import <acronym> <archive.zip>",
		Short: "Import primary videos from a zip archive",
		Long: "The archive must contain only {acronym}/{lang3}/{annotation}.{ext} files where lang3 is one of\n" +
			"the dataset's languages. Each file replaces the primary video of the entry whose annotation\n" +
			"in that language equals the file name.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := config.ExpandPath(args[1])
			if err != nil {
				return err
			}
			return ctx.withServices(func(s *services) error {
				dataset, err := s.dataset(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				actor := strings.TrimSpace(actorFlag)
				if actor == "" {
					actor = s.cfg.Import.DefaultActor
				}
				importer := zipimport.New(s.cfg, s.store, s.normalizer(), s.logger, actor)
				result, err := importer.Import(cmd.Context(), dataset.ID, archive)
				if err != nil {
					return fmt.Errorf("import stopped at stage %s: %w", result.Stage, err)
				}
				view := importView{
					Dataset:   dataset.Acronym,
					Stage:     result.Stage.String(),
					BatchID:   result.BatchID,
					Imported:  importItems(result.Imported),
					Unmatched: importItems(result.Unmatched),
					Ambiguous: importItems(result.Ambiguous),
					Failures:  importItems(result.Failures),
				}
				if ctx.jsonOutput() {
					if err := writeJSON(cmd, view); err != nil {
						return err
					}
				} else {
					printImport(cmd.OutOrStdout(), view)
				}
				if len(view.Failures) > 0 {
					return fmt.Errorf("%d videos failed to import", len(view.Failures))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actorFlag, "actor", "", "Name recorded on import events (defaults to import.default_actor)")
	return cmd
}

func printImport(out io.Writer, view importView) {
	fmt.Fprintf(out, "Import into %s: %d imported, %d unmatched, %d ambiguous, %d failed\n",
		view.Dataset, len(view.Imported), len(view.Unmatched), len(view.Ambiguous), len(view.Failures))
	var rows [][]string
	add := func(status string, items []importItemView) {
		for _, item := range items {
			detail := item.Path
			if item.Replaced {
				detail += " (replaced)"
			}
			if item.Error != "" {
				detail = item.Error
			}
			rows = append(rows, []string{status, item.Name, formatID(item.EntryID), detail})
		}
	}
	add("imported", view.Imported)
	add("unmatched", view.Unmatched)
	add("ambiguous", view.Ambiguous)
	add("failed", view.Failures)
	if len(rows) > 0 {
		fmt.Fprintln(out, renderTable(out, []string{"Status", "File", "Entry", "Detail"}, rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight}))
	}
}
