package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"glossvideo/internal/trash"
	"glossvideo/internal/versioning"
)

type renameView struct {
	EntryID  int64         `json:"entry_id"`
	Renamed  int           `json:"renamed"`
	Skipped  int           `json:"skipped"`
	Failures []failureView `json:"failures"`
}

type countView struct {
	EntryID int64 `json:"entry_id"`
	Changed int   `json:"changed"`
}

type weedView struct {
	EntryID int64            `json:"entry_id"`
	Kept    map[string]int64 `json:"kept"`
	Deleted []int64          `json:"deleted"`
}

type trashItemView struct {
	AssetID     int64  `json:"asset_id"`
	Path        string `json:"path"`
	Destination string `json:"destination,omitempty"`
	Outcome     string `json:"outcome"`
	Error       string `json:"error,omitempty"`
}

type trashView struct {
	EntryID int64           `json:"entry_id"`
	BatchID string          `json:"batch_id"`
	Items   []trashItemView `json:"items"`
}

func newBackupsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backups",
		Short: "Maintain an entry's backup videos",
	}
	cmd.AddCommand(newBackupsRenameCommand(ctx))
	cmd.AddCommand(newBackupsRenumberCommand(ctx))
	cmd.AddCommand(newBackupsTrashCommand(ctx))
	cmd.AddCommand(newBackupsWeedCommand(ctx))
	cmd.AddCommand(newBackupsRevertCommand(ctx))
	return cmd
}

func (s *services) versions(withDerivatives bool) *versioning.Manager {
	opts := []versioning.Option{versioning.WithActor("cli")}
	if withDerivatives {
		opts = append(opts, versioning.WithDerivatives(s.normalizer()))
	}
	return versioning.New(s.cfg, s.store, s.logger, opts...)
}

func newBackupsRenameCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <entry-id>",
		Short: "Rename backup files to their derived names",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(s *services) error {
				entry, err := s.entry(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				result, err := s.versions(false).RenameBackups(cmd.Context(), entry.ID)
				if err != nil {
					return err
				}
				view := renameView{EntryID: entry.ID, Renamed: result.Renamed, Skipped: result.Skipped, Failures: []failureView{}}
				for _, f := range result.Failures {
					view.Failures = append(view.Failures, newFailureView(f.AssetID, f.Path, f.Err))
				}
				if ctx.jsonOutput() {
					if err := writeJSON(cmd, view); err != nil {
						return err
					}
				} else {
					out := cmd.OutOrStdout()
					fmt.Fprintf(out, "Entry %d: %d backups renamed, %d already correct, %d failed\n",
						entry.ID, view.Renamed, view.Skipped, len(view.Failures))
					printFailures(out, view.Failures)
				}
				if len(view.Failures) > 0 {
					return fmt.Errorf("%d backups could not be renamed", len(view.Failures))
				}
				return nil
			})
		},
	}
}

func newBackupsRenumberCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "renumber <entry-id>",
		Short: "Close gaps in backup version numbers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(s *services) error {
				entry, err := s.entry(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				changed, err := s.versions(false).RenumberBackups(cmd.Context(), entry.ID)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, countView{EntryID: entry.ID, Changed: changed})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Entry %d: %d backups renumbered\n", entry.ID, changed)
				return nil
			})
		},
	}
}

func newBackupsRevertCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "revert <entry-id>",
		Short: "Promote every normal video one version (the newest backup becomes primary)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(s *services) error {
				entry, err := s.entry(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				changed, err := s.versions(true).RevertAll(cmd.Context(), entry.ID)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, countView{EntryID: entry.ID, Changed: changed})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Entry %d: %d videos promoted\n", entry.ID, changed)
				return nil
			})
		},
	}
}

func newBackupsWeedCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "weed <entry-id>",
		Short: "Resolve roles claimed by more than one current video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(s *services) error {
				entry, err := s.entry(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				result, err := s.versions(false).WeedOutDuplicateVersion0(cmd.Context(), entry.ID)
				if err != nil {
					return err
				}
				view := weedView{EntryID: entry.ID, Kept: result.Kept, Deleted: result.Deleted}
				if view.Deleted == nil {
					view.Deleted = []int64{}
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, view)
				}
				out := cmd.OutOrStdout()
				if len(view.Kept) == 0 {
					fmt.Fprintf(out, "Entry %d: no duplicate videos\n", entry.ID)
					return nil
				}
				groups := make([]string, 0, len(view.Kept))
				for group := range view.Kept {
					groups = append(groups, group)
				}
				sort.Strings(groups)
				rows := make([][]string, 0, len(groups))
				for _, group := range groups {
					rows = append(rows, []string{group, formatID(view.Kept[group])})
				}
				fmt.Fprintln(out, renderTable(out, []string{"Role", "Kept"}, rows, []columnAlignment{alignLeft, alignRight}))
				fmt.Fprintf(out, "%d duplicate records removed\n", len(view.Deleted))
				return nil
			})
		},
	}
}

func newBackupsTrashCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "trash <entry-id>",
		Short: "Move an entry's backup videos to the trash folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(s *services) error {
				entry, err := s.entry(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				result, err := trash.New(s.cfg, s.store, s.logger, "cli").TrashEntryBackups(cmd.Context(), entry.ID)
				if err != nil {
					return err
				}
				view := trashView{EntryID: entry.ID, BatchID: result.BatchID, Items: []trashItemView{}}
				rows := make([][]string, 0, len(result.Items))
				for _, item := range result.Items {
					view.Items = append(view.Items, trashItemView{
						AssetID:     item.AssetID,
						Path:        item.Path,
						Destination: item.Destination,
						Outcome:     string(item.Outcome),
						Error:       errorText(item.Err),
					})
					rows = append(rows, []string{formatID(item.AssetID), item.Path, string(item.Outcome), item.Destination + errorText(item.Err)})
				}
				if ctx.jsonOutput() {
					if err := writeJSON(cmd, view); err != nil {
						return err
					}
				} else {
					out := cmd.OutOrStdout()
					if len(rows) == 0 {
						fmt.Fprintf(out, "Entry %d has no backups\n", entry.ID)
					} else {
						fmt.Fprintln(out, renderTable(out, []string{"Asset", "Path", "Outcome", "Detail"}, rows, []columnAlignment{alignRight}))
					}
				}
				if failed := result.Count(trash.OutcomeFailed); failed > 0 {
					return fmt.Errorf("%d backups could not be trashed", failed)
				}
				return nil
			})
		},
	}
}
