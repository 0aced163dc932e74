package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"glossvideo/internal/cascade"
	"glossvideo/internal/store"
	"glossvideo/internal/videopath"
)

type datasetView struct {
	ID              int64    `json:"id"`
	Acronym         string   `json:"acronym"`
	DefaultLanguage string   `json:"default_language"`
	Languages       []string `json:"languages"`
}

func newDatasetCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Manage datasets",
	}
	cmd.AddCommand(newDatasetAddCommand(ctx))
	cmd.AddCommand(newDatasetListCommand(ctx))
	cmd.AddCommand(newDatasetRenameCommand(ctx))
	cmd.AddCommand(newDatasetDefaultLanguageCommand(ctx))
	return cmd
}

func newDatasetAddCommand(ctx *commandContext) *cobra.Command {
	var defaultLanguage string
	var languages []string

	cmd := &cobra.Command{
		Use:   "add <acronym>",
		Short: "Create a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			acronym := strings.TrimSpace(args[0])
			if err := videopath.ValidateAcronym(acronym); err != nil {
				return err
			}
			return ctx.withServices(func(s *services) error {
				c := cmd.Context()
				def, err := s.ensureLanguage(c, defaultLanguage)
				if err != nil {
					return err
				}
				ids := make([]int64, 0, len(languages))
				for _, code := range languages {
					lang, err := s.ensureLanguage(c, code)
					if err != nil {
						return err
					}
					ids = append(ids, lang.ID)
				}
				dataset, err := s.store.CreateDataset(c, acronym, def.ID, ids...)
				if err != nil {
					return err
				}
				view, err := s.datasetView(cmd, dataset)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, view)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created dataset %s (id %d) with languages %s\n",
					view.Acronym, view.ID, strings.Join(view.Languages, ", "))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&defaultLanguage, "default-language", "nld", "Three-letter code of the default language")
	cmd.Flags().StringSliceVar(&languages, "language", nil, "Additional translation language (repeatable)")
	return cmd
}

func newDatasetListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List datasets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(s *services) error {
				datasets, err := s.store.ListDatasets(cmd.Context())
				if err != nil {
					return err
				}
				views := make([]datasetView, 0, len(datasets))
				for _, dataset := range datasets {
					view, err := s.datasetView(cmd, dataset)
					if err != nil {
						return err
					}
					views = append(views, view)
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, views)
				}
				out := cmd.OutOrStdout()
				if len(views) == 0 {
					fmt.Fprintln(out, "No datasets")
					return nil
				}
				rows := make([][]string, 0, len(views))
				for _, v := range views {
					rows = append(rows, []string{formatID(v.ID), v.Acronym, v.DefaultLanguage, strings.Join(v.Languages, ", ")})
				}
				fmt.Fprintln(out, renderTable(out, []string{"ID", "Acronym", "Default", "Languages"}, rows, []columnAlignment{alignRight}))
				return nil
			})
		},
	}
}

func newDatasetRenameCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <acronym> <new-acronym>",
		Short: "Rename a dataset and move its videos",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(s *services) error {
				dataset, err := s.dataset(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				result, err := cascade.New(s.cfg, s.store, s.logger, "cli").RenameDatasetAcronym(cmd.Context(), dataset.ID, args[1])
				if err != nil {
					return err
				}
				return reportCascade(cmd, ctx, fmt.Sprintf("Renamed %s to %s", dataset.Acronym, strings.TrimSpace(args[1])), result)
			})
		},
	}
}

func newDatasetDefaultLanguageCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "default-language <acronym> <lang3>",
		Short: "Change the language used for video file names",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(s *services) error {
				dataset, err := s.dataset(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				lang, err := s.language(cmd.Context(), args[1])
				if err != nil {
					return err
				}
				result, err := cascade.New(s.cfg, s.store, s.logger, "cli").ChangeDefaultLanguage(cmd.Context(), dataset.ID, lang.ID)
				if err != nil {
					return err
				}
				return reportCascade(cmd, ctx, fmt.Sprintf("Default language of %s set to %s", dataset.Acronym, lang.Code3), result)
			})
		},
	}
}

func reportCascade(cmd *cobra.Command, ctx *commandContext, label string, result cascade.Result) error {
	view := newCascadeView(result)
	if ctx.jsonOutput() {
		if err := writeJSON(cmd, view); err != nil {
			return err
		}
	} else {
		printCascade(cmd.OutOrStdout(), label, view)
	}
	if len(view.Failures) > 0 {
		return fmt.Errorf("%d videos could not be moved", len(view.Failures))
	}
	return nil
}

func (s *services) datasetView(cmd *cobra.Command, dataset *store.Dataset) (datasetView, error) {
	view := datasetView{ID: dataset.ID, Acronym: dataset.Acronym, Languages: []string{}}
	languages, err := s.store.DatasetLanguages(cmd.Context(), dataset.ID)
	if err != nil {
		return view, err
	}
	for _, lang := range languages {
		if lang.ID == dataset.DefaultLanguageID {
			view.DefaultLanguage = lang.Code3
		}
		view.Languages = append(view.Languages, lang.Code3)
	}
	return view, nil
}
