package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"glossvideo/internal/cascade"
	"glossvideo/internal/store"
)

type entryView struct {
	ID          int64             `json:"id"`
	Dataset     string            `json:"dataset"`
	LemmaID     int64             `json:"lemma_id"`
	Display     string            `json:"display"`
	Annotations map[string]string `json:"annotations,omitempty"`
	Assets      []assetView       `json:"assets"`
}

func newEntryCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entry",
		Short: "Manage dictionary entries",
	}
	cmd.AddCommand(newEntryAddCommand(ctx))
	cmd.AddCommand(newEntryShowCommand(ctx))
	cmd.AddCommand(newEntryAnnotateCommand(ctx))
	cmd.AddCommand(newEntryRelocateCommand(ctx))
	return cmd
}

// parseAnnotations splits "lang3=text" flag values.
func parseAnnotations(values []string) (map[string]string, error) {
	out := make(map[string]string, len(values))
	for _, value := range values {
		code, text, ok := strings.Cut(value, "=")
		if !ok || strings.TrimSpace(code) == "" || strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("annotation %q must look like lang3=text", value)
		}
		out[strings.ToLower(strings.TrimSpace(code))] = strings.TrimSpace(text)
	}
	return out, nil
}

func newEntryAddCommand(ctx *commandContext) *cobra.Command {
	var annotations []string

	cmd := &cobra.Command{
		Use:   "add <acronym> <display>",
		Short: "Create an entry whose lemma reads <display> in the default language",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseAnnotations(annotations)
			if err != nil {
				return err
			}
			return ctx.withServices(func(s *services) error {
				c := cmd.Context()
				dataset, err := s.dataset(c, args[0])
				if err != nil {
					return err
				}
				lemmaID, err := s.store.CreateLemma(c, dataset.ID)
				if err != nil {
					return err
				}
				if err := s.store.SetLemmaTranslation(c, lemmaID, dataset.DefaultLanguageID, args[1]); err != nil {
					return err
				}
				entry, err := s.store.CreateEntry(c, dataset.ID, lemmaID)
				if err != nil {
					return err
				}
				for code, text := range parsed {
					lang, err := s.language(c, code)
					if err != nil {
						return err
					}
					if err := s.store.SetAnnotation(c, entry.ID, lang.ID, text); err != nil {
						return err
					}
				}
				view, err := s.entryView(cmd, entry)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, view)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created entry %d (%s) in %s, lemma %d\n", view.ID, view.Display, view.Dataset, view.LemmaID)
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVar(&annotations, "annotation", nil, "Annotation used for zip matching, as lang3=text (repeatable)")
	return cmd
}

func newEntryShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <entry-id>",
		Short: "Show an entry and its videos",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(s *services) error {
				entry, err := s.entry(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				view, err := s.entryView(cmd, entry)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, view)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Entry %d: %s (%s, lemma %d)\n", view.ID, view.Display, view.Dataset, view.LemmaID)
				printAssets(out, view.Assets)
				return nil
			})
		},
	}
}

func newEntryAnnotateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "annotate <entry-id> <lang3> <text>",
		Short: "Set the annotation zip imports match against",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(s *services) error {
				entry, err := s.entry(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				lang, err := s.language(cmd.Context(), args[1])
				if err != nil {
					return err
				}
				if err := s.store.SetAnnotation(cmd.Context(), entry.ID, lang.ID, args[2]); err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{"entry_id": entry.ID, "language": lang.Code3, "text": strings.TrimSpace(args[2])})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Annotation %s of entry %d set\n", lang.Code3, entry.ID)
				return nil
			})
		},
	}
}

func newEntryRelocateCommand(ctx *commandContext) *cobra.Command {
	var datasetFlag string
	var lemmaFlag int64

	cmd := &cobra.Command{
		Use:   "relocate <entry-id>",
		Short: "Move an entry to another dataset or lemma and rename its videos",
		Long: "Without flags the entry's videos are moved to the paths derived from its current identity.\n" +
			"--dataset and --lemma change the identity first.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withServices(func(s *services) error {
				c := cmd.Context()
				entry, err := s.entry(c, args[0])
				if err != nil {
					return err
				}
				handler := cascade.New(s.cfg, s.store, s.logger, "cli")
				if strings.TrimSpace(datasetFlag) != "" {
					dataset, err := s.dataset(c, datasetFlag)
					if err != nil {
						return err
					}
					if err := s.store.SetEntryDataset(c, entry.ID, dataset.ID); err != nil {
						return err
					}
				}
				var result cascade.Result
				if lemmaFlag > 0 {
					result, err = handler.ReassignLemma(c, entry.ID, lemmaFlag)
				} else {
					result, err = handler.RelocateEntry(c, entry.ID)
				}
				if err != nil {
					return err
				}
				return reportCascade(cmd, ctx, fmt.Sprintf("Relocated entry %d", entry.ID), result)
			})
		},
	}
	cmd.Flags().StringVar(&datasetFlag, "dataset", "", "Acronym of the dataset to move the entry to")
	cmd.Flags().Int64Var(&lemmaFlag, "lemma", 0, "Lemma id to assign to the entry")
	return cmd
}

func newLemmaCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lemma",
		Short: "Edit lemma translations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set <lemma-id> <lang3> <text>",
		Short: "Change a lemma translation and rename affected videos",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			lemmaID, err := parseID(args[0], "lemma id")
			if err != nil {
				return err
			}
			return ctx.withServices(func(s *services) error {
				lang, err := s.language(cmd.Context(), args[1])
				if err != nil {
					return err
				}
				result, err := cascade.New(s.cfg, s.store, s.logger, "cli").UpdateLemmaTranslation(cmd.Context(), lemmaID, lang.ID, args[2])
				if err != nil {
					return err
				}
				return reportCascade(cmd, ctx, fmt.Sprintf("Lemma %d %s translation updated", lemmaID, lang.Code3), result)
			})
		},
	})
	return cmd
}

func (s *services) entryView(cmd *cobra.Command, entry *store.Entry) (entryView, error) {
	c := cmd.Context()
	view := entryView{ID: entry.ID, LemmaID: entry.LemmaID, Assets: []assetView{}}
	id, err := s.store.Identity(c, entry.ID)
	if err != nil {
		return view, err
	}
	view.Dataset, view.Display = id.DatasetAcronym, id.Display
	view.Annotations, err = s.store.Annotations(c, entry.ID)
	if err != nil {
		return view, err
	}
	assets, err := s.store.AssetsByEntry(c, entry.ID)
	if err != nil {
		return view, err
	}
	for _, asset := range assets {
		view.Assets = append(view.Assets, newAssetView(asset))
	}
	return view, nil
}
