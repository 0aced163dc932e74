package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"glossvideo/internal/config"
	"glossvideo/internal/failure"
	"glossvideo/internal/language"
	"glossvideo/internal/logging"
	"glossvideo/internal/normalize"
	"glossvideo/internal/preflight"
	"glossvideo/internal/store"
	"glossvideo/internal/transcode"
)

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	logger *slog.Logger
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	if c.logger != nil {
		return c.logger, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	c.logger = logger
	return logger, nil
}

// services bundles what most commands need.
type services struct {
	cfg    *config.Config
	store  *store.Store
	logger *slog.Logger
}

// withServices opens the store for the duration of fn.
func (c *commandContext) withServices(fn func(*services) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return err
	}
	if failed := preflight.Failed(preflight.RunAll(cfg)); len(failed) > 0 {
		details := make([]string, 0, len(failed))
		for _, r := range failed {
			details = append(details, r.Name+": "+r.Detail)
		}
		return fmt.Errorf("directory check failed: %s", strings.Join(details, "; "))
	}
	st, err := store.Open(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	return fn(&services{cfg: cfg, store: st, logger: logger})
}

func (s *services) normalizer() *normalize.Normalizer {
	return normalize.New(s.cfg, transcode.New(s.cfg, s.logger), s.logger)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func parseID(value, label string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", label, value)
	}
	return id, nil
}

func (s *services) dataset(ctx context.Context, acronym string) (*store.Dataset, error) {
	dataset, err := s.store.DatasetByAcronym(ctx, strings.TrimSpace(acronym))
	if err != nil {
		return nil, err
	}
	if dataset == nil {
		return nil, fmt.Errorf("%w: dataset %q", failure.ErrNotFound, acronym)
	}
	return dataset, nil
}

func (s *services) language(ctx context.Context, code string) (*store.Language, error) {
	code3, ok := language.Canonical(code)
	if !ok {
		return nil, fmt.Errorf("unknown language %q", code)
	}
	lang, err := s.store.LanguageByCode(ctx, code3)
	if err != nil {
		return nil, err
	}
	if lang == nil {
		return nil, fmt.Errorf("%w: language %q", failure.ErrNotFound, code)
	}
	return lang, nil
}

// ensureLanguage returns the language with code, creating it when missing.
func (s *services) ensureLanguage(ctx context.Context, code string) (*store.Language, error) {
	code3, ok := language.Canonical(code)
	if !ok {
		return nil, fmt.Errorf("unknown language %q", code)
	}
	lang, err := s.store.LanguageByCode(ctx, code3)
	if err != nil || lang != nil {
		return lang, err
	}
	return s.store.CreateLanguage(ctx, code3, language.DisplayName(code3))
}

func (s *services) entry(ctx context.Context, value string) (*store.Entry, error) {
	id, err := parseID(value, "entry id")
	if err != nil {
		return nil, err
	}
	entry, err := s.store.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: entry %d", failure.ErrNotFound, id)
	}
	return entry, nil
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
