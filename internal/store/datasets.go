package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// CreateLanguage inserts a language.
func (s *Store) CreateLanguage(ctx context.Context, code3, name string) (*Language, error) {
	code3 = strings.ToLower(strings.TrimSpace(code3))
	if len(code3) != 3 {
		return nil, fmt.Errorf("language code %q must have three letters", code3)
	}
	res, err := s.exec(ctx, `INSERT INTO languages (code3, name) VALUES (?, ?)`, code3, strings.TrimSpace(name))
	if err != nil {
		return nil, fmt.Errorf("insert language: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return &Language{ID: id, Code3: code3, Name: strings.TrimSpace(name)}, nil
}

// LanguageByCode returns the language with the given three-letter code, or nil.
func (s *Store) LanguageByCode(ctx context.Context, code3 string) (*Language, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, code3, name FROM languages WHERE code3 = ?`,
		strings.ToLower(strings.TrimSpace(code3)))
	var lang Language
	if err := row.Scan(&lang.ID, &lang.Code3, &lang.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get language: %w", err)
	}
	return &lang, nil
}

// CreateDataset inserts a dataset. The default language is always part of the
// translation languages.
func (s *Store) CreateDataset(ctx context.Context, acronym string, defaultLanguageID int64, translationLanguageIDs ...int64) (*Dataset, error) {
	acronym = strings.TrimSpace(acronym)
	if acronym == "" {
		return nil, errors.New("dataset acronym must not be empty")
	}
	var dataset *Dataset
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO datasets (acronym, default_language_id) VALUES (?, ?)`, acronym, defaultLanguageID)
		if err != nil {
			return fmt.Errorf("insert dataset: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		for _, langID := range append([]int64{defaultLanguageID}, translationLanguageIDs...) {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO dataset_languages (dataset_id, language_id) VALUES (?, ?)`, id, langID); err != nil {
				return fmt.Errorf("insert dataset language: %w", err)
			}
		}
		dataset = &Dataset{ID: id, Acronym: acronym, DefaultLanguageID: defaultLanguageID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dataset, nil
}

// GetDataset fetches a dataset by id, returning nil when it does not exist.
func (s *Store) GetDataset(ctx context.Context, id int64) (*Dataset, error) {
	return s.scanDataset(s.db.QueryRowContext(ctx, `SELECT id, acronym, default_language_id FROM datasets WHERE id = ?`, id))
}

// DatasetByAcronym fetches a dataset by acronym, returning nil when it does not exist.
func (s *Store) DatasetByAcronym(ctx context.Context, acronym string) (*Dataset, error) {
	return s.scanDataset(s.db.QueryRowContext(ctx,
		`SELECT id, acronym, default_language_id FROM datasets WHERE acronym = ?`, strings.TrimSpace(acronym)))
}

// ListDatasets returns every dataset ordered by acronym.
func (s *Store) ListDatasets(ctx context.Context) ([]*Dataset, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, acronym, default_language_id FROM datasets ORDER BY acronym`)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	defer rows.Close()

	var datasets []*Dataset
	for rows.Next() {
		dataset, err := s.scanDataset(rows)
		if err != nil {
			return nil, err
		}
		datasets = append(datasets, dataset)
	}
	return datasets, rows.Err()
}

func (s *Store) scanDataset(scanner interface{ Scan(dest ...any) error }) (*Dataset, error) {
	var dataset Dataset
	if err := scanner.Scan(&dataset.ID, &dataset.Acronym, &dataset.DefaultLanguageID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan dataset: %w", err)
	}
	return &dataset, nil
}

// SetDatasetAcronym updates a dataset's acronym without touching any asset.
func (s *Store) SetDatasetAcronym(ctx context.Context, id int64, acronym string) error {
	acronym = strings.TrimSpace(acronym)
	if acronym == "" {
		return errors.New("dataset acronym must not be empty")
	}
	if _, err := s.exec(ctx, `UPDATE datasets SET acronym = ? WHERE id = ?`, acronym, id); err != nil {
		return fmt.Errorf("update dataset acronym: %w", err)
	}
	return nil
}

// SetDefaultLanguage updates a dataset's default language and adds it to the
// translation languages.
func (s *Store) SetDefaultLanguage(ctx context.Context, id, languageID int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE datasets SET default_language_id = ? WHERE id = ?`, languageID, id); err != nil {
			return fmt.Errorf("update default language: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO dataset_languages (dataset_id, language_id) VALUES (?, ?)`, id, languageID); err != nil {
			return fmt.Errorf("insert dataset language: %w", err)
		}
		return nil
	})
}

// DatasetLanguages returns the translation languages of a dataset ordered by code.
func (s *Store) DatasetLanguages(ctx context.Context, datasetID int64) ([]Language, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT l.id, l.code3, l.name
        FROM dataset_languages dl JOIN languages l ON l.id = dl.language_id
        WHERE dl.dataset_id = ?
        ORDER BY l.code3`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("list dataset languages: %w", err)
	}
	defer rows.Close()

	var langs []Language
	for rows.Next() {
		var lang Language
		if err := rows.Scan(&lang.ID, &lang.Code3, &lang.Name); err != nil {
			return nil, fmt.Errorf("scan language: %w", err)
		}
		langs = append(langs, lang)
	}
	return langs, rows.Err()
}
