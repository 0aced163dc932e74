package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"glossvideo/internal/failure"
	"glossvideo/internal/videopath"
)

// CreateLemma inserts an empty lemma for a dataset.
func (s *Store) CreateLemma(ctx context.Context, datasetID int64) (int64, error) {
	res, err := s.exec(ctx, `INSERT INTO lemmas (dataset_id) VALUES (?)`, datasetID)
	if err != nil {
		return 0, fmt.Errorf("insert lemma: %w", err)
	}
	return res.LastInsertId()
}

// SetLemmaTranslation stores the lemma text for one language.
func (s *Store) SetLemmaTranslation(ctx context.Context, lemmaID, languageID int64, text string) error {
	_, err := s.exec(ctx, `
        INSERT INTO lemma_translations (lemma_id, language_id, text) VALUES (?, ?, ?)
        ON CONFLICT(lemma_id, language_id) DO UPDATE SET text = excluded.text`,
		lemmaID, languageID, strings.TrimSpace(text))
	if err != nil {
		return fmt.Errorf("set lemma translation: %w", err)
	}
	return nil
}

// LemmaTranslation returns the lemma text for one language, or "".
func (s *Store) LemmaTranslation(ctx context.Context, lemmaID, languageID int64) (string, error) {
	var text string
	err := s.db.QueryRowContext(ctx,
		`SELECT text FROM lemma_translations WHERE lemma_id = ? AND language_id = ?`, lemmaID, languageID).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get lemma translation: %w", err)
	}
	return text, nil
}

// CreateEntry inserts an entry. lemmaID may be zero.
func (s *Store) CreateEntry(ctx context.Context, datasetID, lemmaID int64) (*Entry, error) {
	res, err := s.exec(ctx, `INSERT INTO entries (dataset_id, lemma_id) VALUES (?, ?)`, datasetID, nullableID(lemmaID))
	if err != nil {
		return nil, fmt.Errorf("insert entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return &Entry{ID: id, DatasetID: datasetID, LemmaID: lemmaID}, nil
}

// GetEntry fetches an entry, returning nil when it does not exist.
func (s *Store) GetEntry(ctx context.Context, id int64) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, dataset_id, COALESCE(lemma_id, 0) FROM entries WHERE id = ?`, id)
	var entry Entry
	if err := row.Scan(&entry.ID, &entry.DatasetID, &entry.LemmaID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return &entry, nil
}

// EntriesByDataset lists entries of a dataset ordered by id.
func (s *Store) EntriesByDataset(ctx context.Context, datasetID int64) ([]*Entry, error) {
	return s.queryEntries(ctx, `SELECT id, dataset_id, COALESCE(lemma_id, 0) FROM entries WHERE dataset_id = ? ORDER BY id`, datasetID)
}

// EntriesByLemma lists entries that share a lemma ordered by id.
func (s *Store) EntriesByLemma(ctx context.Context, lemmaID int64) ([]*Entry, error) {
	return s.queryEntries(ctx, `SELECT id, dataset_id, COALESCE(lemma_id, 0) FROM entries WHERE lemma_id = ? ORDER BY id`, lemmaID)
}

// EntriesByAnnotation lists entries of a dataset whose annotation in the given
// language equals text.
func (s *Store) EntriesByAnnotation(ctx context.Context, datasetID, languageID int64, text string) ([]*Entry, error) {
	return s.queryEntries(ctx, `
        SELECT e.id, e.dataset_id, COALESCE(e.lemma_id, 0)
        FROM entries e JOIN annotation_translations a ON a.entry_id = e.id
        WHERE e.dataset_id = ? AND a.language_id = ? AND a.text = ?
        ORDER BY e.id`, datasetID, languageID, norm.NFC.String(strings.TrimSpace(text)))
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var entry Entry
		if err := rows.Scan(&entry.ID, &entry.DatasetID, &entry.LemmaID); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// SetEntryLemma points an entry at another lemma.
func (s *Store) SetEntryLemma(ctx context.Context, entryID, lemmaID int64) error {
	if _, err := s.exec(ctx, `UPDATE entries SET lemma_id = ? WHERE id = ?`, nullableID(lemmaID), entryID); err != nil {
		return fmt.Errorf("update entry lemma: %w", err)
	}
	return nil
}

// SetEntryDataset moves an entry to another dataset.
func (s *Store) SetEntryDataset(ctx context.Context, entryID, datasetID int64) error {
	if _, err := s.exec(ctx, `UPDATE entries SET dataset_id = ? WHERE id = ?`, datasetID, entryID); err != nil {
		return fmt.Errorf("update entry dataset: %w", err)
	}
	return nil
}

// SetAnnotation stores an entry's annotation text for one language.
func (s *Store) SetAnnotation(ctx context.Context, entryID, languageID int64, text string) error {
	_, err := s.exec(ctx, `
        INSERT INTO annotation_translations (entry_id, language_id, text) VALUES (?, ?, ?)
        ON CONFLICT(entry_id, language_id) DO UPDATE SET text = excluded.text`,
		entryID, languageID, norm.NFC.String(strings.TrimSpace(text)))
	if err != nil {
		return fmt.Errorf("set annotation: %w", err)
	}
	return nil
}

// Annotations returns an entry's annotation texts keyed by language code.
func (s *Store) Annotations(ctx context.Context, entryID int64) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT l.code3, a.text
        FROM annotation_translations a JOIN languages l ON l.id = a.language_id
        WHERE a.entry_id = ?`, entryID)
	if err != nil {
		return nil, fmt.Errorf("query annotations: %w", err)
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var code, text string
		if err := rows.Scan(&code, &text); err != nil {
			return nil, fmt.Errorf("scan annotation: %w", err)
		}
		out[code] = text
	}
	return out, rows.Err()
}

// Identity resolves the path-relevant fields of an entry: its dataset acronym
// and its lemma text in the dataset's default language.
func (s *Store) Identity(ctx context.Context, entryID int64) (videopath.Identity, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT e.id, d.acronym, COALESCE(lt.text, '')
        FROM entries e
        JOIN datasets d ON d.id = e.dataset_id
        LEFT JOIN lemma_translations lt ON lt.lemma_id = e.lemma_id AND lt.language_id = d.default_language_id
        WHERE e.id = ?`, entryID)
	var id videopath.Identity
	if err := row.Scan(&id.EntryID, &id.DatasetAcronym, &id.Display); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return videopath.Identity{}, fmt.Errorf("%w: entry %d", failure.ErrNotFound, entryID)
		}
		return videopath.Identity{}, fmt.Errorf("resolve identity: %w", err)
	}
	return id, nil
}

func nullableID(id int64) any {
	if id <= 0 {
		return nil
	}
	return id
}
