package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/starford/taxon/internal/apperr"
	"github.com/starford/taxon/internal/models"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TagFilter narrows ListTags. A nil VocabularyID selects free tags.
type TagFilter struct {
	VocabularyID *string
	Query        string
	Limit        int
	Offset       int
}

// FindOrCreateTag returns the tag called name in the given vocabulary,
// creating it when missing.
func (db *DB) FindOrCreateTag(ctx context.Context, name string, vocabularyID *string) (models.TagRef, error) {
	return findOrCreateTag(ctx, db.conn, name, vocabularyID)
}

func findOrCreateTag(ctx context.Context, q querier, name string, vocabularyID *string) (models.TagRef, error) {
	query, args, err := sq.Insert("tags").
		Options("OR IGNORE").
		Columns("id", "name", "vocabulary_id").
		Values(uuid.NewString(), name, nullable(vocabularyID)).
		ToSql()
	if err != nil {
		return models.TagRef{}, fmt.Errorf("store: build tag insert: %w", err)
	}
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		if isForeignKeyViolation(err) {
			return models.TagRef{}, fmt.Errorf("vocabulary of tag %q: %w", name, apperr.ErrNotFound)
		}
		return models.TagRef{}, fmt.Errorf("store: insert tag: %w", err)
	}
	created, _ := res.RowsAffected()

	query, args, err = sq.Select("id", "name").
		From("tags").
		Where(sq.Eq{"name": name, "vocabulary_id": nullable(vocabularyID)}).
		ToSql()
	if err != nil {
		return models.TagRef{}, fmt.Errorf("store: build tag lookup: %w", err)
	}
	ref := models.TagRef{Created: created > 0}
	if err := q.QueryRowContext(ctx, query, args...).Scan(&ref.ID, &ref.Name); err != nil {
		return models.TagRef{}, fmt.Errorf("store: lookup tag %q: %w", name, err)
	}
	return ref, nil
}

// GetTag looks a tag up by id, or by name within the given vocabulary.
func (db *DB) GetTag(ctx context.Context, idOrName string, vocabularyID *string) (*models.Tag, error) {
	query, args, err := sq.Select("id", "name", "vocabulary_id").
		From("tags").
		Where(sq.Or{
			sq.Eq{"id": idOrName},
			sq.Eq{"name": idOrName, "vocabulary_id": nullable(vocabularyID)},
		}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build tag select: %w", err)
	}
	t, err := scanTag(db.conn.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tag %q: %w", idOrName, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get tag: %w", err)
	}
	return t, nil
}

// ListTags returns tags matching f ordered by name.
func (db *DB) ListTags(ctx context.Context, f TagFilter) ([]models.Tag, error) {
	qb := sq.Select("id", "name", "vocabulary_id").
		From("tags").
		Where(sq.Eq{"vocabulary_id": nullable(f.VocabularyID)}).
		OrderBy("name")
	if f.Query != "" {
		qb = qb.Where(sq.Like{"name": "%" + f.Query + "%"})
	}
	if f.Limit > 0 {
		qb = qb.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		qb = qb.Offset(uint64(f.Offset))
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build tag list: %w", err)
	}
	return queryTags(ctx, db.conn, query, args...)
}

// DeleteTag removes a tag and its dataset associations.
func (db *DB) DeleteTag(ctx context.Context, id string) error {
	query, args, err := sq.Delete("tags").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("store: build tag delete: %w", err)
	}
	res, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("store: delete tag: %w", err)
	}
	return expectOne(res, "tag", id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTag(r rowScanner) (*models.Tag, error) {
	var (
		t   models.Tag
		vid sql.NullString
	)
	if err := r.Scan(&t.ID, &t.Name, &vid); err != nil {
		return nil, err
	}
	if vid.Valid {
		t.VocabularyID = &vid.String
	}
	return &t, nil
}

func queryTags(ctx context.Context, q querier, query string, args ...any) ([]models.Tag, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query tags: %w", err)
	}
	defer rows.Close()

	out := []models.Tag{}
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}
