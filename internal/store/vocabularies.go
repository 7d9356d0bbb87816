package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/starford/taxon/internal/apperr"
	"github.com/starford/taxon/internal/models"
)

// CreateVocabulary inserts a vocabulary and, in the same transaction, the
// given tags scoped to it.
func (db *DB) CreateVocabulary(ctx context.Context, name string, tags []string) (*models.Vocabulary, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	v := &models.Vocabulary{ID: uuid.NewString(), Name: name, CreatedAt: time.Now().UTC()}
	query, args, err := sq.Insert("vocabularies").
		Columns("id", "name", "created_at").
		Values(v.ID, v.Name, v.CreatedAt).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build vocabulary insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("vocabulary %q: %w", name, apperr.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("store: insert vocabulary: %w", err)
	}

	v.Tags = make([]models.Tag, 0, len(tags))
	for _, tn := range tags {
		ref, err := findOrCreateTag(ctx, tx, tn, &v.ID)
		if err != nil {
			return nil, err
		}
		v.Tags = append(v.Tags, models.Tag{ID: ref.ID, Name: ref.Name, VocabularyID: &v.ID})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit: %w", err)
	}
	return v, nil
}

// GetVocabulary looks a vocabulary up by id or name and loads its tags.
func (db *DB) GetVocabulary(ctx context.Context, idOrName string) (*models.Vocabulary, error) {
	query, args, err := sq.Select("id", "name", "created_at").
		From("vocabularies").
		Where(sq.Or{sq.Eq{"id": idOrName}, sq.Eq{"name": idOrName}}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build vocabulary select: %w", err)
	}
	var v models.Vocabulary
	err = db.conn.QueryRowContext(ctx, query, args...).Scan(&v.ID, &v.Name, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("vocabulary %q: %w", idOrName, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get vocabulary: %w", err)
	}
	v.Tags, err = db.ListTags(ctx, TagFilter{VocabularyID: &v.ID})
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ResolveVocabulary returns the id of the vocabulary called name.
func (db *DB) ResolveVocabulary(ctx context.Context, name string) (string, error) {
	query, args, err := sq.Select("id").From("vocabularies").Where(sq.Eq{"name": name}).ToSql()
	if err != nil {
		return "", fmt.Errorf("store: build vocabulary lookup: %w", err)
	}
	var id string
	err = db.conn.QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("vocabulary %q: %w", name, apperr.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("store: resolve vocabulary: %w", err)
	}
	return id, nil
}

// ListVocabularies returns every vocabulary with its tags, ordered by name.
func (db *DB) ListVocabularies(ctx context.Context) ([]models.Vocabulary, error) {
	query, args, err := sq.Select("id", "name", "created_at").
		From("vocabularies").
		OrderBy("name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build vocabulary list: %w", err)
	}
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list vocabularies: %w", err)
	}
	var out []models.Vocabulary
	for rows.Next() {
		var v models.Vocabulary
		if err := rows.Scan(&v.ID, &v.Name, &v.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, v)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		out[i].Tags, err = db.ListTags(ctx, TagFilter{VocabularyID: &out[i].ID})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// UpdateVocabulary renames a vocabulary and replaces its tag set in one
// transaction. An empty name keeps the current name; nil tags keep the
// current tags. Otherwise listed tags are found or created and every other
// tag of the vocabulary is deleted.
func (db *DB) UpdateVocabulary(ctx context.Context, id, name string, tags []string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	query, args, err := sq.Select("1").From("vocabularies").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("store: build vocabulary lookup: %w", err)
	}
	var exists int
	err = tx.QueryRowContext(ctx, query, args...).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("vocabulary %q: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("store: get vocabulary: %w", err)
	}

	if tags != nil {
		for _, tn := range tags {
			if _, err := findOrCreateTag(ctx, tx, tn, &id); err != nil {
				return err
			}
		}
		del := sq.Delete("tags").Where(sq.Eq{"vocabulary_id": id})
		if len(tags) > 0 {
			del = del.Where(sq.NotEq{"name": tags})
		}
		query, args, err := del.ToSql()
		if err != nil {
			return fmt.Errorf("store: build tag delete: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("store: delete unlisted tags: %w", err)
		}
	}

	if name != "" {
		query, args, err := sq.Update("vocabularies").
			Set("name", name).
			Where(sq.Eq{"id": id}).
			ToSql()
		if err != nil {
			return fmt.Errorf("store: build vocabulary update: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("vocabulary %q: %w", name, apperr.ErrAlreadyExists)
			}
			return fmt.Errorf("store: update vocabulary: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// DeleteVocabulary removes a vocabulary; its tags go with it.
func (db *DB) DeleteVocabulary(ctx context.Context, id string) error {
	query, args, err := sq.Delete("vocabularies").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("store: build vocabulary delete: %w", err)
	}
	res, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("store: delete vocabulary: %w", err)
	}
	return expectOne(res, "vocabulary", id)
}

func expectOne(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %q: %w", kind, id, apperr.ErrNotFound)
	}
	return nil
}
