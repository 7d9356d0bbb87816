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

// CreateDataset inserts d and links it to d.Tags, which must already carry
// stored ids. ID and CreatedAt are filled in.
func (db *DB) CreateDataset(ctx context.Context, d *models.Dataset) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	d.ID = uuid.NewString()
	d.CreatedAt = time.Now().UTC()
	query, args, err := sq.Insert("datasets").
		Columns("id", "name", "title", "created_at").
		Values(d.ID, d.Name, d.Title, d.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("store: build dataset insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("dataset %q: %w", d.Name, apperr.ErrAlreadyExists)
		}
		return fmt.Errorf("store: insert dataset: %w", err)
	}

	if len(d.Tags) > 0 {
		ins := sq.Insert("dataset_tags").Options("OR IGNORE").Columns("dataset_id", "tag_id", "position")
		for i, t := range d.Tags {
			ins = ins.Values(d.ID, t.ID, i)
		}
		query, args, err := ins.ToSql()
		if err != nil {
			return fmt.Errorf("store: build dataset tag insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			// A tag removed since it was looked up.
			if isForeignKeyViolation(err) {
				return fmt.Errorf("dataset %q tags: %w", d.Name, apperr.ErrConflict)
			}
			return fmt.Errorf("store: link dataset tags: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// GetDataset looks a dataset up by id or name, with its tags in the order
// they were attached.
func (db *DB) GetDataset(ctx context.Context, idOrName string) (*models.Dataset, error) {
	query, args, err := sq.Select("id", "name", "title", "created_at").
		From("datasets").
		Where(sq.Or{sq.Eq{"id": idOrName}, sq.Eq{"name": idOrName}}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build dataset select: %w", err)
	}
	var d models.Dataset
	err = db.conn.QueryRowContext(ctx, query, args...).Scan(&d.ID, &d.Name, &d.Title, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("dataset %q: %w", idOrName, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get dataset: %w", err)
	}

	query, args, err = sq.Select("t.id", "t.name", "t.vocabulary_id").
		From("tags t").
		Join("dataset_tags dt ON dt.tag_id = t.id").
		Where(sq.Eq{"dt.dataset_id": d.ID}).
		OrderBy("dt.position").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build dataset tags select: %w", err)
	}
	d.Tags, err = queryTags(ctx, db.conn, query, args...)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ListDatasets returns all dataset names in order.
func (db *DB) ListDatasets(ctx context.Context) ([]string, error) {
	query, args, err := sq.Select("name").From("datasets").OrderBy("name").ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build dataset list: %w", err)
	}
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list datasets: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// DeleteDataset removes a dataset by id or name.
func (db *DB) DeleteDataset(ctx context.Context, idOrName string) error {
	query, args, err := sq.Delete("datasets").
		Where(sq.Or{sq.Eq{"id": idOrName}, sq.Eq{"name": idOrName}}).
		ToSql()
	if err != nil {
		return fmt.Errorf("store: build dataset delete: %w", err)
	}
	res, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("store: delete dataset: %w", err)
	}
	return expectOne(res, "dataset", idOrName)
}
