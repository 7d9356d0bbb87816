package store

import (
	"context"

	"github.com/starford/taxon/internal/models"
)

// Repository defines the persistence operations the rest of the application
// depends on. Consumers should depend on this interface rather than the
// concrete *DB type.
type Repository interface {
	CreateVocabulary(ctx context.Context, name string, tags []string) (*models.Vocabulary, error)
	GetVocabulary(ctx context.Context, idOrName string) (*models.Vocabulary, error)
	ResolveVocabulary(ctx context.Context, name string) (string, error)
	ListVocabularies(ctx context.Context) ([]models.Vocabulary, error)
	UpdateVocabulary(ctx context.Context, id, name string, tags []string) error
	DeleteVocabulary(ctx context.Context, id string) error

	FindOrCreateTag(ctx context.Context, name string, vocabularyID *string) (models.TagRef, error)
	GetTag(ctx context.Context, idOrName string, vocabularyID *string) (*models.Tag, error)
	ListTags(ctx context.Context, f TagFilter) ([]models.Tag, error)
	DeleteTag(ctx context.Context, id string) error

	CreateDataset(ctx context.Context, d *models.Dataset) error
	GetDataset(ctx context.Context, idOrName string) (*models.Dataset, error)
	ListDatasets(ctx context.Context) ([]string, error)
	DeleteDataset(ctx context.Context, idOrName string) error

	Ping(ctx context.Context) error
	Close() error
}

// Verify *DB satisfies Repository at compile time.
var _ Repository = (*DB)(nil)
