// Package tagservice implements the vocabulary, tag and dataset operations
// shared by the HTTP actions, the MCP tools and the seed loader.
package tagservice

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/taxon/internal/formdata"
	"github.com/starford/taxon/internal/models"
	"github.com/starford/taxon/internal/store"
	"github.com/starford/taxon/internal/tagconv"
)

// Change event kinds passed to an EventFunc.
const (
	VocabularyCreated = "vocabulary.created"
	VocabularyUpdated = "vocabulary.updated"
	VocabularyDeleted = "vocabulary.deleted"
	TagCreated        = "tag.created"
	TagDeleted        = "tag.deleted"
	DatasetCreated    = "dataset.created"
	DatasetDeleted    = "dataset.deleted"
)

// Name limits for vocabularies and datasets.
const (
	MinNameLength = 2
	MaxNameLength = 100
)

var datasetNameRe = regexp.MustCompile(`^[a-z0-9_\-]+$`)

// EventFunc is called after a successful write. The change's Vocabulary is
// set for vocabulary events and for tags that belong to a vocabulary.
type EventFunc func(models.Change)

// Service coordinates the store and the tag normalizer.
type Service struct {
	db        store.Repository
	norm      *tagconv.Normalizer
	fields    map[string]string
	notify    EventFunc
	logger    *slog.Logger
	cacheSize int
}

// Option configures a Service.
type Option func(*Service)

// WithVocabularyFields maps dataset form fields to the vocabulary whose tags
// they carry. Reserved dataset fields are ignored.
func WithVocabularyFields(fields map[string]string) Option {
	return func(s *Service) {
		for f, v := range fields {
			if slices.Contains(ReservedFields, f) {
				continue
			}
			s.fields[f] = v
		}
	}
}

// WithEvents registers a change callback.
func WithEvents(fn EventFunc) Option {
	return func(s *Service) {
		s.notify = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithVocabularyCache keeps up to size vocabulary name lookups in memory.
// A size of 0 disables the cache.
func WithVocabularyCache(size int) Option {
	return func(s *Service) {
		s.cacheSize = size
	}
}

// New creates a Service over db.
func New(db store.Repository, opts ...Option) *Service {
	s := &Service{
		db:     db,
		fields: make(map[string]string),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cacheSize > 0 {
		c, err := newVocabCache(db, s.cacheSize)
		if err != nil {
			s.logger.Warn("vocabulary cache disabled", slog.String("error", err.Error()))
		} else {
			s.db = c
		}
	}
	s.norm = tagconv.New(s.db, s.logger)
	return s
}

// Normalizer returns the normalizer bound to the service's store.
func (s *Service) Normalizer() *tagconv.Normalizer {
	return s.norm
}

// VocabularyFields returns a copy of the dataset field to vocabulary map.
func (s *Service) VocabularyFields() map[string]string {
	out := make(map[string]string, len(s.fields))
	for f, v := range s.fields {
		out[f] = v
	}
	return out
}

// Ping checks the store.
func (s *Service) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Service) emit(kind, name, vocabulary string) {
	if s.notify != nil {
		s.notify(models.Change{Kind: kind, Name: name, Vocabulary: vocabulary})
	}
}

func validateName(name string) error {
	return validation.Validate(name,
		validation.Required,
		validation.RuneLength(MinNameLength, MaxNameLength),
	)
}

// invalid wraps a rule failure on field as a validation error.
func invalid(field string, err error) error {
	return &formdata.ValidationError{Key: formdata.Scalar(field), Message: err.Error()}
}

// invalidf builds a validation error on field from a format string.
func invalidf(field, format string, args ...any) error {
	return &formdata.ValidationError{Key: formdata.Scalar(field), Message: fmt.Sprintf(format, args...)}
}
