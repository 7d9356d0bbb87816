package tagservice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/starford/taxon/internal/apperr"
	"github.com/starford/taxon/internal/formdata"
	"github.com/starford/taxon/internal/models"
	"github.com/starford/taxon/internal/tagconv"
)

// ListVocabularies returns every vocabulary with its tags.
func (s *Service) ListVocabularies(ctx context.Context) ([]models.Vocabulary, error) {
	return s.db.ListVocabularies(ctx)
}

// GetVocabulary returns a vocabulary by id or name.
func (s *Service) GetVocabulary(ctx context.Context, idOrName string) (*models.Vocabulary, error) {
	if idOrName == "" {
		return nil, invalidf("id", "Missing value")
	}
	return s.db.GetVocabulary(ctx, idOrName)
}

// CreateVocabulary creates a vocabulary with an optional initial tag set.
func (s *Service) CreateVocabulary(ctx context.Context, name string, tags []string) (*models.Vocabulary, error) {
	if err := validateName(name); err != nil {
		return nil, invalid("name", err)
	}
	names, err := normalizeTagNames(tags)
	if err != nil {
		return nil, err
	}
	v, err := s.db.CreateVocabulary(ctx, name, names)
	if err != nil {
		return nil, err
	}
	s.emit(VocabularyCreated, v.Name, v.Name)
	return v, nil
}

// UpdateVocabulary renames a vocabulary when name is non-empty and, when
// tags is non-nil, replaces its tag set: missing tags are created and tags
// not listed are deleted. Both are validated before anything is written.
func (s *Service) UpdateVocabulary(ctx context.Context, idOrName, name string, tags []string) (*models.Vocabulary, error) {
	v, err := s.GetVocabulary(ctx, idOrName)
	if err != nil {
		return nil, err
	}
	if name == v.Name {
		name = ""
	}
	if name != "" {
		if err := validateName(name); err != nil {
			return nil, invalid("name", err)
		}
	}
	var names []string
	if tags != nil {
		if names, err = normalizeTagNames(tags); err != nil {
			return nil, err
		}
		if names == nil {
			names = []string{}
		}
	}
	if err := s.db.UpdateVocabulary(ctx, v.ID, name, names); err != nil {
		return nil, err
	}
	updated, err := s.db.GetVocabulary(ctx, v.ID)
	if err != nil {
		return nil, err
	}
	s.emit(VocabularyUpdated, updated.Name, updated.Name)
	return updated, nil
}

// DeleteVocabulary removes a vocabulary and its tags.
func (s *Service) DeleteVocabulary(ctx context.Context, idOrName string) error {
	v, err := s.GetVocabulary(ctx, idOrName)
	if err != nil {
		return err
	}
	if err := s.db.DeleteVocabulary(ctx, v.ID); err != nil {
		return err
	}
	s.emit(VocabularyDeleted, v.Name, v.Name)
	return nil
}

// EnsureVocabulary creates the vocabulary when missing and adds any of tags
// it does not have yet. It returns the number of tags created.
func (s *Service) EnsureVocabulary(ctx context.Context, name string, tags []string) (int, error) {
	names, err := normalizeTagNames(tags)
	if err != nil {
		return 0, fmt.Errorf("vocabulary %q: %w", name, err)
	}
	id, err := s.db.ResolveVocabulary(ctx, name)
	if errors.Is(err, apperr.ErrNotFound) {
		if _, err := s.CreateVocabulary(ctx, name, names); err != nil {
			return 0, err
		}
		return len(names), nil
	}
	if err != nil {
		return 0, err
	}
	created := 0
	for _, n := range names {
		ref, err := s.db.FindOrCreateTag(ctx, n, &id)
		if err != nil {
			return created, err
		}
		if ref.Created {
			created++
		}
	}
	if created > 0 {
		s.emit(VocabularyUpdated, name, name)
	}
	return created, nil
}

// normalizeTagNames cleans and validates tag names given as a list. Errors
// are reported against tags.N.name.
func normalizeTagNames(tags []string) ([]string, error) {
	names := tagconv.SplitTagString(strings.Join(tags, ","))
	errs := formdata.NewErrors()
	for i, n := range names {
		if err := tagconv.ValidateTagName(n); err != nil {
			errs.Addf(formdata.Path(formdata.Tags, i, "name"), "Tag %q: %v", n, err)
		}
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	return names, nil
}
