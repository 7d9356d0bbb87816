package tagservice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/starford/taxon/internal/apperr"
	"github.com/starford/taxon/internal/models"
	"github.com/starford/taxon/internal/store"
	"github.com/starford/taxon/internal/tagconv"
)

// TagQuery selects tags for ListTags. VocabularyID and VocabularyName both
// accept an id or a name; with neither set free tags are listed.
type TagQuery struct {
	VocabularyID   string
	VocabularyName string
	Query          string
	Limit          int
	Offset         int
}

func (q TagQuery) vocabulary() string {
	if q.VocabularyID != "" {
		return q.VocabularyID
	}
	return q.VocabularyName
}

// lookupVocabulary returns the vocabulary idOrName names; "" means none.
func (s *Service) lookupVocabulary(ctx context.Context, idOrName string) (*models.Vocabulary, error) {
	if idOrName == "" {
		return nil, nil
	}
	return s.db.GetVocabulary(ctx, idOrName)
}

// vocabularyID resolves idOrName to a vocabulary id; "" means no vocabulary.
func (s *Service) vocabularyID(ctx context.Context, idOrName string) (*string, error) {
	v, err := s.lookupVocabulary(ctx, idOrName)
	if err != nil || v == nil {
		return nil, err
	}
	return &v.ID, nil
}

// vocabularyName names the vocabulary of a tag for change events.
func (s *Service) vocabularyName(ctx context.Context, vid *string) string {
	if vid == nil {
		return ""
	}
	v, err := s.db.GetVocabulary(ctx, *vid)
	if err != nil {
		return ""
	}
	return v.Name
}

// ListTags lists the tags of a vocabulary, or free tags. An unknown
// vocabulary yields apperr.ErrNotFound.
func (s *Service) ListTags(ctx context.Context, q TagQuery) ([]models.Tag, error) {
	vid, err := s.vocabularyID(ctx, q.vocabulary())
	if err != nil {
		return nil, err
	}
	return s.db.ListTags(ctx, store.TagFilter{
		VocabularyID: vid,
		Query:        q.Query,
		Limit:        q.Limit,
		Offset:       q.Offset,
	})
}

// GetTag returns a tag by id, or by name within vocab. Names are matched in
// the NFC form they are stored in.
func (s *Service) GetTag(ctx context.Context, idOrName, vocab string) (*models.Tag, error) {
	idOrName = norm.NFC.String(strings.TrimSpace(idOrName))
	if idOrName == "" {
		return nil, invalidf("id", "Missing value")
	}
	vid, err := s.vocabularyID(ctx, vocab)
	if err != nil {
		return nil, err
	}
	return s.db.GetTag(ctx, idOrName, vid)
}

// CreateTag creates a tag in vocab, or a free tag when vocab is empty.
func (s *Service) CreateTag(ctx context.Context, name, vocab string) (*models.Tag, error) {
	names := tagconv.SplitTagString(name)
	if len(names) != 1 {
		return nil, invalidf("name", "Missing value")
	}
	name = names[0]
	if err := tagconv.ValidateTagName(name); err != nil {
		return nil, invalid("name", err)
	}
	v, err := s.lookupVocabulary(ctx, vocab)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, invalidf("vocabulary_id", "Tag vocabulary %q does not exist", vocab)
	}
	if err != nil {
		return nil, err
	}
	var vid *string
	var vocabName string
	if v != nil {
		vid, vocabName = &v.ID, v.Name
	}
	ref, err := s.db.FindOrCreateTag(ctx, name, vid)
	if err != nil {
		return nil, err
	}
	if !ref.Created {
		return nil, fmt.Errorf("tag %q: %w", name, apperr.ErrAlreadyExists)
	}
	s.emit(TagCreated, ref.Name, vocabName)
	return &models.Tag{ID: ref.ID, Name: ref.Name, VocabularyID: vid}, nil
}

// DeleteTag removes a tag by id, or by name within vocab.
func (s *Service) DeleteTag(ctx context.Context, idOrName, vocab string) error {
	t, err := s.GetTag(ctx, idOrName, vocab)
	if err != nil {
		return err
	}
	vocabName := s.vocabularyName(ctx, t.VocabularyID)
	if err := s.db.DeleteTag(ctx, t.ID); err != nil {
		return err
	}
	s.emit(TagDeleted, t.Name, vocabName)
	return nil
}

// PreviewTags splits raw the way a vocabulary field is converted and
// validates each name, without writing anything. When vocab is set it must
// exist and its id is attached to every entry.
func (s *Service) PreviewTags(ctx context.Context, vocab, raw string) ([]models.TagEntry, error) {
	var vid *string
	if vocab != "" {
		id, err := s.db.ResolveVocabulary(ctx, vocab)
		if err != nil {
			return nil, err
		}
		vid = &id
	}
	names, err := normalizeTagNames([]string{raw})
	if err != nil {
		return nil, err
	}
	entries := make([]models.TagEntry, len(names))
	for i, n := range names {
		entries[i] = models.TagEntry{Name: n, VocabularyID: vid}
	}
	return entries, nil
}
