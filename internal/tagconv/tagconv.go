// Package tagconv converts between free-text tag strings, the tag list a
// form carries while it is validated, and per-vocabulary name lists.
package tagconv

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"golang.org/x/text/unicode/norm"

	"github.com/starford/taxon/internal/apperr"
	"github.com/starford/taxon/internal/formdata"
	"github.com/starford/taxon/internal/models"
)

// Tag name limits.
const (
	MinTagLength = 2
	MaxTagLength = 100
)

var tagNameRe = regexp.MustCompile(`^[\p{L}\p{N}_ .\-]+$`)

// Store is the part of the persistence layer the converters consult.
type Store interface {
	ResolveVocabulary(ctx context.Context, name string) (string, error)
	FindOrCreateTag(ctx context.Context, name string, vocabularyID *string) (models.TagRef, error)
}

// Normalizer builds converters bound to a store.
type Normalizer struct {
	store  Store
	logger *slog.Logger
}

// New creates a Normalizer. A nil logger falls back to slog.Default.
func New(store Store, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{store: store, logger: logger}
}

// ValidateTagName checks a single tag name.
func ValidateTagName(name string) error {
	return validation.Validate(name,
		validation.Required,
		validation.RuneLength(MinTagLength, MaxTagLength),
		validation.Match(tagNameRe).Error("must contain only alphanumeric characters, spaces and symbols: -_."),
	)
}

// SplitTagString splits s on commas, trims and NFC-normalises each piece,
// drops empty pieces and removes duplicates keeping the first occurrence.
func SplitTagString(s string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, piece := range strings.Split(s, ",") {
		name := norm.NFC.String(strings.TrimSpace(piece))
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// tagNames accepts either a comma-separated string or an already split
// list of strings.
func tagNames(v any) ([]string, bool) {
	switch t := v.(type) {
	case nil:
		return nil, true
	case string:
		return SplitTagString(t), true
	case []string:
		return SplitTagString(strings.Join(t, ",")), true
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			parts = append(parts, s)
		}
		return SplitTagString(strings.Join(parts, ",")), true
	default:
		return nil, false
	}
}

// resolve looks up vocab and records a validation error at key when it
// cannot be resolved.
func (n *Normalizer) resolve(ctx context.Context, vocab string, key formdata.Key, errs formdata.Errors) (string, bool) {
	id, err := n.store.ResolveVocabulary(ctx, vocab)
	if err == nil {
		return id, true
	}
	if errors.Is(err, apperr.ErrNotFound) {
		errs.Addf(key, "Tag vocabulary %q does not exist", vocab)
	} else {
		n.logger.Error("resolve vocabulary failed",
			slog.String("vocabulary", vocab),
			slog.String("error", err.Error()))
		errs.Addf(key, "Tag vocabulary %q could not be loaded", vocab)
	}
	return "", false
}

// ConvertToTags returns a converter that consumes the tag string at its key
// and appends one tag object per name, scoped to vocab, after the objects
// already in the form's tag list. Each name is found or created in the
// store. The input key is removed once it has been converted; it is kept
// when the vocabulary does not resolve so the error can be reported
// against it.
func (n *Normalizer) ConvertToTags(vocab string) formdata.Func {
	return func(ctx context.Context, key formdata.Key, data formdata.Data, errs formdata.Errors) {
		names, ok := tagNames(data[key])
		if !ok {
			errs.Add(key, "Tags must be a string or a list of strings")
			return
		}
		if len(names) == 0 {
			delete(data, key)
			return
		}

		vid, ok := n.resolve(ctx, vocab, key, errs)
		if !ok {
			return
		}

		next := data.NextIndex(formdata.Tags)
		for _, name := range names {
			if err := ValidateTagName(name); err != nil {
				errs.Addf(key, "Tag %q: %v", name, err)
				continue
			}
			ref, err := n.store.FindOrCreateTag(ctx, name, &vid)
			if err != nil {
				n.logger.Error("find or create tag failed",
					slog.String("tag", name),
					slog.String("vocabulary", vocab),
					slog.String("error", err.Error()))
				errs.Addf(key, "Tag %q could not be stored", name)
				continue
			}
			if ref.Created {
				n.logger.Debug("tag created", slog.String("tag", ref.Name), slog.String("vocabulary", vocab))
			}
			data[formdata.Path(formdata.Tags, next, "name")] = ref.Name
			data[formdata.Path(formdata.Tags, next, "vocabulary_id")] = vid
			next++
		}
		delete(data, key)
	}
}

// ConvertFromTags returns a converter that writes, at its key, the names of
// every tag in the form's tag list that belongs to vocab. Tags of other
// vocabularies and free tags are left out.
func (n *Normalizer) ConvertFromTags(vocab string) formdata.Func {
	return func(ctx context.Context, key formdata.Key, data formdata.Data, errs formdata.Errors) {
		vid, ok := n.resolve(ctx, vocab, key, errs)
		if !ok {
			return
		}
		names := []string{}
		for _, i := range data.Indexes(formdata.Tags) {
			v, _ := data.Field(formdata.Tags, i, "vocabulary_id")
			id := formdata.OptionalString(v)
			if id == nil || *id != vid {
				continue
			}
			if name := entryName(data, i); name != "" {
				names = append(names, name)
			}
		}
		data[key] = names
	}
}

func entryName(data formdata.Data, i int) string {
	if v, ok := data.Field(formdata.Tags, i, "display_name"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	v, _ := data.Field(formdata.Tags, i, "name")
	s, _ := v.(string)
	return s
}

// FreeTagsOnly removes every object of the form's tag list that belongs to
// a vocabulary, leaving only free tags. Applying it again changes nothing.
func FreeTagsOnly(_ context.Context, _ formdata.Key, data formdata.Data, _ formdata.Errors) {
	for _, i := range data.Indexes(formdata.Tags) {
		v, _ := data.Field(formdata.Tags, i, "vocabulary_id")
		if formdata.OptionalString(v) != nil {
			data.DeleteIndex(formdata.Tags, i)
		}
	}
}

var _ formdata.Func = FreeTagsOnly
