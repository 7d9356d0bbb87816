// Package seed loads vocabularies and their tags from a YAML file into the
// store. Seeding is additive: it never renames or deletes anything.
package seed

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// File is the seed file layout.
//
//	vocabularies:
//	  - name: genres
//	    tags: [rock, jazz]
type File struct {
	Vocabularies []Vocabulary `yaml:"vocabularies"`
}

// Vocabulary is one seeded vocabulary.
type Vocabulary struct {
	Name string   `yaml:"name"`
	Tags []string `yaml:"tags"`
}

// Validate checks the vocabulary entry.
func (v Vocabulary) Validate() error {
	return validation.ValidateStruct(&v,
		validation.Field(&v.Name, validation.Required),
	)
}

// Validate checks every entry and rejects repeated vocabulary names.
func (f *File) Validate() error {
	seen := make(map[string]struct{}, len(f.Vocabularies))
	for i, v := range f.Vocabularies {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("vocabularies[%d]: %w", i, err)
		}
		if _, dup := seen[v.Name]; dup {
			return fmt.Errorf("vocabularies[%d]: duplicate name %q", i, v.Name)
		}
		seen[v.Name] = struct{}{}
	}
	return nil
}

// Parse decodes and validates a seed file. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("invalid seed: %w", err)
	}
	return &f, nil
}

// Applier creates missing vocabularies and tags.
type Applier interface {
	EnsureVocabulary(ctx context.Context, name string, tags []string) (int, error)
}

// Result summarises one Apply call.
type Result struct {
	Vocabularies int
	TagsCreated  int
	Unchanged    bool
}

// Loader applies one seed file. It remembers the checksum of the last
// applied content and skips identical content.
type Loader struct {
	svc     Applier
	path    string
	logger  *slog.Logger
	lastSum string
}

// NewLoader creates a Loader for the file at path.
func NewLoader(svc Applier, path string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{svc: svc, path: path, logger: logger}
}

// Path returns the seed file path.
func (l *Loader) Path() string {
	return l.path
}

// Apply reads the seed file and ensures every vocabulary and tag in it
// exists. A vocabulary that fails is logged and skipped; the first such
// error is returned after the rest were applied.
func (l *Loader) Apply(ctx context.Context) (Result, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return Result{}, fmt.Errorf("read seed %s: %w", l.path, err)
	}
	sum := checksum(data)
	if sum == l.lastSum {
		return Result{Unchanged: true}, nil
	}

	f, err := Parse(data)
	if err != nil {
		return Result{}, err
	}

	var res Result
	var firstErr error
	for _, v := range f.Vocabularies {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		n, err := l.svc.EnsureVocabulary(ctx, v.Name, v.Tags)
		if err != nil {
			l.logger.Warn("seed: vocabulary failed",
				slog.String("vocabulary", v.Name),
				slog.String("error", err.Error()))
			if firstErr == nil {
				firstErr = fmt.Errorf("seed vocabulary %q: %w", v.Name, err)
			}
			continue
		}
		res.Vocabularies++
		res.TagsCreated += n
	}
	if firstErr == nil {
		l.lastSum = sum
	}
	l.logger.Info("seed: applied",
		slog.String("path", l.path),
		slog.Int("vocabularies", res.Vocabularies),
		slog.Int("tags_created", res.TagsCreated))
	return res, firstErr
}

func checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
