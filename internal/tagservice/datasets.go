package tagservice

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gosimple/slug"

	"github.com/starford/taxon/internal/formdata"
	"github.com/starford/taxon/internal/models"
	"github.com/starford/taxon/internal/tagconv"
)

// ReservedFields are dataset fields that cannot carry a vocabulary.
var ReservedFields = []string{"id", "name", "title", formdata.Tags, "metadata_created"}

func requiredDatasetName(_ context.Context, key formdata.Key, data formdata.Data, errs formdata.Errors) {
	name, _ := data.String(key)
	err := validation.Validate(name,
		validation.Required,
		validation.RuneLength(MinNameLength, MaxNameLength),
		validation.Match(datasetNameRe).Error("must be purely lowercase alphanumeric (ascii) characters and these symbols: -_"),
	)
	if err != nil {
		errs.Add(key, err.Error())
	}
}

func optionalString(_ context.Context, key formdata.Key, data formdata.Data, errs formdata.Errors) {
	if v, ok := data[key]; ok && v != nil {
		if _, ok := v.(string); !ok {
			errs.Add(key, "must be a string")
		}
	}
}

// tagList rejects a tags value that did not flatten into objects. An empty
// list or null means no free tags.
func tagList(_ context.Context, key formdata.Key, data formdata.Data, errs formdata.Errors) {
	v, ok := data[key]
	if !ok {
		return
	}
	switch l := v.(type) {
	case nil:
		delete(data, key)
		return
	case []any:
		if len(l) == 0 {
			delete(data, key)
			return
		}
	case []map[string]any:
		if len(l) == 0 {
			delete(data, key)
			return
		}
	}
	errs.Add(key, "Tags must be a list of objects with a name")
}

func freeTagName(_ context.Context, key formdata.Key, data formdata.Data, errs formdata.Errors) {
	name, ok := data.String(key)
	if !ok {
		errs.Add(key, "Missing value")
		return
	}
	names := tagconv.SplitTagString(name)
	if len(names) != 1 {
		errs.Add(key, "Missing value")
		return
	}
	if err := tagconv.ValidateTagName(names[0]); err != nil {
		errs.Add(key, err.Error())
		return
	}
	data[key] = names[0]
}

// createSchema validates a dataset form and converts every configured
// vocabulary field into tags.
func (s *Service) createSchema() formdata.Schema {
	schema := formdata.Schema{
		"name":        {requiredDatasetName},
		"title":       {optionalString},
		formdata.Tags: {tagList},
		"tags.*.name": {freeTagName},
	}
	for field, vocab := range s.fields {
		schema[field] = []formdata.Func{s.norm.ConvertToTags(vocab)}
	}
	return schema
}

// CreateDataset validates form, stores the dataset with its free and
// vocabulary tags and returns it as shown by GetDataset. A missing name is
// derived from the title.
func (s *Service) CreateDataset(ctx context.Context, form map[string]any) (map[string]any, error) {
	form = nameFromTitle(form)
	out, errs := formdata.Validate(ctx, s.createSchema(), formdata.Flatten(form))
	if err := errs.Err(); err != nil {
		return nil, fmt.Errorf("create dataset: %w", err)
	}

	name, _ := out.String(formdata.Scalar("name"))
	title, _ := out.String(formdata.Scalar("title"))
	d := &models.Dataset{Name: name, Title: title}

	seen := make(map[string]struct{})
	for _, e := range formdata.TagEntries(out) {
		ref, err := s.db.FindOrCreateTag(ctx, e.Name, e.VocabularyID)
		if err != nil {
			return nil, fmt.Errorf("create dataset: %w", err)
		}
		if _, dup := seen[ref.ID]; dup {
			continue
		}
		seen[ref.ID] = struct{}{}
		d.Tags = append(d.Tags, models.Tag{ID: ref.ID, Name: ref.Name, VocabularyID: e.VocabularyID})
	}

	if err := s.db.CreateDataset(ctx, d); err != nil {
		return nil, err
	}
	s.emit(DatasetCreated, d.Name, "")
	return s.GetDataset(ctx, d.ID)
}

func nameFromTitle(form map[string]any) map[string]any {
	if name, _ := form["name"].(string); strings.TrimSpace(name) != "" {
		return form
	}
	title, _ := form["title"].(string)
	if strings.TrimSpace(title) == "" {
		return form
	}
	out := maps.Clone(form)
	out["name"] = slug.Make(title)
	return out
}

// GetDataset returns a dataset as a form: tags holds only free tags and each
// configured vocabulary field lists the names of that vocabulary's tags.
func (s *Service) GetDataset(ctx context.Context, idOrName string) (map[string]any, error) {
	if idOrName == "" {
		return nil, invalidf("id", "Missing value")
	}
	d, err := s.db.GetDataset(ctx, idOrName)
	if err != nil {
		return nil, err
	}

	entries := make([]models.TagEntry, len(d.Tags))
	for i, t := range d.Tags {
		entries[i] = models.TagEntry{Name: t.Name, VocabularyID: t.VocabularyID}
	}
	data := formdata.FlattenTags(entries)
	for i, t := range d.Tags {
		data[formdata.Path(formdata.Tags, i, "id")] = t.ID
	}
	data[formdata.Scalar("id")] = d.ID
	data[formdata.Scalar("name")] = d.Name
	data[formdata.Scalar("title")] = d.Title
	data[formdata.Scalar("metadata_created")] = d.CreatedAt

	// Vocabulary fields are read before vocabulary tags are dropped.
	fromTags := formdata.Schema{}
	for field, vocab := range s.fields {
		fromTags[field] = []formdata.Func{s.norm.ConvertFromTags(vocab)}
	}
	data, errs := formdata.Validate(ctx, fromTags, data)
	if errs.Len() > 0 {
		s.logger.Warn("dataset vocabulary fields incomplete",
			slog.String("dataset", d.Name),
			slog.String("error", errs.Err().Error()))
	}
	data, _ = formdata.Validate(ctx, formdata.Schema{formdata.Tags: {tagconv.FreeTagsOnly}}, data)

	form := formdata.Unflatten(data)
	if _, ok := form[formdata.Tags]; !ok {
		form[formdata.Tags] = []map[string]any{}
	}
	return form, nil
}

// ListDatasets returns dataset names.
func (s *Service) ListDatasets(ctx context.Context) ([]string, error) {
	return s.db.ListDatasets(ctx)
}

// DeleteDataset removes a dataset by id or name.
func (s *Service) DeleteDataset(ctx context.Context, idOrName string) error {
	if idOrName == "" {
		return invalidf("id", "Missing value")
	}
	d, err := s.db.GetDataset(ctx, idOrName)
	if err != nil {
		return err
	}
	if err := s.db.DeleteDataset(ctx, d.ID); err != nil {
		return err
	}
	s.emit(DatasetDeleted, d.Name, "")
	return nil
}
