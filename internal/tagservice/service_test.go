package tagservice

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/taxon/internal/apperr"
	"github.com/starford/taxon/internal/formdata"
	"github.com/starford/taxon/internal/models"
	"github.com/starford/taxon/internal/testutil"
)

type recorded struct{ kind, name, vocabulary string }

func newTestService(t *testing.T) (*Service, *[]recorded) {
	t.Helper()
	var events []recorded
	svc := New(testutil.TestDB(t),
		WithLogger(testutil.Logger()),
		WithVocabularyFields(map[string]string{"genre": "genres", "name": "ignored"}),
		WithEvents(func(c models.Change) { events = append(events, recorded{c.Kind, c.Name, c.Vocabulary}) }),
	)
	return svc, &events
}

func TestWithVocabularyFields_SkipsReserved(t *testing.T) {
	svc, _ := newTestService(t)
	if diff := cmp.Diff(map[string]string{"genre": "genres"}, svc.VocabularyFields()); diff != "" {
		t.Errorf("fields mismatch:\n%s", diff)
	}
}

func TestCreateVocabulary(t *testing.T) {
	svc, events := newTestService(t)
	ctx := context.Background()

	v, err := svc.CreateVocabulary(ctx, "genres", []string{"rock", " jazz ", "rock"})
	if err != nil {
		t.Fatalf("CreateVocabulary: %v", err)
	}
	if len(v.Tags) != 2 {
		t.Errorf("tags = %+v, want 2", v.Tags)
	}
	if diff := cmp.Diff([]recorded{{VocabularyCreated, "genres", "genres"}}, *events, cmp.AllowUnexported(recorded{})); diff != "" {
		t.Errorf("events mismatch:\n%s", diff)
	}

	_, err = svc.CreateVocabulary(ctx, "genres", nil)
	if !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("duplicate err = %v, want ErrAlreadyExists", err)
	}
}

func TestCreateVocabulary_Invalid(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateVocabulary(ctx, "x", nil)
	if !errors.Is(err, apperr.ErrInvalid) {
		t.Fatalf("short name err = %v, want ErrInvalid", err)
	}
	if _, ok := formdata.FieldMessages(err)["name"]; !ok {
		t.Errorf("fields = %v, want name", formdata.FieldMessages(err))
	}

	_, err = svc.CreateVocabulary(ctx, "valid", []string{"ok", "bad;tag"})
	if _, ok := formdata.FieldMessages(err)["tags.1.name"]; !ok {
		t.Errorf("fields = %v, want tags.1.name", formdata.FieldMessages(err))
	}
}

func TestUpdateVocabulary_ReplacesTags(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.CreateVocabulary(ctx, "genres", []string{"rock", "jazz"}); err != nil {
		t.Fatal(err)
	}

	v, err := svc.UpdateVocabulary(ctx, "genres", "styles", []string{"jazz", "blues"})
	if err != nil {
		t.Fatalf("UpdateVocabulary: %v", err)
	}
	var names []string
	for _, tag := range v.Tags {
		names = append(names, tag.Name)
	}
	if v.Name != "styles" {
		t.Errorf("name = %q, want styles", v.Name)
	}
	if diff := cmp.Diff([]string{"blues", "jazz"}, names); diff != "" {
		t.Errorf("tags mismatch:\n%s", diff)
	}
}

func TestUpdateVocabulary_InvalidTagsKeepName(t *testing.T) {
	svc, events := newTestService(t)
	ctx := context.Background()
	if _, err := svc.CreateVocabulary(ctx, "genres", []string{"rock"}); err != nil {
		t.Fatal(err)
	}
	before := len(*events)

	_, err := svc.UpdateVocabulary(ctx, "genres", "moods", []string{"x"})
	if _, ok := formdata.FieldMessages(err)["tags.0.name"]; !ok {
		t.Fatalf("err = %v, want tags.0.name error", err)
	}
	if _, err := svc.GetVocabulary(ctx, "moods"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("vocabulary renamed despite invalid tags: %v", err)
	}
	v, err := svc.GetVocabulary(ctx, "genres")
	if err != nil {
		t.Fatalf("GetVocabulary: %v", err)
	}
	if len(v.Tags) != 1 || v.Tags[0].Name != "rock" {
		t.Errorf("tags = %+v, want [rock]", v.Tags)
	}
	if len(*events) != before {
		t.Errorf("failed update emitted %v", (*events)[before:])
	}
}

func TestEnsureVocabulary(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	n, err := svc.EnsureVocabulary(ctx, "genres", []string{"rock"})
	if err != nil || n != 1 {
		t.Fatalf("first ensure = %d, %v", n, err)
	}
	n, err = svc.EnsureVocabulary(ctx, "genres", []string{"rock", "jazz"})
	if err != nil || n != 1 {
		t.Fatalf("second ensure = %d, %v, want 1 new tag", n, err)
	}
	n, _ = svc.EnsureVocabulary(ctx, "genres", []string{"rock", "jazz"})
	if n != 0 {
		t.Errorf("third ensure created %d tags, want 0", n)
	}
}

func TestListTags(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	v, _ := svc.CreateVocabulary(ctx, "test-vocab", []string{"vocab-tag"})
	if _, err := svc.CreateTag(ctx, "free-tag", ""); err != nil {
		t.Fatal(err)
	}

	byName, err := svc.ListTags(ctx, TagQuery{VocabularyName: "test-vocab"})
	if err != nil {
		t.Fatalf("ListTags: %v", err)
	}
	if len(byName) != 1 || byName[0].Name != "vocab-tag" {
		t.Errorf("by name = %+v", byName)
	}
	byID, _ := svc.ListTags(ctx, TagQuery{VocabularyID: v.ID})
	if len(byID) != 1 {
		t.Errorf("by id = %+v", byID)
	}
	free, _ := svc.ListTags(ctx, TagQuery{})
	if len(free) != 1 || free[0].Name != "free-tag" {
		t.Errorf("free = %+v", free)
	}

	_, err = svc.ListTags(ctx, TagQuery{VocabularyName: "invalid-vocab-name"})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown vocabulary err = %v, want ErrNotFound", err)
	}
}

func TestCreateTag(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	v, _ := svc.CreateVocabulary(ctx, "genres", nil)

	tag, err := svc.CreateTag(ctx, "jazz", "genres")
	if err != nil {
		t.Fatalf("CreateTag: %v", err)
	}
	if tag.VocabularyID == nil || *tag.VocabularyID != v.ID {
		t.Errorf("vocabulary id = %v, want %s", tag.VocabularyID, v.ID)
	}
	if _, err := svc.CreateTag(ctx, "jazz", "genres"); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("duplicate err = %v", err)
	}
	if _, err := svc.CreateTag(ctx, "jazz", "missing"); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("unknown vocabulary err = %v, want ErrInvalid", err)
	}
	if err := svc.DeleteTag(ctx, "jazz", "genres"); err != nil {
		t.Errorf("DeleteTag: %v", err)
	}
	if _, err := svc.GetTag(ctx, "jazz", "genres"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("get after delete err = %v", err)
	}
}

func TestTagEvents_CarryVocabulary(t *testing.T) {
	svc, events := newTestService(t)
	ctx := context.Background()
	v, _ := svc.CreateVocabulary(ctx, "genres", nil)

	tag, err := svc.CreateTag(ctx, "jazz", v.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CreateTag(ctx, "music", ""); err != nil {
		t.Fatal(err)
	}
	if err := svc.DeleteTag(ctx, tag.ID, ""); err != nil {
		t.Fatal(err)
	}

	want := []recorded{
		{VocabularyCreated, "genres", "genres"},
		{TagCreated, "jazz", "genres"},
		{TagCreated, "music", ""},
		{TagDeleted, "jazz", "genres"},
	}
	if diff := cmp.Diff(want, *events, cmp.AllowUnexported(recorded{})); diff != "" {
		t.Errorf("events mismatch:\n%s", diff)
	}
}

func TestPreviewTags(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	v, _ := svc.CreateVocabulary(ctx, "genres", nil)

	entries, err := svc.PreviewTags(ctx, "genres", "rock, jazz, rock")
	if err != nil {
		t.Fatalf("PreviewTags: %v", err)
	}
	if len(entries) != 2 || entries[1].Name != "jazz" || *entries[1].VocabularyID != v.ID {
		t.Errorf("entries = %+v", entries)
	}
	tags, _ := svc.ListTags(ctx, TagQuery{VocabularyID: v.ID})
	if len(tags) != 0 {
		t.Errorf("preview must not create tags, got %+v", tags)
	}
}

func TestDatasetPipeline(t *testing.T) {
	svc, events := newTestService(t)
	ctx := context.Background()
	if _, err := svc.CreateVocabulary(ctx, "genres", nil); err != nil {
		t.Fatal(err)
	}

	got, err := svc.CreateDataset(ctx, map[string]any{
		"name":  "records",
		"title": "Records",
		"tags":  []any{map[string]any{"name": "music"}},
		"genre": "jazz, rock",
	})
	if err != nil {
		t.Fatalf("CreateDataset: %v", err)
	}

	if diff := cmp.Diff([]string{"jazz", "rock"}, got["genre"]); diff != "" {
		t.Errorf("genre mismatch:\n%s", diff)
	}
	tags := got["tags"].([]map[string]any)
	if len(tags) != 1 || tags[0]["name"] != "music" || tags[0]["vocabulary_id"] != nil {
		t.Errorf("free tags = %+v", tags)
	}
	if got["title"] != "Records" {
		t.Errorf("title = %v", got["title"])
	}

	genreTags, _ := svc.ListTags(ctx, TagQuery{VocabularyName: "genres"})
	if len(genreTags) != 2 {
		t.Errorf("vocabulary tags created = %d, want 2", len(genreTags))
	}
	last := (*events)[len(*events)-1]
	if last.kind != DatasetCreated || last.name != "records" {
		t.Errorf("last event = %+v", last)
	}

	names, _ := svc.ListDatasets(ctx)
	if diff := cmp.Diff([]string{"records"}, names); diff != "" {
		t.Errorf("names mismatch:\n%s", diff)
	}
	if err := svc.DeleteDataset(ctx, "records"); err != nil {
		t.Fatalf("DeleteDataset: %v", err)
	}
	if _, err := svc.GetDataset(ctx, "records"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("show after delete err = %v", err)
	}
}

func TestCreateDataset_ValidationErrors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateDataset(ctx, map[string]any{
		"name":  "Bad Name",
		"tags":  []any{map[string]any{"name": "x"}},
		"genre": "jazz",
	})
	if !errors.Is(err, apperr.ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
	fields := formdata.FieldMessages(err)
	for _, k := range []string{"name", "tags.0.name", "genre"} {
		if _, ok := fields[k]; !ok {
			t.Errorf("missing error for %s in %v", k, fields)
		}
	}
}

func TestGetDataset_NoTags(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.CreateVocabulary(ctx, "genres", nil); err != nil {
		t.Fatal(err)
	}
	got, err := svc.CreateDataset(ctx, map[string]any{"name": "bare"})
	if err != nil {
		t.Fatalf("CreateDataset: %v", err)
	}
	if tags, ok := got["tags"].([]map[string]any); !ok || len(tags) != 0 {
		t.Errorf("tags = %#v, want empty list", got["tags"])
	}
	if diff := cmp.Diff([]string{}, got["genre"]); diff != "" {
		t.Errorf("genre mismatch:\n%s", diff)
	}
}

func TestCreateDataset_NameFromTitle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	got, err := svc.CreateDataset(ctx, map[string]any{"title": "Café Records 2024"})
	if err != nil {
		t.Fatalf("CreateDataset: %v", err)
	}
	if got["name"] != "cafe-records-2024" {
		t.Errorf("name = %v, want cafe-records-2024", got["name"])
	}

	_, err = svc.CreateDataset(ctx, map[string]any{"name": "", "title": ""})
	if _, ok := formdata.FieldMessages(err)["name"]; !ok {
		t.Errorf("missing name and title err = %v, want name error", err)
	}
}

func TestCreateDataset_TagsShape(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, tags := range []any{"a1, b1", []any{"a1", "b1"}, map[string]any{"name": "a1"}} {
		_, err := svc.CreateDataset(ctx, map[string]any{"name": "shaped", "tags": tags})
		if _, ok := formdata.FieldMessages(err)["tags"]; !ok {
			t.Errorf("tags %#v: err = %v, want tags error", tags, err)
		}
	}
	if _, err := svc.GetDataset(ctx, "shaped"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("dataset stored despite bad tags: %v", err)
	}

	got, err := svc.CreateDataset(ctx, map[string]any{"name": "empty-tags", "tags": []any{}})
	if err != nil {
		t.Fatalf("empty tag list: %v", err)
	}
	if tags := got["tags"].([]map[string]any); len(tags) != 0 {
		t.Errorf("tags = %v, want none", tags)
	}
}

func TestDeleteDataset_ByIDEmitsName(t *testing.T) {
	svc, events := newTestService(t)
	ctx := context.Background()
	got, err := svc.CreateDataset(ctx, map[string]any{"name": "records"})
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.DeleteDataset(ctx, got["id"].(string)); err != nil {
		t.Fatalf("DeleteDataset: %v", err)
	}
	last := (*events)[len(*events)-1]
	if diff := cmp.Diff(recorded{DatasetDeleted, "records", ""}, last, cmp.AllowUnexported(recorded{})); diff != "" {
		t.Errorf("event mismatch:\n%s", diff)
	}
	if err := svc.DeleteDataset(ctx, "records"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestGetTag_DecomposedName(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.CreateTag(ctx, "caf\u00e9", ""); err != nil {
		t.Fatal(err)
	}

	decomposed := "cafe\u0301"
	tag, err := svc.GetTag(ctx, decomposed, "")
	if err != nil {
		t.Fatalf("GetTag(%q): %v", decomposed, err)
	}
	if tag.Name != "caf\u00e9" {
		t.Errorf("name = %q", tag.Name)
	}
	if err := svc.DeleteTag(ctx, decomposed, ""); err != nil {
		t.Errorf("DeleteTag(%q): %v", decomposed, err)
	}
}
