package api

import (
	"context"

	"github.com/starford/taxon/internal/tagservice"
)

// action is one callable entry of the action API.
type action struct {
	help    string
	mutates bool
	run     func(ctx context.Context, p params) (any, error)
}

func (h *Handler) registerActions() map[string]action {
	return map[string]action{
		"tag_list": {
			help: "Returns a list of tags",
			run:  h.tagList,
		},
		"tag_show": {
			help: "Return the details of a tag",
			run: func(ctx context.Context, p params) (any, error) {
				return h.svc.GetTag(ctx, p.str("id"), p.str("vocabulary_id"))
			},
		},
		"tag_create": {
			help:    "Create a new tag, in a vocabulary when vocabulary_id is given",
			mutates: true,
			run: func(ctx context.Context, p params) (any, error) {
				return h.svc.CreateTag(ctx, p.str("name"), p.str("vocabulary_id"))
			},
		},
		"tag_delete": {
			help:    "Delete a tag",
			mutates: true,
			run: func(ctx context.Context, p params) (any, error) {
				return nil, h.svc.DeleteTag(ctx, p.str("id"), p.str("vocabulary_id"))
			},
		},
		"vocabulary_list": {
			help: "Return a list of all the site's tag vocabularies",
			run: func(ctx context.Context, _ params) (any, error) {
				return nonNil(h.svc.ListVocabularies(ctx))
			},
		},
		"vocabulary_show": {
			help: "Return a single tag vocabulary",
			run: func(ctx context.Context, p params) (any, error) {
				return h.svc.GetVocabulary(ctx, p.str("id"))
			},
		},
		"vocabulary_create": {
			help:    "Create a new tag vocabulary",
			mutates: true,
			run: func(ctx context.Context, p params) (any, error) {
				tags, err := p.tagNames("tags")
				if err != nil {
					return nil, err
				}
				return h.svc.CreateVocabulary(ctx, p.str("name"), tags)
			},
		},
		"vocabulary_update": {
			help:    "Update a tag vocabulary",
			mutates: true,
			run: func(ctx context.Context, p params) (any, error) {
				tags, err := p.tagNames("tags")
				if err != nil {
					return nil, err
				}
				return h.svc.UpdateVocabulary(ctx, p.str("id"), p.str("name"), tags)
			},
		},
		"vocabulary_delete": {
			help:    "Delete a tag vocabulary",
			mutates: true,
			run: func(ctx context.Context, p params) (any, error) {
				return nil, h.svc.DeleteVocabulary(ctx, p.str("id"))
			},
		},
		"package_create": {
			help:    "Create a new dataset",
			mutates: true,
			run: func(ctx context.Context, p params) (any, error) {
				return h.svc.CreateDataset(ctx, p)
			},
		},
		"package_show": {
			help: "Return the metadata of a dataset",
			run: func(ctx context.Context, p params) (any, error) {
				return h.svc.GetDataset(ctx, p.str("id"))
			},
		},
		"package_list": {
			help: "Return a list of the names of the site's datasets",
			run: func(ctx context.Context, _ params) (any, error) {
				return nonNil(h.svc.ListDatasets(ctx))
			},
		},
		"package_delete": {
			help:    "Delete a dataset",
			mutates: true,
			run: func(ctx context.Context, p params) (any, error) {
				return nil, h.svc.DeleteDataset(ctx, p.str("id"))
			},
		},
	}
}

// tagList returns tag names, or full tag objects when all_fields is set.
func (h *Handler) tagList(ctx context.Context, p params) (any, error) {
	limit, err := p.integer("limit")
	if err != nil {
		return nil, err
	}
	offset, err := p.integer("offset")
	if err != nil {
		return nil, err
	}
	tags, err := h.svc.ListTags(ctx, tagservice.TagQuery{
		VocabularyID:   p.str("vocabulary_id"),
		VocabularyName: p.str("vocabulary_name"),
		Query:          p.str("q"),
		Limit:          limit,
		Offset:         offset,
	})
	if err != nil {
		return nil, err
	}
	if p.boolean("all_fields") {
		return nonNil(tags, nil)
	}
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name
	}
	return names, nil
}

func nonNil[T any](s []T, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	if s == nil {
		s = []T{}
	}
	return s, nil
}
