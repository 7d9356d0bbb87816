package mcpserver

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/taxon/internal/tagservice"
	"github.com/starford/taxon/internal/testutil"
)

func testServer(t *testing.T) (*Server, *tagservice.Service) {
	t.Helper()
	svc := tagservice.New(testutil.TestDB(t), tagservice.WithLogger(testutil.Logger()))
	return New(svc), svc
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so handlers are called
	// directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_vocabularies":
		result, err = srv.listVocabularies(ctx, req)
	case "show_vocabulary":
		result, err = srv.showVocabulary(ctx, req)
	case "tag_list":
		result, err = srv.tagList(ctx, req)
	case "create_vocabulary":
		result, err = srv.createVocabulary(ctx, req)
	case "normalize_tags":
		result, err = srv.normalizeTags(ctx, req)
	case "show_dataset":
		result, err = srv.showDataset(ctx, req)
	case "get_tagging_rules":
		result, err = srv.getTaggingRules(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestCreateVocabularyAndTagList(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "create_vocabulary", map[string]any{
		"name": "genres",
		"tags": "rock, jazz, rock",
	})
	if text := resultText(r); text != "created: genres (2 tags)" {
		t.Errorf("create result = %q", text)
	}

	r = callTool(t, srv, "tag_list", map[string]any{"vocabulary": "genres"})
	if text := resultText(r); text != "jazz\nrock" {
		t.Errorf("tag_list = %q, want jazz and rock", text)
	}
}

func TestTagList_UnknownVocabulary(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "tag_list", map[string]any{"vocabulary": "invalid-vocab-name"})
	if !r.IsError {
		t.Error("expected error for unknown vocabulary")
	}
}

func TestCreateVocabulary_Invalid(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "create_vocabulary", map[string]any{"name": "x"})
	if !r.IsError {
		t.Fatal("expected error for short name")
	}
	if text := resultText(r); !strings.Contains(text, "name:") {
		t.Errorf("error should name the field: %q", text)
	}
}

func TestNormalizeTags(t *testing.T) {
	srv, svc := testServer(t)
	if _, err := svc.CreateVocabulary(context.Background(), "genres", nil); err != nil {
		t.Fatal(err)
	}

	r := callTool(t, srv, "normalize_tags", map[string]any{"tags": " b ,a,, b", "vocabulary": "genres"})
	text := resultText(r)
	if r.IsError || strings.Index(text, `"b"`) > strings.Index(text, `"a"`) {
		t.Errorf("normalize result = %q, want b before a", text)
	}

	r = callTool(t, srv, "normalize_tags", map[string]any{"tags": " , "})
	if text := resultText(r); text != "no tags" {
		t.Errorf("empty result = %q", text)
	}

	r = callTool(t, srv, "normalize_tags", map[string]any{"tags": "ok, x"})
	if !r.IsError {
		t.Error("expected error for invalid tag name")
	}
}

func TestShowVocabularyAndList(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "list_vocabularies", map[string]any{})
	if text := resultText(r); text != "no vocabularies" {
		t.Errorf("empty list = %q", text)
	}

	callTool(t, srv, "create_vocabulary", map[string]any{"name": "genres", "tags": "rock"})
	r = callTool(t, srv, "show_vocabulary", map[string]any{"id": "genres"})
	if !strings.Contains(resultText(r), `"rock"`) {
		t.Errorf("show result = %q", resultText(r))
	}
	r = callTool(t, srv, "show_vocabulary", map[string]any{"id": "missing"})
	if !r.IsError {
		t.Error("expected error for missing vocabulary")
	}
}

func TestShowDatasetMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "show_dataset", map[string]any{"id": "nope"})
	if !r.IsError {
		t.Error("expected error for missing dataset")
	}
}

func TestGetTaggingRules(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_tagging_rules", map[string]any{})
	if !strings.Contains(resultText(r), "Tagging Rules") {
		t.Error("rules text missing")
	}
}
