// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Taxon tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/taxon/internal/apperr"
	"github.com/starford/taxon/internal/formdata"
	"github.com/starford/taxon/internal/tagservice"
)

const rulesURI = "taxon://tagging-rules"

// Server wraps the MCP server with Taxon tools.
type Server struct {
	mcp *server.MCPServer
	svc *tagservice.Service
}

// New creates a new MCP server with all Taxon tools registered.
func New(svc *tagservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Taxon",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_vocabularies",
		mcp.WithDescription("List every tag vocabulary with its tags."),
	), s.listVocabularies)

	s.mcp.AddTool(mcp.NewTool("show_vocabulary",
		mcp.WithDescription("Show one vocabulary and its tags."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Vocabulary id or name")),
	), s.showVocabulary)

	s.mcp.AddTool(mcp.NewTool("tag_list",
		mcp.WithDescription("List tag names of a vocabulary, or free tags when no vocabulary is given."),
		mcp.WithString("vocabulary", mcp.Description("Vocabulary id or name (empty for free tags)")),
		mcp.WithString("query", mcp.Description("Only tags whose name contains this text")),
	), s.tagList)

	s.mcp.AddTool(mcp.NewTool("create_vocabulary",
		mcp.WithDescription("Create a vocabulary. Tag names MUST follow the tagging rules; "+
			"read them first via the get_tagging_rules tool or the "+rulesURI+" resource."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Vocabulary name, 2 to 100 characters")),
		mcp.WithString("tags", mcp.Description("Comma separated initial tags")),
	), s.createVocabulary)

	s.mcp.AddTool(mcp.NewTool("normalize_tags",
		mcp.WithDescription("Split and validate a comma separated tag string the way a vocabulary field "+
			"is converted, without storing anything."),
		mcp.WithString("tags", mcp.Required(), mcp.Description("Comma separated tag string")),
		mcp.WithString("vocabulary", mcp.Description("Vocabulary the tags would belong to")),
	), s.normalizeTags)

	s.mcp.AddTool(mcp.NewTool("show_dataset",
		mcp.WithDescription("Show a dataset with its free tags and vocabulary fields."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Dataset id or name")),
	), s.showDataset)

	s.mcp.AddTool(mcp.NewTool("get_tagging_rules",
		mcp.WithDescription("Returns the Taxon tagging rules. "+
			"Call this before creating vocabularies or tags."),
	), s.getTaggingRules)

	s.mcp.AddResource(
		mcp.NewResource(rulesURI, "Tagging Rules",
			mcp.WithResourceDescription("Rules every tag and vocabulary name must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readTaggingRulesResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func optionalString(req mcp.CallToolRequest, name string) string {
	v, err := req.RequireString(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(v)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// errorResult renders err for the model, listing field messages for
// validation failures.
func errorResult(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrInvalid):
		fields := formdata.FieldMessages(err)
		lines := make([]string, 0, len(fields))
		for k, msgs := range fields {
			lines = append(lines, fmt.Sprintf("%s: %s", k, strings.Join(msgs, "; ")))
		}
		return mcp.NewToolResultError("invalid input\n" + strings.Join(lines, "\n"))
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("not found: " + err.Error())
	default:
		return mcp.NewToolResultError(err.Error())
	}
}

func (s *Server) listVocabularies(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	vocabs, err := s.svc.ListVocabularies(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	if len(vocabs) == 0 {
		return mcp.NewToolResultText("no vocabularies"), nil
	}
	return jsonResult(vocabs)
}

func (s *Server) showVocabulary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	v, err := s.svc.GetVocabulary(ctx, id)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(v)
}

func (s *Server) tagList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tags, err := s.svc.ListTags(ctx, tagservice.TagQuery{
		VocabularyID: optionalString(req, "vocabulary"),
		Query:        optionalString(req, "query"),
	})
	if err != nil {
		return errorResult(err), nil
	}
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name
	}
	return mcp.NewToolResultText(strings.Join(names, "\n")), nil
}

func (s *Server) createVocabulary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var tags []string
	if raw := optionalString(req, "tags"); raw != "" {
		tags = []string{raw}
	}
	v, err := s.svc.CreateVocabulary(ctx, name, tags)
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s (%d tags)", v.Name, len(v.Tags))), nil
}

func (s *Server) normalizeTags(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("tags")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entries, err := s.svc.PreviewTags(ctx, optionalString(req, "vocabulary"), raw)
	if err != nil {
		return errorResult(err), nil
	}
	if len(entries) == 0 {
		return mcp.NewToolResultText("no tags"), nil
	}
	return jsonResult(entries)
}

func (s *Server) showDataset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.svc.GetDataset(ctx, id)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(d)
}

func (s *Server) getTaggingRules(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(TaggingRules), nil
}

func (s *Server) readTaggingRulesResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      rulesURI,
			MIMEType: "text/markdown",
			Text:     TaggingRules,
		},
	}, nil
}
