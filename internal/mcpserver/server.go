// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Ansuz annotation tools for LLM integration via stdio
// transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/ansuz/internal/annotator"
	"github.com/starford/ansuz/internal/assembler"
	"github.com/starford/ansuz/internal/tree"
	"github.com/starford/ansuz/internal/validate"
)

// Server wraps the MCP server with Ansuz tools.
type Server struct {
	mcp *server.MCPServer
	svc *annotator.Service
}

// New creates a new MCP server with all Ansuz tools registered.
func New(svc *annotator.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Ansuz",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("annotate_sentence",
		mcp.WithDescription("Annotate a sentence skeleton tree with typed linguistic notes. "+
			"The tree MUST follow the output contract (read it first via the "+
			"get_output_contract tool or the ansuz://output-contract resource)."),
		mcp.WithString("sentence", mcp.Required(), mcp.Description("Raw sentence text")),
		mcp.WithString("tree", mcp.Required(), mcp.Description("Skeleton tree as a JSON node object")),
		mcp.WithString("note_mode", mcp.Description("template_only, model, or two_stage (default template_only)")),
		mcp.WithString("validation_mode", mcp.Description("v1 or v2_strict (default v2_strict)")),
	), s.annotateSentence)

	s.mcp.AddTool(mcp.NewTool("validate_tree",
		mcp.WithDescription("Validate an annotated tree against the output contract "+
			"without re-running annotation."),
		mcp.WithString("tree", mcp.Required(), mcp.Description("Annotated tree as a JSON node object")),
		mcp.WithString("validation_mode", mcp.Description("v1 or v2_strict (default v2_strict)")),
	), s.validateTree)

	s.mcp.AddTool(mcp.NewTool("list_templates",
		mcp.WithDescription("List the active note template registry: context keys, "+
			"template ids, node families, and variant pools."),
	), s.listTemplates)

	s.mcp.AddTool(mcp.NewTool("get_output_contract",
		mcp.WithDescription("Returns the canonical annotated-tree output contract. "+
			"Call this before building trees for annotate_sentence or validate_tree."),
	), s.getOutputContract)

	// Resource: output contract.
	s.mcp.AddResource(
		mcp.NewResource("ansuz://output-contract", "Annotated Tree Output Contract",
			mcp.WithResourceDescription("Canonical structure every annotated sentence tree must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readOutputContractResource,
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

func (s *Server) annotateSentence(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sentence, err := req.RequireString("sentence")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rawTree, err := req.RequireString("tree")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	root, err := tree.Decode([]byte(rawTree))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid tree: %v", err)), nil
	}

	areq := annotator.Request{Sentence: sentence, Tree: root}
	if m, merr := req.RequireString("note_mode"); merr == nil {
		areq.NoteMode = assembler.NoteMode(m)
	}
	if m, merr := req.RequireString("validation_mode"); merr == nil {
		areq.ValidationMode = validate.Mode(m)
	}

	res, err := s.svc.Annotate(ctx, areq)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(map[string]any{
		"id":                res.ID,
		"valid":             res.Valid,
		"validation_errors": res.Errors,
		"backoff_counts":    res.Summary,
		"registry_version":  res.RegistryVersion,
		"tree":              res.Tree,
	}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) validateTree(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawTree, err := req.RequireString("tree")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	root, err := tree.Decode([]byte(rawTree))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid tree: %v", err)), nil
	}
	mode := validate.V2Strict
	if m, merr := req.RequireString("validation_mode"); merr == nil && m != "" {
		mode = validate.Mode(m)
	}
	verrs, err := s.svc.Validate(ctx, root, mode)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(map[string]any{
		"valid":  len(verrs) == 0,
		"errors": verrs,
	}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listTemplates(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	version, entries := s.svc.Templates(ctx)
	out, _ := json.MarshalIndent(map[string]any{
		"version":   version,
		"templates": entries,
	}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getOutputContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(OutputContract), nil
}

func (s *Server) readOutputContractResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "ansuz://output-contract",
			MIMEType: "text/markdown",
			Text:     OutputContract,
		},
	}, nil
}
