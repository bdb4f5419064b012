// Package mcpserver implements a Model Context Protocol (MCP) server that
// exposes docfields operations as tools and resources for AI assistants.
//
// The server communicates over stdio. Tools take file paths on the local
// machine; merged and preview PDFs are written to an output path.
//
// # Usage with an MCP client
//
// Add to the client's server configuration:
//
//	{
//	  "mcpServers": {
//	    "docfields": {
//	      "command": "docfields",
//	      "args": ["mcp"]
//	    }
//	  }
//	}
package mcpserver

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/lvillar/docfields/stamp"
	"github.com/lvillar/docfields/template"
)

// Option configures a Server.
type Option func(*Server)

// WithRepository enables the template tools, backed by db.
func WithRepository(db *template.SQLite) Option {
	return func(s *Server) {
		s.repo = db
	}
}

// WithLogger sets the logger for tool failures.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTokens sets the merge-token vocabulary used by sessions opened for
// tool calls.
func WithTokens(tokens []string) Option {
	return func(s *Server) {
		s.tokens = append([]string(nil), tokens...)
	}
}

// WithPreview sets the rendering options for generated previews.
func WithPreview(opts stamp.Options) Option {
	return func(s *Server) {
		s.preview = opts
	}
}

// Server wraps the MCP server with docfields tools.
type Server struct {
	mcp     *server.MCPServer
	repo    *template.SQLite
	tokens  []string
	preview stamp.Options
	logger  *zap.Logger
}

// New creates an MCP server with every docfields tool registered. Template
// tools are only registered when a repository is configured.
func New(version string, opts ...Option) *Server {
	s := &Server{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = server.NewMCPServer(
		"docfields",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("inspect_documents",
		mcp.WithDescription("Normalize PDF or DOCX files in the given order and report each document's status, "+
			"page count and page offset in the merged document."),
		mcp.WithArray("paths", mcp.Required(), mcp.Description("Document file paths in merge order"),
			mcp.Items(map[string]any{"type": "string"})),
	), s.inspectDocuments)

	s.mcp.AddTool(mcp.NewTool("merge_documents",
		mcp.WithDescription("Normalize PDF or DOCX files and concatenate them into one PDF."),
		mcp.WithArray("inputPaths", mcp.Required(), mcp.Description("Document file paths in merge order"),
			mcp.Items(map[string]any{"type": "string"})),
		mcp.WithString("outputPath", mcp.Required(), mcp.Description("Path of the merged PDF to write")),
	), s.mergeDocuments)

	s.mcp.AddTool(mcp.NewTool("find_tokens",
		mcp.WithDescription("List the distinct {{name}} merge tokens in a text, in order of first appearance."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text to scan")),
	), s.findTokens)

	s.mcp.AddTool(mcp.NewTool("resolve_tokens",
		mcp.WithDescription("Replace {{name}} merge tokens in a text with the given values. "+
			"Tokens without a value are kept literally and reported as unresolved."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text containing merge tokens")),
		mcp.WithObject("values", mcp.Description("Token values keyed by token name")),
	), s.resolveTokens)

	s.mcp.AddTool(mcp.NewTool("validate_template",
		mcp.WithDescription("Validate a template record: metadata, document references and field pages."),
		mcp.WithObject("template", mcp.Required(), mcp.Description("Template record as JSON")),
	), s.validateTemplate)

	if s.repo != nil {
		s.mcp.AddTool(mcp.NewTool("list_templates",
			mcp.WithDescription("List stored templates, most recently updated first."),
			mcp.WithString("status", mcp.Description("Optional status filter"),
				mcp.Enum(string(template.StatusDraft), string(template.StatusActive), string(template.StatusArchived))),
		), s.listTemplates)

		s.mcp.AddTool(mcp.NewTool("generate_document",
			mcp.WithDescription("Open a stored template, resolve its body and field values from token values, "+
				"and report where each field lands in the merged document. "+
				"With outputPath, also write a preview PDF with the values painted in."),
			mcp.WithString("templateId", mcp.Required(), mcp.Description("Template id")),
			mcp.WithObject("values", mcp.Description("Token values keyed by token name")),
			mcp.WithString("outputPath", mcp.Description("Optional path of the preview PDF to write")),
		), s.generateDocument)
	}

	s.mcp.AddResource(
		mcp.NewResource(fieldTypesURI, "Field Types",
			mcp.WithResourceDescription("Field types, their validation rules and the minimum field size."),
			mcp.WithMIMEType("application/json"),
		),
		s.readFieldTypes,
	)
	s.mcp.AddResource(
		mcp.NewResource(tokenSyntaxURI, "Merge Token Syntax",
			mcp.WithResourceDescription("How merge tokens are written and resolved."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readTokenSyntax,
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
