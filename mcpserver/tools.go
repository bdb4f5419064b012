package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/lvillar/docfields"
	"github.com/lvillar/docfields/document"
	"github.com/lvillar/docfields/merge"
	"github.com/lvillar/docfields/template"
	"github.com/lvillar/docfields/token"
)

type documentReport struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Kind       document.Kind   `json:"kind"`
	Status     document.Status `json:"status"`
	PageCount  int             `json:"pageCount"`
	PageOffset *int            `json:"pageOffset,omitempty"`
	Error      string          `json:"error,omitempty"`
}

type inspectReport struct {
	Documents  []documentReport `json:"documents"`
	TotalPages int              `json:"totalPages"`
	Rejected   []string         `json:"rejected,omitempty"`
}

func (s *Server) inspectDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	paths, err := stringSlice(req.GetArguments(), "paths")
	if err != nil {
		return s.toolError("inspect_documents", err), nil
	}

	sess := s.session()
	defer sess.Close()
	rejected := s.addPaths(ctx, sess, paths)
	if err := sess.Wait(ctx); err != nil {
		return s.toolError("inspect_documents", err), nil
	}

	art := sess.Artifact()
	rep := inspectReport{TotalPages: art.TotalPages, Rejected: rejected}
	for _, d := range sess.Documents() {
		r := documentReport{
			ID:        d.ID,
			Name:      d.OriginalName,
			Kind:      d.Kind,
			Status:    d.Status,
			PageCount: d.PageCount,
			Error:     d.FailureReason,
		}
		if off, ok := art.PageOffsets[d.ID]; ok {
			r.PageOffset = &off
		}
		rep.Documents = append(rep.Documents, r)
	}
	return jsonResult(rep)
}

func (s *Server) mergeDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	paths, err := stringSlice(args, "inputPaths")
	if err != nil {
		return s.toolError("merge_documents", err), nil
	}
	outputPath, err := req.RequireString("outputPath")
	if err != nil {
		return s.toolError("merge_documents", err), nil
	}

	sess := s.session()
	defer sess.Close()
	rejected := s.addPaths(ctx, sess, paths)
	res, err := sess.Rebuild(ctx)
	if err != nil {
		return s.toolError("merge_documents", err), nil
	}
	if res.PDF == nil {
		return s.toolError("merge_documents", docfields.ErrNoDocuments), nil
	}
	if err := os.WriteFile(outputPath, res.PDF, 0644); err != nil {
		return s.toolError("merge_documents", fmt.Errorf("writing file: %w", err)), nil
	}

	text := fmt.Sprintf("Merged %d documents (%d pages) into %s", len(res.Artifact.OrderedDocumentIDs)-len(res.Artifact.Skipped), res.Artifact.TotalPages, outputPath)
	if len(res.Artifact.Skipped) > 0 {
		text += fmt.Sprintf("\nSkipped %d documents that failed to normalize", len(res.Artifact.Skipped))
	}
	for _, r := range rejected {
		text += "\nRejected: " + r
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) findTokens(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return s.toolError("find_tokens", err), nil
	}
	names := token.Find(text)
	if names == nil {
		names = []string{}
	}
	return jsonResult(map[string]any{"tokens": names})
}

func (s *Server) resolveTokens(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return s.toolError("resolve_tokens", err), nil
	}
	values, err := stringMap(req.GetArguments(), "values")
	if err != nil {
		return s.toolError("resolve_tokens", err), nil
	}
	return jsonResult(map[string]any{
		"text":       token.Resolve(text, values),
		"unresolved": token.Unresolved(text, values),
	})
}

func (s *Server) validateTemplate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, ok := req.GetArguments()["template"]
	if !ok {
		return s.toolError("validate_template", fmt.Errorf("missing 'template' argument")), nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return s.toolError("validate_template", fmt.Errorf("encoding template: %w", err)), nil
	}
	var t template.Template
	if err := json.Unmarshal(data, &t); err != nil {
		return s.toolError("validate_template", fmt.Errorf("decoding template: %w", err)), nil
	}
	if err := t.Validate(); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Template is invalid: %v", err)), nil
	}
	art := merge.Build(t.Files)
	return mcp.NewToolResultText(fmt.Sprintf("Template %q is valid: %d documents, %d fields, %d pages",
		t.Name, len(t.Files), len(t.Fields), art.TotalPages)), nil
}

func (s *Server) listTemplates(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := template.Status(req.GetString("status", ""))
	list, err := s.repo.List(ctx, status)
	if err != nil {
		return s.toolError("list_templates", err), nil
	}
	if list == nil {
		list = []template.Summary{}
	}
	return jsonResult(list)
}

type generateReport struct {
	Body       string               `json:"body"`
	Values     map[string]string    `json:"values"`
	Placements []template.Placement `json:"placements"`
	Errors     []string             `json:"errors,omitempty"`
	Preview    string               `json:"preview,omitempty"`
}

func (s *Server) generateDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("templateId")
	if err != nil {
		return s.toolError("generate_document", err), nil
	}
	values, err := stringMap(req.GetArguments(), "values")
	if err != nil {
		return s.toolError("generate_document", err), nil
	}

	sess := s.session()
	defer sess.Close()
	t, err := sess.Open(ctx, s.repo, s.repo, id)
	if err != nil {
		return s.toolError("generate_document", err), nil
	}
	g, err := sess.Generate(ctx, values, t.Body)
	if err != nil {
		return s.toolError("generate_document", err), nil
	}

	rep := generateReport{Body: g.Body, Values: g.Values, Placements: g.Placements}
	for _, e := range g.Errors {
		rep.Errors = append(rep.Errors, e.Error())
	}
	if outputPath := req.GetString("outputPath", ""); outputPath != "" {
		pdf, err := sess.Preview(ctx, values, s.preview)
		if err != nil {
			return s.toolError("generate_document", err), nil
		}
		if err := os.WriteFile(outputPath, pdf, 0644); err != nil {
			return s.toolError("generate_document", fmt.Errorf("writing file: %w", err)), nil
		}
		rep.Preview = outputPath
	}
	return jsonResult(rep)
}

func (s *Server) session() *docfields.Session {
	return docfields.New(
		docfields.WithLogger(s.logger),
		docfields.WithTokens(s.tokens),
	)
}

// addPaths registers the files at paths in order and returns a description
// of each file that was rejected.
func (s *Server) addPaths(ctx context.Context, sess *docfields.Session, paths []string) []string {
	var rejected []string
	files := make([]document.File, 0, len(paths))
	for _, p := range paths {
		f, err := document.PathFile(p)
		if err != nil {
			rejected = append(rejected, err.Error())
			continue
		}
		files = append(files, f)
	}
	_, errs := sess.AddDocuments(ctx, files)
	for _, err := range errs {
		rejected = append(rejected, err.Error())
	}
	return rejected
}

func (s *Server) toolError(tool string, err error) *mcp.CallToolResult {
	s.logger.Warn("tool failed", zap.String("tool", tool), zap.Error(err))
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(out)), nil
}

func stringSlice(args map[string]any, key string) ([]string, error) {
	raw, ok := args[key].([]any)
	if !ok || len(raw) == 0 {
		return nil, fmt.Errorf("'%s' must be a non-empty array of strings", key)
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("'%s' must contain only strings", key)
		}
		out = append(out, s)
	}
	return out, nil
}

// stringMap reads an optional object argument. Non-string values are
// formatted with %v.
func stringMap(args map[string]any, key string) (map[string]string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return map[string]string{}, nil
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("'%s' must be an object", key)
	}
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		if s, ok := v.(string); ok {
			out[k] = s
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	return out, nil
}
