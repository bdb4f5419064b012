package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/lvillar/docfields/field"
)

const (
	fieldTypesURI  = "docfields://field-types"
	tokenSyntaxURI = "docfields://token-syntax"
)

// TokenSyntax documents merge tokens for MCP clients.
const TokenSyntax = `# Merge tokens

A merge token is written ` + "`{{name}}`" + `. Names start with a letter or underscore and
may contain letters, digits, underscores, dots and dashes. Whitespace inside the braces
is ignored: ` + "`{{ buyerName }}`" + ` and ` + "`{{buyerName}}`" + ` are the same token.

Resolution replaces every token that has a value. Values may contain tokens themselves;
they are expanded too. Tokens without a value, and tokens whose values refer back to
themselves, are kept literally. Resolving an already resolved text changes nothing.

A field bound to a token receives that token's value. An unbound field receives its
default value, in which tokens are resolved as well.
`

type fieldTypeInfo struct {
	Type  field.Type `json:"type"`
	Rules string     `json:"rules"`
}

var typeRules = map[field.Type]string{
	field.TypeText:      "pattern, minLength, maxLength",
	field.TypeTextarea:  "pattern, minLength, maxLength",
	field.TypeNumber:    "min, max",
	field.TypeSignature: "required only",
	field.TypeDate:      "format " + field.DateLayout,
	field.TypeCheckbox:  "required only",
	field.TypeDropdown:  "value must be one of options; a required dropdown needs options",
}

func (s *Server) readFieldTypes(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	types := make([]fieldTypeInfo, 0, len(field.Types()))
	for _, t := range field.Types() {
		types = append(types, fieldTypeInfo{Type: t, Rules: typeRules[t]})
	}
	out, err := json.MarshalIndent(map[string]any{
		"types": types,
		"minSize": field.Size{
			Width:  field.DefaultMinWidth,
			Height: field.DefaultMinHeight,
		},
		"units": "pt",
	}, "", "  ")
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      fieldTypesURI,
			MIMEType: "application/json",
			Text:     string(out),
		},
	}, nil
}

func (s *Server) readTokenSyntax(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      tokenSyntaxURI,
			MIMEType: "text/markdown",
			Text:     TokenSyntax,
		},
	}, nil
}
