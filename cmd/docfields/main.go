// Command docfields inspects, merges and fills document templates from the
// command line, and serves the same operations to AI assistants over MCP.
//
// # Installation
//
//	go install github.com/lvillar/docfields/cmd/docfields@latest
//
// # Commands
//
//   - offsets: normalize documents and print where each starts in the merged document
//   - merge: concatenate documents into one PDF
//   - resolve: replace merge tokens in a text
//   - templates: list stored templates
//   - generate: resolve a stored template's body and field values
//   - preview: render a stored template with field values painted in
//   - mcp: serve the MCP tools over stdio
//
// Configuration is read from the YAML file named by --config (default
// docfields.yaml, optional). A .env file in the working directory is loaded
// into the environment first.
package main

import (
	"context"
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
)

var version = "dev"

func main() {
	cmd := &cli.Command{
		Name:    "docfields",
		Usage:   "Build document templates from merged PDF and DOCX files",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   "docfields.yaml",
				Sources: cli.EnvVars("DOCFIELDS_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			offsetsCommand(),
			mergeCommand(),
			resolveCommand(),
			templatesCommand(),
			generateCommand(),
			previewCommand(),
			mcpCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "docfields: %v\n", err)
		os.Exit(1)
	}
}
