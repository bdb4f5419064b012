package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/lvillar/docfields/mcpserver"
	"github.com/lvillar/docfields/template"
	"github.com/lvillar/docfields/token"
)

func offsetsCommand() *cli.Command {
	return &cli.Command{
		Name:      "offsets",
		Usage:     "Normalize documents and print where each starts in the merged document",
		ArgsUsage: "FILE...",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			s := a.session()
			defer s.Close()
			if err := loadDocuments(ctx, s, cmd.Args().Slice()); err != nil {
				return err
			}

			art := s.Artifact()
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DOCUMENT\tSTATUS\tPAGES\tFIRST PAGE")
			for _, d := range s.Documents() {
				first := "-"
				if off, ok := art.PageOffsets[d.ID]; ok && d.PageCount > 0 {
					first = fmt.Sprint(off + 1)
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", d.OriginalName, d.Status, d.PageCount, first)
			}
			fmt.Fprintf(w, "total\t\t%d\t\n", art.TotalPages)
			return w.Flush()
		},
	}
}

func mergeCommand() *cli.Command {
	return &cli.Command{
		Name:      "merge",
		Usage:     "Concatenate PDF and DOCX documents into one PDF",
		ArgsUsage: "FILE...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output PDF path", Required: true},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			s := a.session()
			defer s.Close()
			if err := loadDocuments(ctx, s, cmd.Args().Slice()); err != nil {
				return err
			}
			res, err := s.Rebuild(ctx)
			if err != nil {
				return err
			}
			if res.PDF == nil {
				return fmt.Errorf("no document could be merged")
			}
			if err := os.WriteFile(cmd.String("output"), res.PDF, 0644); err != nil {
				return err
			}
			fmt.Printf("%s: %d pages\n", cmd.String("output"), res.Artifact.TotalPages)
			return nil
		},
	}
}

func valuesFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "values", Usage: "YAML or JSON file of token values"},
		&cli.StringSliceFlag{Name: "set", Usage: "Token value as name=value (repeatable)"},
	}
}

func resolveCommand() *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "Replace {{name}} merge tokens in a text file (or stdin) with token values",
		ArgsUsage: "[FILE]",
		Flags:     valuesFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			values, err := readValues(cmd.String("values"), cmd.StringSlice("set"))
			if err != nil {
				return err
			}

			var text []byte
			if path := cmd.Args().First(); path != "" {
				text, err = os.ReadFile(path)
			} else {
				text, err = io.ReadAll(os.Stdin)
			}
			if err != nil {
				return err
			}

			out := token.Resolve(string(text), values)
			fmt.Print(out)
			for _, name := range token.Unresolved(out, values) {
				fmt.Fprintf(os.Stderr, "unresolved: %s\n", name)
			}
			return nil
		},
	}
}

func templatesCommand() *cli.Command {
	return &cli.Command{
		Name:  "templates",
		Usage: "List stored templates",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "status", Usage: "Only templates with this status (draft, active, archived)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			db, err := a.openRepository()
			if err != nil {
				return err
			}
			defer db.Close()

			list, err := db.List(ctx, template.Status(cmd.String("status")))
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSTATUS\tFILES\tFIELDS\tUPDATED")
			for _, t := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n", t.ID, t.Name, t.Status, t.Files, t.Fields, t.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
}

func generateCommand() *cli.Command {
	return &cli.Command{
		Name:      "generate",
		Usage:     "Resolve a stored template's body and field values and print the result as JSON",
		ArgsUsage: "TEMPLATE-ID",
		Flags:     valuesFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withTemplate(ctx, cmd, func(a *app, run templateRun) error {
				g, err := run.session.Generate(ctx, run.values, run.template.Body)
				if err != nil {
					return err
				}
				out := struct {
					template.Generation
					Errors []string `json:"errors,omitempty"`
				}{Generation: g}
				for _, e := range g.Errors {
					out.Errors = append(out.Errors, e.Error())
				}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(out); err != nil {
					return err
				}
				if !g.OK() {
					return cli.Exit("", 2)
				}
				return nil
			})
		},
	}
}

func previewCommand() *cli.Command {
	flags := append(valuesFlags(),
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output PDF path", Required: true},
	)
	return &cli.Command{
		Name:      "preview",
		Usage:     "Render a stored template with field values painted over the merged document",
		ArgsUsage: "TEMPLATE-ID",
		Flags:     flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withTemplate(ctx, cmd, func(a *app, run templateRun) error {
				pdf, err := run.session.Preview(ctx, run.values, a.cfg.Preview.StampOptions())
				if err != nil {
					return err
				}
				return os.WriteFile(cmd.String("output"), pdf, 0644)
			})
		},
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve docfields tools over MCP on stdin/stdout",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			db, err := a.openRepository()
			if err != nil {
				return err
			}
			defer db.Close()

			srv := mcpserver.New(version,
				mcpserver.WithRepository(db),
				mcpserver.WithLogger(a.logger),
				mcpserver.WithTokens(a.cfg.Tokens),
				mcpserver.WithPreview(a.cfg.Preview.StampOptions()),
			)
			return srv.ServeStdio()
		},
	}
}
