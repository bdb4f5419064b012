package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/lvillar/docfields"
	"github.com/lvillar/docfields/document"
	"github.com/lvillar/docfields/internal/config"
	"github.com/lvillar/docfields/internal/logging"
	"github.com/lvillar/docfields/template"
)

// app holds what every command needs: configuration and a logger.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
}

func setup(cmd *cli.Command) (*app, error) {
	cfg := config.NewDefault()
	if err := config.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.JSON)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger}, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}

func (a *app) session() *docfields.Session {
	return docfields.New(
		docfields.WithLogger(a.logger),
		docfields.WithTokens(a.cfg.Tokens),
		docfields.WithMaxFileSize(a.cfg.Intake.MaxFileSize),
		docfields.WithMinSize(a.cfg.Fields.MinWidth, a.cfg.Fields.MinHeight),
	)
}

func (a *app) openRepository() (*template.SQLite, error) {
	db, err := template.OpenSQLite(a.cfg.Storage.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("opening template database: %w", err)
	}
	return db, nil
}

// statFiles describes the files at paths concurrently, keeping their order.
func statFiles(ctx context.Context, paths []string) ([]document.File, error) {
	files := make([]document.File, len(paths))
	g, _ := errgroup.WithContext(ctx)
	for i, p := range paths {
		g.Go(func() error {
			f, err := document.PathFile(p)
			if err != nil {
				return err
			}
			files[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

// loadDocuments adds the files at paths to s in order and waits for them to
// be normalized. Rejected files are reported on stderr.
func loadDocuments(ctx context.Context, s *docfields.Session, paths []string) error {
	if len(paths) == 0 {
		return fmt.Errorf("no input files")
	}
	files, err := statFiles(ctx, paths)
	if err != nil {
		return err
	}
	_, errs := s.AddDocuments(ctx, files)
	for _, err := range errs {
		fmt.Fprintf(os.Stderr, "rejected: %v\n", err)
	}
	return s.Wait(ctx)
}

// readValues reads token values from a YAML or JSON mapping file and applies
// name=value overrides.
func readValues(path string, overrides []string) (map[string]string, error) {
	values := map[string]string{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading values: %w", err)
		}
		if err := yaml.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("parsing values %s: %w", path, err)
		}
	}
	for _, kv := range overrides {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid value %q: want name=value", kv)
		}
		values[name] = value
	}
	return values, nil
}

type templateRun struct {
	session  *docfields.Session
	template template.Template
	values   map[string]string
}

// withTemplate opens the template named by the first argument in a fresh
// session and calls fn with it and the command's token values.
func withTemplate(ctx context.Context, cmd *cli.Command, fn func(*app, templateRun) error) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("missing template id")
	}
	values, err := readValues(cmd.String("values"), cmd.StringSlice("set"))
	if err != nil {
		return err
	}

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

	s := a.session()
	defer s.Close()
	t, err := s.Open(ctx, db, db, id)
	if err != nil {
		return err
	}
	return fn(a, templateRun{session: s, template: t, values: values})
}
