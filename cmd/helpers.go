package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/audit"
	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/config"
	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/db"
	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/docstore"
	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/engine"
	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/pipeline"
	"github.com/Niranjanakamaraj/InvestigationAssistent/internal/query"
)

// appDeps bundles the wired application components shared by the serve,
// mcp and ingest commands.
type appDeps struct {
	cfg      *config.Config
	database *db.DB
	auditLog *audit.Log
	docs     *docstore.Store
	tasks    *pipeline.Pipeline
	queries  *query.Router
	engine   engine.AnalysisEngine
}

// buildDeps loads the config, opens the database under the data
// directory and wires all components. The caller owns database.Close.
func buildDeps() (*appDeps, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	database, err := db.Open(filepath.Join(cfg.DataDir, "investigate.db"))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	auditLog, err := audit.NewLog(database)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("opening audit log: %w", err)
	}

	docs, err := docstore.NewStore(database, auditLog, filepath.Join(cfg.DataDir, "documents"))
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("opening document store: %w", err)
	}

	eng, err := engine.New(string(cfg.Provider), cfg.Model)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("creating analysis engine: %w", err)
	}

	tasks, err := pipeline.New(eng, docs, auditLog, pipeline.NewStore(database))
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("restoring task pipeline: %w", err)
	}

	return &appDeps{
		cfg:      cfg,
		database: database,
		auditLog: auditLog,
		docs:     docs,
		tasks:    tasks,
		queries:  query.NewRouter(eng, docs, auditLog),
		engine:   eng,
	}, nil
}
