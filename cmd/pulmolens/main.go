package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jask/pulmolens/internal/config"
	"github.com/jask/pulmolens/internal/database"
	"github.com/jask/pulmolens/internal/database/repository"
	"github.com/jask/pulmolens/internal/predict"
	"github.com/jask/pulmolens/internal/prefs"
	"github.com/jask/pulmolens/internal/service"
	"github.com/jask/pulmolens/internal/testdata"
	"github.com/jask/pulmolens/internal/tui"
)

func main() {
	initFlag := flag.Bool("init", false, "write the effective config to the config file and exit")
	seedFlag := flag.Int("seed", 0, "insert N sample reports into the history and exit")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: pulmolens [flags] [image]\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if os.Getenv("PULMOLENS_DEBUG") != "" {
		f, err := tea.LogToFile("pulmolens-debug.log", "pulmolens")
		if err != nil {
			fatal("debug log: %v", err)
		}
		defer f.Close()
	} else {
		log.SetOutput(io.Discard)
	}

	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fatal("config: %v", err)
	}

	if *initFlag {
		if err := config.Save(cfg); err != nil {
			fatal("save config: %v", err)
		}
		fmt.Printf("wrote %s\n", config.Path())
		return
	}

	var (
		db      *sql.DB
		reports *repository.ReportRepo
	)
	if cfg.History.Enabled || *seedFlag > 0 {
		db, err = openDatabase(cfg.Database.Path)
		if err != nil {
			fatal("%v", err)
		}
		defer db.Close()
		reports = repository.NewReportRepo(db)
	}

	if *seedFlag > 0 {
		seeded, err := testdata.Seed(ctx, reports, testdata.Options{Count: *seedFlag})
		if err != nil {
			fatal("seed: %v", err)
		}
		fmt.Printf("inserted %d sample reports into %s\n", len(seeded), cfg.Database.Path)
		return
	}

	client := predict.NewClient(cfg.Predict.Endpoint,
		predict.WithTimeout(cfg.Predict.Timeout),
		predict.WithFieldName(cfg.Predict.Field),
	)
	services := tui.Services{
		Diagnosis: &service.DiagnosisService{Predictor: client, Reports: reports},
	}
	if reports != nil {
		services.History = &service.HistoryService{Reports: reports}
		services.Maintenance = &service.MaintenanceService{DB: db}
	}

	p, err := prefs.Load()
	if err != nil {
		log.Printf("warn: ignoring prefs: %v", err)
	}

	prog := tea.NewProgram(tui.New(ctx, cfg, services, p, flag.Args()), tea.WithAltScreen())
	if _, err := prog.Run(); err != nil {
		fmt.Printf("error: %v\n", err)
	}
}

func openDatabase(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}
	if err := database.RunMigrations(path); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	db, err := database.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return db, nil
}

// fatal reports to stderr even when the debug log is discarded.
func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "pulmolens: "+format+"\n", args...)
	os.Exit(1)
}
