// Command legacyimport loads progress rows exported from the legacy table
// (CSV or XLSX, keyed by unit number) into the progress store.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/vytor/phonicsmastery/internal/config"
	"github.com/vytor/phonicsmastery/internal/curriculum"
	"github.com/vytor/phonicsmastery/internal/db"
	"github.com/vytor/phonicsmastery/internal/logger"
	"github.com/vytor/phonicsmastery/internal/repository/sqlstore"
	"github.com/vytor/phonicsmastery/internal/services"
)

type fileList []string

func (l *fileList) String() string { return strings.Join(*l, ",") }
func (l *fileList) Set(v string) error {
	v = strings.TrimSpace(v)
	if v != "" {
		*l = append(*l, v)
	}
	return nil
}

func main() {
	var files fileList
	var history int
	var verbose bool
	flag.Var(&files, "file", "legacy export to import, .csv or .xlsx (repeatable)")
	flag.IntVar(&history, "history", 0, "print the last N import runs and exit")
	flag.BoolVar(&verbose, "v", false, "print every skipped row")
	flag.Parse()

	cfg := config.Load()
	log := logger.New(logger.WithLevel(logger.ParseLevel(cfg.LogLevel)))
	logger.SetDefault(log)

	if len(files) == 0 && history == 0 {
		flag.Usage()
		os.Exit(2)
	}

	content, err := curriculum.Load(cfg.CurriculumPath)
	if err != nil {
		fmt.Printf("load curriculum: %v\n", err)
		os.Exit(1)
	}
	database, err := db.Open(cfg.DBDriver, cfg.DBPath)
	if err != nil {
		fmt.Printf("open database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	svc := services.NewImportService(
		sqlstore.NewProgressRepository(database),
		sqlstore.NewImportLogRepository(database),
		content,
	)
	ctx := logger.NewContext(context.Background(), log)

	if history > 0 {
		runs, err := svc.History(ctx, history)
		if err != nil {
			fmt.Printf("list import runs: %v\n", err)
			os.Exit(1)
		}
		for _, run := range runs {
			fmt.Printf("#%d %s %s read=%d imported=%d skipped=%d\n",
				run.ID, run.ImportedAt.Format("2006-01-02 15:04:05"), run.Source, run.RowsRead, run.RowsImported, run.RowsSkipped)
		}
		return
	}

	failed := false
	for _, path := range files {
		run, err := svc.ImportFile(ctx, path)
		if err != nil {
			fmt.Printf("%s: %v\n", path, err)
			failed = true
			continue
		}
		fmt.Printf("%s: read=%d imported=%d skipped=%d\n", path, run.RowsRead, run.RowsImported, run.RowsSkipped)
		if verbose {
			for _, p := range run.Problems {
				fmt.Printf("  %s\n", p)
			}
		}
	}
	if failed {
		database.Close()
		os.Exit(1)
	}
}
