package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"golang.org/x/term"

	"github.com/vldos/telegram-survey-bot/core/buildinfo"
	coredatabase "github.com/vldos/telegram-survey-bot/core/database"
	"github.com/vldos/telegram-survey-bot/survey/app"
	"github.com/vldos/telegram-survey-bot/survey/catalog"
	"github.com/vldos/telegram-survey-bot/survey/report"
	"github.com/vldos/telegram-survey-bot/survey/responses"
)

// IO carries the streams the command writes to.
type IO struct {
	Out    io.Writer
	ErrOut io.Writer
}

type deps struct {
	Connect    func(context.Context, coredatabase.Config) (*sqlx.DB, error)
	Now        func() time.Time
	IsTerminal func(io.Writer) bool
}

func (d *deps) defaults() {
	if d.Connect == nil {
		d.Connect = coredatabase.Connect
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.IsTerminal == nil {
		d.IsTerminal = isTerminal
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func run(ctx context.Context, args []string, io IO, d deps) error {
	if io.Out == nil || io.ErrOut == nil {
		return fmt.Errorf("invalid IO")
	}
	d.defaults()

	flags := flag.NewFlagSet("surveyreport", flag.ContinueOnError)
	flags.SetOutput(io.ErrOut)

	defaultConfig := os.Getenv("CONFIG_PATH")
	if defaultConfig == "" {
		defaultConfig = "config.yaml"
	}
	var (
		configPath  string
		envFile     string
		out         string
		dir         string
		bom         bool
		summaryOnly bool
		version     bool
	)
	flags.StringVar(&configPath, "config", defaultConfig, "Path to the YAML config")
	flags.StringVar(&envFile, "env", ".env", "Env file loaded before the config when present")
	flags.StringVar(&out, "out", "", `CSV destination; "-" for stdout. Default: a timestamped file, or stdout when it is not a terminal`)
	flags.StringVar(&dir, "dir", ".", "Directory for the timestamped CSV file")
	flags.BoolVar(&bom, "bom", false, "Prefix the CSV with a UTF-8 byte order mark")
	flags.BoolVar(&summaryOnly, "summary-only", false, "Print the summary without exporting CSV")
	flags.BoolVar(&version, "version", false, "Print the build version and exit")

	if err := flags.Parse(args); err != nil {
		return err
	}
	if version {
		fmt.Fprintln(io.Out, buildinfo.String())
		return nil
	}
	if flags.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", flags.Args())
	}

	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return fmt.Errorf("load %s: %w", envFile, err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("stat %s: %w", envFile, err)
		}
	}

	cfg, err := app.LoadStorage(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cat, err := app.LoadCatalog(cfg.Survey.CatalogPath)
	if err != nil {
		return err
	}

	db, err := d.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := responses.NewStore(db).LoadAll(ctx)
	var readErr *responses.ReadError
	if errors.As(err, &readErr) {
		fmt.Fprintf(io.ErrOut, "no data: %v\n", readErr)
		return report.WriteSummary(io.Out, report.Summary{})
	}
	if err != nil {
		return err
	}

	csvToStdout := out == "-" || (out == "" && !d.IsTerminal(io.Out))
	summaryOut := io.Out
	if csvToStdout && !summaryOnly {
		summaryOut = io.ErrOut
	}
	if err := report.WriteSummary(summaryOut, report.Build(records, cat)); err != nil {
		return err
	}
	if summaryOnly || len(records) == 0 {
		return nil
	}

	opts := report.CSVOptions{BOM: bom}
	if csvToStdout {
		return report.ExportCSV(io.Out, records, cat, opts)
	}

	path := out
	if path == "" {
		path = filepath.Join(dir, report.FileName(d.Now()))
	}
	if err := writeCSVFile(path, records, cat, opts); err != nil {
		return err
	}
	fmt.Fprintf(io.Out, "\nExported %d responses to %s\n", len(records), path)
	return nil
}

func writeCSVFile(path string, records []responses.Record, cat *catalog.Catalog, opts report.CSVOptions) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	return report.ExportCSV(f, records, cat, opts)
}
