package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"ctpty.durgadawaghar.com/internal/canon"
	"ctpty.durgadawaghar.com/internal/classify"
	"ctpty.durgadawaghar.com/internal/config"
	"ctpty.durgadawaghar.com/internal/ingest"
	"ctpty.durgadawaghar.com/internal/parser"
	"ctpty.durgadawaghar.com/internal/pipeline"
	"ctpty.durgadawaghar.com/internal/record"
	"ctpty.durgadawaghar.com/internal/report"
	"ctpty.durgadawaghar.com/internal/store"
	"ctpty.durgadawaghar.com/internal/ui"
	"ctpty.durgadawaghar.com/internal/vocab"
)

const usage = `Usage:
  ctpty [flags] NARRATIVE
  ctpty [flags] -in FILE      (.jsonl, .csv, .ofx/.qfx or one narrative per line)
  ctpty -db FILE -pending     (list queued unknown keys)

Flags:
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		ui.Error(err.Error())
		os.Exit(1)
	}
}

type options struct {
	configPath string
	in         string
	amount     string
	html       string
	jsonOut    bool
	pending    bool
	verbose    bool
}

func run(args []string) error {
	fs := flag.NewFlagSet("ctpty", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}

	var opts options
	fs.StringVar(&opts.configPath, "config", "", "YAML config file")
	fs.StringVar(&opts.in, "in", "", "input file of narratives")
	fs.StringVar(&opts.amount, "amount", "", "signed amount for a single narrative")
	fs.StringVar(&opts.html, "html", "", "write an HTML report to this path")
	fs.BoolVar(&opts.jsonOut, "json", false, "print one JSON response per line")
	fs.BoolVar(&opts.pending, "pending", false, "list pending unknown keys and exit")
	fs.BoolVar(&opts.verbose, "verbose", false, "development logging")
	flags := config.BindFlags(fs)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	if err := config.LoadEnvFiles(".env"); err != nil {
		return err
	}
	cfg, err := config.Load(opts.configPath, os.LookupEnv)
	if err != nil {
		return err
	}
	if err := flags.Apply(&cfg); err != nil {
		return err
	}

	log, err := newLogger(opts.verbose)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var db *store.Store
	if cfg.DBPath != "" {
		db, err = store.Open(ctx, cfg.DBPath, log)
		if err != nil {
			return err
		}
		defer db.Close()
	}

	if opts.pending {
		return listPending(ctx, db)
	}

	entries, err := readEntries(ctx, opts, fs.Args())
	if err != nil {
		return err
	}

	svc, err := buildService(cfg, db, log)
	if err != nil {
		return err
	}

	source := opts.in
	if source == "" {
		source = "args"
	}
	if db != nil {
		runID, err := db.BeginRun(ctx, source)
		if err != nil {
			return err
		}
		log.Info("run started", zap.String("run_id", runID), zap.String("source", source))
	}

	reqs := make([]pipeline.Request, len(entries))
	for i, e := range entries {
		reqs[i] = pipeline.Request{Narrative: e.Narrative, Amount: e.Float()}
	}
	results, err := svc.ResolveBatch(ctx, reqs, cfg.Workers)
	if err != nil {
		return fmt.Errorf("resolving: %w", err)
	}

	rows, counts, unknown := collect(entries, results)
	if opts.jsonOut {
		if err := printJSON(results); err != nil {
			return err
		}
	} else {
		ui.Header("Counterparties")
		for _, r := range rows {
			ui.Resolved(r.Source, r.Format, r.Payer, r.Payee, r.Error != "")
		}
		fmt.Fprintln(ui.Out)
		ui.Summary(counts)
	}

	if db != nil {
		if err := db.FinishRun(ctx, len(entries), unknown); err != nil {
			log.Warn("finishing run", zap.Error(err))
		}
	}

	if opts.html != "" {
		if err := writeReport(ctx, opts.html, rows, db); err != nil {
			return err
		}
		if !opts.jsonOut {
			ui.Success("report written to " + opts.html)
		}
	}
	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

func buildService(cfg config.Config, db *store.Store, log *zap.Logger) (*pipeline.Service, error) {
	var (
		v   *vocab.Vocabulary
		err error
	)
	if cfg.VocabPath != "" {
		v, err = vocab.LoadFile(cfg.VocabPath)
	} else {
		v, err = vocab.Default()
	}
	if err != nil {
		return nil, err
	}

	var families parser.Families
	if cfg.FamiliesPath != "" {
		families, err = parser.LoadFamiliesFile(cfg.FamiliesPath)
	} else {
		families, err = parser.DefaultFamilies()
	}
	if err != nil {
		return nil, err
	}

	engine := canon.New(v,
		canon.WithThreshold(cfg.Threshold),
		canon.WithMaxWords(cfg.MaxWords),
		canon.WithLogger(log),
	)

	classCfg := classify.DefaultConfig()
	classCfg.MinScore = cfg.MinScore

	opts := []pipeline.Option{
		pipeline.WithLogger(log),
		pipeline.WithReferenceName(cfg.ReferenceName),
		pipeline.WithClassifierConfig(classCfg),
	}
	if db != nil {
		opts = append(opts, pipeline.WithReviewSink(db))
	}
	return pipeline.New(engine, families, opts...), nil
}

func readEntries(ctx context.Context, opts options, args []string) ([]ingest.Entry, error) {
	if opts.in != "" {
		if len(args) > 0 {
			return nil, errors.New("give either -in or a narrative, not both")
		}
		return ingest.ReadFile(ctx, opts.in)
	}
	if len(args) == 0 {
		return nil, errors.New("no narrative given (see -h)")
	}
	amount, err := ingest.ParseAmount(opts.amount)
	if err != nil {
		return nil, err
	}
	return []ingest.Entry{{
		Source:    "args",
		Narrative: strings.Join(args, " "),
		Amount:    amount,
	}}, nil
}

func collect(entries []ingest.Entry, results []pipeline.Result) ([]report.Row, map[string]int, int) {
	rows := make([]report.Row, len(results))
	counts := make(map[string]int)
	unknown := 0
	for i, res := range results {
		row := report.Row{
			Source:    entries[i].Source,
			Narrative: entries[i].Narrative,
			Amount:    entries[i].Float(),
		}
		switch {
		case res.Err != nil:
			row.Error = res.Err.Error()
			counts["error"]++
		case res.Response == nil:
			row.Error = "not processed"
			counts["error"]++
		default:
			resp := res.Response
			row.Format = resp.Format
			row.Payer = deref(resp.Ctpty.Payer)
			row.Payee = deref(resp.Ctpty.Payee)
			if resp.Parsed.Failed() {
				row.Error = resp.Parsed.String(record.KeyError)
			}
			counts[resp.Format]++
			unknown += len(resp.Unknown)
		}
		rows[i] = row
	}
	return rows, counts, unknown
}

func printJSON(results []pipeline.Result) error {
	enc := json.NewEncoder(os.Stdout)
	for _, res := range results {
		var v any = res.Response
		if res.Err != nil {
			v = map[string]string{"error": res.Err.Error()}
		}
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
	}
	return nil
}

func writeReport(ctx context.Context, path string, rows []report.Row, db *store.Store) error {
	var sightings []store.Sighting
	if db != nil {
		var err error
		sightings, err = db.Pending(ctx, 500)
		if err != nil {
			return err
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	page := report.Page("Counterparty resolution", report.Results(rows), report.UnknownKeys(sightings))
	if err := page.Render(ctx, f); err != nil {
		f.Close()
		return fmt.Errorf("rendering report: %w", err)
	}
	return f.Close()
}

func listPending(ctx context.Context, db *store.Store) error {
	if db == nil {
		return errors.New("-pending needs -db")
	}
	sightings, err := db.Pending(ctx, 0)
	if err != nil {
		return err
	}
	ui.Header("Unknown keys")
	if len(sightings) == 0 {
		ui.Info("queue is empty")
		return nil
	}
	for _, s := range sightings {
		ui.Info(fmt.Sprintf("%-20s %-28s %4d  %s", s.Label, s.Spelling, s.Seen, s.Format))
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
