package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joseph-ayodele/writing-eval/internal/common"
	repo "github.com/joseph-ayodele/writing-eval/internal/repository"
)

const usage = `usage: evalctl [--inmem] [--db-path FILE] [--verbose] <command> [flags]

commands:
  migrate                         create or update the schema
  submit  --user U [--attempt ID] [--mode academic|general]
          [--task1 TEXT|@FILE] [--task2 TEXT|@FILE] [--run]
                                  store an attempt and queue it (--run evaluates it now)
  enqueue --attempt ID            queue or re-arm an attempt's job
  run     [--attempt ID] [--all]  process one job (or drain the queue)
  status  [--attempt ID] [--state queued|running|done|failed] [--limit N]
  export  --out FILE [--limit N]  write evaluations to an XLSX workbook
`

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		inmem   = flag.Bool("inmem", false, "use a local SQLite file instead of DB_URL")
		dbPath  = flag.String("db-path", "writing-eval.db", "SQLite file used with --inmem")
		verbose = flag.Bool("verbose", false, "log at debug level")
	)
	flag.Usage = func() { printError("%s", usage) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := common.LoadConfig()
	db, err := repo.InitDatabase(ctx, repo.Config{
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, *inmem, *dbPath, logger)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	defer db.Cleanup()

	app := newApp(db, cfg, logger)
	cmd, args := flag.Arg(0), flag.Args()[1:]

	var runErr error
	switch cmd {
	case "migrate":
		fmt.Println("schema up to date")
	case "submit":
		runErr = app.submit(ctx, args)
	case "enqueue":
		runErr = app.enqueue(ctx, args)
	case "run":
		runErr = app.run(ctx, args)
	case "status":
		runErr = app.status(ctx, args)
	case "export":
		runErr = app.export(ctx, args)
	default:
		printError("Error: unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if runErr != nil {
		if code := common.CodeOf(runErr); code != "" {
			printError("Error [%s]: %v\n", code, runErr)
		} else {
			printError("Error: %v\n", runErr)
		}
		db.Cleanup()
		os.Exit(1)
	}
}
