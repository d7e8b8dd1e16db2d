package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"

	"marketplace-sync/config"
	"marketplace-sync/server"
	"marketplace-sync/services"
	"marketplace-sync/storage"
	"marketplace-sync/utils"
)

const usage = `Usage: marketplace-sync <command> [flags]

Commands:
  previews [-scrape] [-json]   import the latest listing previews snapshot
  details [-json]              import the latest detailed listings and price estimates
  status [-json]               show how many previews still need a detail scrape
  export [-dir path]           write the catalog to CSV
  serve [-addr :8080]          start the HTTP API
`

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := config.Load()
	logger := utils.NewLoggerWithLevel(utils.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", red("✗"), err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *utils.Logger, command string, args []string) error {
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "print the result as JSON")
	var (
		scrape    *bool
		exportDir *string
		addr      *string
	)
	switch command {
	case "previews":
		scrape = fs.Bool("scrape", false, "run the scraper command before importing")
	case "details", "status":
	case "export":
		exportDir = fs.String("dir", cfg.ExportDir, "directory the CSV files are written to")
	case "serve":
		addr = fs.String("addr", cfg.HTTPAddr, "listen address")
	case "help", "-h", "--help":
		fmt.Print(usage)
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command: %s", command)
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := storage.OpenPostgres(ctx, cfg.DSN(), storage.Options{
		MaxConnections:     cfg.MaxConnections,
		ConnectionLifetime: cfg.ConnectionLifetime,
		ConnectRetries:     cfg.ConnectRetries,
	}, logger)
	if err != nil {
		logger.Error("Failed to connect to PostgreSQL: %v", err)
		logger.Error("Make sure Docker is running: docker compose up -d")
		return err
	}
	defer store.Close()

	scraper := services.NewScraperRunner(cfg.ScraperCommand)
	pipeline := services.NewPipeline(services.PipelineConfig{
		ScrapedDataDir: cfg.ScrapedDataDir,
		ResponsesDir:   cfg.ResponsesDir,
	}, store, scraper, logger)

	switch command {
	case "previews":
		return printResult(pipeline.ImportPreviews(ctx, *scrape), *asJSON)
	case "details":
		return printResult(pipeline.ImportDetails(ctx), *asJSON)
	case "status":
		st, err := pipeline.Status(ctx)
		if err != nil {
			return err
		}
		if *asJSON {
			return printJSON(st)
		}
		fmt.Printf("%s %d previews, %s scraped, %s pending (%d%%)\n",
			cyan("Status:"), st.Total, green(st.Scraped), yellow(st.Pending), st.PendingPercentage)
		return nil
	case "export":
		return export(ctx, store, *exportDir, logger)
	default:
		return serve(ctx, pipeline, scraper != nil, *addr, logger)
	}
}

func printResult(res services.Result, asJSON bool) error {
	if asJSON {
		if err := printJSON(res); err != nil {
			return err
		}
	} else if res.Success {
		fmt.Printf("%s %s (%s)\n", green("✓"), res.Message, res.Snapshot)
		if res.Stats != nil {
			fmt.Printf("  total: %d | created: %s | updated: %s", res.Stats.Total, green(res.Stats.Created), yellow(res.Stats.Updated))
			if n := res.Stats.PriceEstimates; n != nil {
				fmt.Printf(" | price estimates: %s", cyan(*n))
			}
			fmt.Println()
		}
		if res.ScraperOutput != "" {
			fmt.Printf("%s\n%s", cyan("Scraper output:"), res.ScraperOutput)
		}
	} else {
		fmt.Printf("%s %s\n", red("✗"), res.Error)
		if res.Stats != nil {
			fmt.Printf("  before failure: created %d | updated %d of %d\n", res.Stats.Created, res.Stats.Updated, res.Stats.Total)
		}
		if res.Details != "" {
			fmt.Printf("%s\n%s\n", yellow("Details:"), res.Details)
		}
	}

	if !res.Success {
		return fmt.Errorf("%s failure", res.Kind)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func export(ctx context.Context, catalog storage.Catalog, dir string, logger *utils.Logger) error {
	entries, err := catalog.FetchCatalog(ctx)
	if err != nil {
		return err
	}
	w, err := storage.NewCSVWriter(dir)
	if err != nil {
		return err
	}
	listingsPath, estimatesPath, err := w.WriteCatalog(entries)
	if err != nil {
		return err
	}
	logger.Info("Exported %d listings", len(entries))
	fmt.Printf("%s %s\n%s %s\n", green("✓"), listingsPath, green("✓"), estimatesPath)
	return nil
}

func serve(ctx context.Context, pipeline *services.Pipeline, scrapeByDefault bool, addr string, logger *utils.Logger) error {
	srv := server.New(pipeline, server.Options{ScrapeByDefault: scrapeByDefault, AccessLog: true}, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Listen(addr) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
