package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/TobiSchelling/covidstat/internal/config"
	"github.com/TobiSchelling/covidstat/internal/database"
	"github.com/TobiSchelling/covidstat/internal/fetch"
	"github.com/TobiSchelling/covidstat/internal/ingest"
	"github.com/TobiSchelling/covidstat/internal/pipeline"
	"github.com/TobiSchelling/covidstat/internal/report"
	"github.com/TobiSchelling/covidstat/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	dbPath     string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "covidstat",
	Short:   "Import epidemiological time series into SQLite",
	Long:    "covidstat fetches per-region cumulative case, cure and death counts and keeps them in a deduplicated SQLite database.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			setLogFlags(false)
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			if configPath != "" {
				return err
			}
			// Without any config file the embedded defaults still work.
			cfg = config.Default()
		} else {
			cfg, err = config.Load(path)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
		}
		setLogFlags(cfg.Debug())
		return nil
	},
}

func setLogFlags(debug bool) {
	if verbose || debug {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	} else {
		log.SetFlags(log.LstdFlags)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to SQLite database (default: <data_dir>/covidstat.db)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("covidstat", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/covidstat/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure sources and the data directory.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Database: %s\n\n", db.Path())
		fmt.Println("Identities:")
		fmt.Printf("  Requests: %s\n", humanize.Comma(int64(stats.Requests)))
		fmt.Printf("  Areas: %s (%s collections)\n", humanize.Comma(int64(stats.Areas)), humanize.Comma(int64(stats.AreaCollections)))
		fmt.Printf("  Dates: %s\n", humanize.Comma(int64(stats.Dates)))
		fmt.Println("\nDaily stats:")
		fmt.Printf("  Rows: %s\n", humanize.Comma(int64(stats.DailyStats)))
		if stats.FirstDay != nil && stats.LastDay != nil {
			fmt.Printf("  Range: %s\n", report.FormatRange(*stats.FirstDay, *stats.LastDay))
		}

		requests, err := db.GetAllRequests()
		if err != nil {
			return fmt.Errorf("listing requests: %w", err)
		}
		if len(requests) > 0 {
			fmt.Println("\nSources:")
			for _, r := range requests {
				fmt.Printf("  [%d] %s\n", r.ID, r.Origin)
			}
		}
		return nil
	},
}

// --- import command ---

var importSections []string

var importCmd = &cobra.Command{
	Use:   "import [path-or-url]",
	Short: "Import one payload from a file or URL",
	Long: "Import one payload. Sections default to those configured for a source with the same URL, " +
		"or to the first configured source's sections.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		location := args[0]
		origin := location
		if !fetch.IsRemote(location) {
			if abs, err := filepath.Abs(location); err == nil {
				origin = "file://" + abs
			}
		}

		sections := importSectionsFor(location)
		if len(sections) == 0 {
			return fmt.Errorf("no sections to import; pass --section or configure a source")
		}

		ctx := context.Background()
		payload, err := fetch.NewFetcher(cfg.FetchTimeout(), cfg.Fetch.UserAgent).Fetch(ctx, location)
		if err != nil {
			return err
		}

		result, err := ingest.NewIngester(db).Ingest(ctx, origin, payload, sections)
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}

		fmt.Println("Import complete:")
		for _, s := range result.Sections {
			fmt.Printf("  %s: %d regions, %d dates, %s new, %s updated, %s unchanged\n",
				s.Key, s.Regions, s.Dates,
				humanize.Comma(int64(s.Created)), humanize.Comma(int64(s.Updated)), humanize.Comma(int64(s.Unchanged)))
		}
		return nil
	},
}

func init() {
	importCmd.Flags().StringSliceVarP(&importSections, "section", "s", nil, "Section key to import (repeatable)")
}

func importSectionsFor(location string) []ingest.Section {
	if len(importSections) > 0 {
		out := make([]ingest.Section, len(importSections))
		for i, key := range importSections {
			out[i] = ingest.Section{Key: key}
			// Keep configured region/collection names when the key matches.
			for _, src := range cfg.Sources {
				for _, s := range src.Sections {
					if s.Key == key {
						out[i] = ingest.Section{Key: key, DefaultRegion: s.DefaultRegion, Collection: s.Collection}
					}
				}
			}
		}
		return out
	}
	for _, src := range cfg.Sources {
		if src.URL == location {
			return pipeline.Sections(src)
		}
	}
	if len(cfg.Sources) > 0 {
		return pipeline.Sections(cfg.Sources[0])
	}
	return nil
}

// --- run command ---

var dryRun bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch and import every configured source",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		pipe := pipeline.New(cfg, db)

		var result *pipeline.Result
		if dryRun {
			result = pipe.DryRun()
		} else {
			result = pipe.Run(context.Background())
		}

		for i, step := range result.Steps {
			fmt.Printf("\nStep %d/%d: %s\n", i+1, len(result.Steps), step.Name)
			if step.Err != nil {
				fmt.Printf("  Error: %v\n", step.Err)
			} else {
				fmt.Printf("  %s\n", step.Summary)
			}
		}

		if err := result.Err(); err != nil {
			return err
		}
		if !dryRun {
			fmt.Println("\nImport complete! Run 'covidstat serve' to browse the data.")
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without executing")
}

// --- report command ---

var (
	reportOrigin   string
	reportBase     int
	reportLast     int
	reportMarkdown bool
)

var reportCmd = &cobra.Command{
	Use:   "report [area]",
	Short: "Print daily values, deltas and growth for an area",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		rep, err := report.Build(db, args[0], report.Options{
			Origin: reportOrigin,
			Base:   reportBase,
			Last:   reportLast,
		})
		if err != nil {
			return err
		}

		if reportMarkdown {
			fmt.Print(rep.Markdown())
			return nil
		}
		fmt.Printf("Source: %s\n", rep.Origin)
		fmt.Println(rep.Table())
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportOrigin, "origin", "", "Request origin to report on (default: the one with most days)")
	reportCmd.Flags().IntVar(&reportBase, "base", -1, "Day index used as growth base (default: first day with cases)")
	reportCmd.Flags().IntVar(&reportLast, "last", 0, "Only show the trailing N days")
	reportCmd.Flags().BoolVar(&reportMarkdown, "markdown", false, "Print markdown instead of a table")
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default: server.port from config)")
}

func openDB() (*database.DB, error) {
	if dbPath != "" {
		return database.Open(dbPath)
	}
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return database.Open(filepath.Join(dataDir, "covidstat.db"))
}
