package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/newsforge/newsforge/internal/config"
	"github.com/newsforge/newsforge/internal/database"
	"github.com/newsforge/newsforge/internal/extract"
	"github.com/newsforge/newsforge/internal/ingest"
	"github.com/newsforge/newsforge/internal/openrouter"
	"github.com/newsforge/newsforge/internal/preview"
	"github.com/newsforge/newsforge/internal/report"
	"github.com/newsforge/newsforge/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "newsforge",
	Short:   "Keyword-driven news dashboard",
	Long:    "NewsForge turns a keyword list into rated news cards via web-search-enabled models, with a local dashboard to read and archive them.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(keywordsCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("newsforge", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/newsforge/",
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
		fmt.Println("Edit it to set the model and feeds, then export your OpenRouter API key.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
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
		fmt.Println("Cards:")
		fmt.Printf("  Active: %d\n", stats.ActiveCards)
		fmt.Printf("  Archived: %d\n", stats.ArchivedCards)
		fmt.Println("\nKeywords:")
		fmt.Printf("  Total: %d\n", stats.Keywords)
		fmt.Printf("  Enabled: %d\n", stats.EnabledKeywords)
		fmt.Println("\nReports:")
		fmt.Printf("  Generated: %d\n", stats.Reports)
		fmt.Printf("  Total cost: $%.4f\n", stats.TotalCostSpent)
		return nil
	},
}

// --- keywords command ---

var keywordsCmd = &cobra.Command{
	Use:   "keywords",
	Short: "Manage search keywords",
}

var keywordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all keywords",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		keywords, err := db.GetAllKeywords()
		if err != nil {
			return err
		}

		if len(keywords) == 0 {
			fmt.Println("No keywords defined. Add one with: newsforge keywords add")
			return nil
		}

		fmt.Println("Keywords:")
		fmt.Println()
		for _, k := range keywords {
			icon := " "
			if k.Enabled {
				icon = "*"
			}
			fmt.Printf("  [%d] %s %s\n", k.ID, icon, k.Text)
		}
		return nil
	},
}

var keywordsAddCmd = &cobra.Command{
	Use:   "add [text]",
	Short: "Add a keyword",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		id, err := db.InsertKeyword(args[0])
		if err != nil {
			return err
		}
		if id == 0 {
			fmt.Printf("Keyword already exists: %s\n", args[0])
			return nil
		}
		fmt.Printf("Added keyword [%d]: %s\n", id, args[0])
		return nil
	},
}

var keywordsRemoveCmd = &cobra.Command{
	Use:   "remove [id]",
	Short: "Remove a keyword",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid keyword ID: %s", args[0])
		}

		keyword, err := db.GetKeyword(id)
		if err != nil {
			return err
		}
		if keyword == nil {
			return fmt.Errorf("keyword %d not found", id)
		}

		if err := db.DeleteKeyword(id); err != nil {
			return err
		}
		fmt.Printf("Removed keyword [%d]: %s\n", id, keyword.Text)
		return nil
	},
}

var keywordsToggleCmd = &cobra.Command{
	Use:   "toggle [id]",
	Short: "Toggle a keyword's enabled state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid keyword ID: %s", args[0])
		}

		keyword, err := db.GetKeyword(id)
		if err != nil {
			return err
		}
		if keyword == nil {
			return fmt.Errorf("keyword %d not found", id)
		}

		if err := db.ToggleKeyword(id); err != nil {
			return err
		}
		newState := "disabled"
		if !keyword.Enabled {
			newState = "enabled"
		}
		fmt.Printf("Keyword [%d] %s: %s\n", id, keyword.Text, newState)
		return nil
	},
}

func init() {
	keywordsCmd.AddCommand(keywordsListCmd)
	keywordsCmd.AddCommand(keywordsAddCmd)
	keywordsCmd.AddCommand(keywordsRemoveCmd)
	keywordsCmd.AddCommand(keywordsToggleCmd)
}

// --- models command ---

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List available models and their prices",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := openrouter.NewClient(apiKey())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		catalog, err := client.FetchModels(ctx)
		if err != nil {
			return fmt.Errorf("fetching models: %w", err)
		}

		fmt.Printf("%-48s %12s %12s\n", "MODEL", "PROMPT/1M", "COMPLETE/1M")
		for _, m := range catalog.Models() {
			fmt.Printf("%-48s %12.4f %12.4f\n", m.ID, m.PromptPrice, m.CompletionPrice)
		}
		return nil
	},
}

// --- generate command ---

// estTokensPerKeyword is a rough pre-run cost estimate basis; real usage
// comes back with each response.
const estTokensPerKeyword = 500

// apiKeyPattern matches OpenRouter's documented key format. A mismatch
// is worth a warning, not a refusal: the format has changed before.
var apiKeyPattern = regexp.MustCompile(`^sk-or-v1-[a-f0-9]{64}$`)

// watchdogTimeout cancels a run where nothing has settled and no cards
// arrived. Individual request timeouts and retries normally settle tasks
// well before this fires; firing means the run is globally stuck.
const watchdogTimeout = 30 * time.Second

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a news report from enabled keywords",
	RunE: func(cmd *cobra.Command, args []string) error {
		key := apiKey()
		if key == "" {
			return fmt.Errorf("no API key: set %s in the environment", cfg.OpenRouter.APIKeyEnv)
		}
		if !apiKeyPattern.MatchString(key) {
			fmt.Println("Warning: API key does not look like an OpenRouter key (sk-or-v1-...)")
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		keywords, err := db.GetEnabledKeywords()
		if err != nil {
			return err
		}
		if len(keywords) == 0 {
			return fmt.Errorf("no enabled keywords; add one with: newsforge keywords add")
		}

		var rules *extract.Rules
		if cfg.Search.Mode == "text" && cfg.Search.ConversionRules != "" {
			rules, err = extract.ParseRules(cfg.Search.ConversionRules)
			if err != nil {
				return err
			}
		}

		client := openrouter.NewClient(key)
		model := openrouter.EnsureOnline(cfg.OpenRouter.Model)

		// Pricing is nice to have, not load bearing.
		catalogCtx, cancelCatalog := context.WithTimeout(context.Background(), 10*time.Second)
		catalog, err := client.FetchModels(catalogCtx)
		cancelCatalog()
		if err != nil {
			fmt.Println("Warning: could not fetch model prices; costs will show as $0")
			catalog = openrouter.NewCatalog(nil)
		}

		fmt.Printf("Generating report: %d keywords, model %s\n", len(keywords), model)
		if m, ok := catalog.Lookup(model); ok {
			est := float64(len(keywords)*estTokensPerKeyword) / 1e6 * m.TotalCostPer1M()
			fmt.Printf("Estimated cost: ~$%.4f\n", est)
		}

		gen := report.New(report.Options{
			Completer:    client,
			Pricer:       catalog,
			Cards:        db,
			History:      db,
			Model:        cfg.OpenRouter.Model,
			Instructions: cfg.Search.Instructions,
			Parameters:   &cfg.Parameters,
			Mode:         cfg.Search.Mode,
			Rules:        rules,
		})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		watchdogFired := false
		watchdog := time.AfterFunc(watchdogTimeout, func() {
			p := gen.Progress()
			if p.Completed == 0 && p.Cards == 0 {
				watchdogFired = true
				cancel()
			}
		})
		defer watchdog.Stop()

		entry, err := gen.Generate(ctx, keywords)
		if err != nil {
			if watchdogFired {
				return fmt.Errorf("no searches completed within %s; check network and API key, then retry", watchdogTimeout)
			}
			if errors.Is(err, context.Canceled) {
				fmt.Println("\nRun cancelled. Cards stored so far are kept; no history entry written.")
				return nil
			}
			return err
		}

		fmt.Println()
		for _, r := range gen.Snapshot() {
			switch r.Status {
			case report.StatusComplete:
				fmt.Printf("  %s: %d stories ($%.4f, %s)\n", r.Keyword, r.StoriesFound, r.Cost, r.Duration.Round(time.Millisecond))
			case report.StatusError:
				fmt.Printf("  %s: FAILED - %s\n", r.Keyword, r.Error)
			}
		}

		fmt.Printf("\nReport %s complete: %d cards, $%.4f spent, avg rating %.1f\n",
			entry.ID, entry.TotalCards, entry.CostSpent, entry.AvgRating)
		fmt.Println("Run 'newsforge serve' to view the dashboard.")
		return nil
	},
}

// --- import command ---

var importDaysBack int

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import cards from configured RSS feeds",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(cfg.Feeds) == 0 {
			return fmt.Errorf("no feeds configured; add some under 'feeds:' in the config")
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		result := ingest.NewImporter(db, cfg.Feeds).Run(importDaysBack)

		fmt.Println("\nImport complete:")
		fmt.Printf("  Imported: %d\n", result.Imported)
		fmt.Printf("  Duplicates skipped: %d\n", result.Skipped)
		fmt.Printf("  Failed: %d\n", result.Failed)
		return nil
	},
}

func init() {
	importCmd.Flags().IntVar(&importDaysBack, "days-back", 7, "Only import entries published within this many days")
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local dashboard server",
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
		return server.Serve(db, preview.NewFetcher(0), port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (defaults to config)")
}

func apiKey() string {
	env := "OPENROUTER_API_KEY"
	if cfg != nil && cfg.OpenRouter.APIKeyEnv != "" {
		env = cfg.OpenRouter.APIKeyEnv
	}
	return os.Getenv(env)
}

func openDB() (*database.DB, error) {
	return database.Open(cfg.DatabasePath())
}
