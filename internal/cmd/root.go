// Package cmd provides the command-line interface for sitesearch.
// It handles configuration loading and wires the crawler, indexer and
// search engine together.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lemmatic/sitesearch/internal/config"
	"github.com/lemmatic/sitesearch/internal/crawler"
	"github.com/lemmatic/sitesearch/internal/indexer"
	"github.com/lemmatic/sitesearch/internal/lemma"
	"github.com/lemmatic/sitesearch/internal/logging"
	"github.com/lemmatic/sitesearch/internal/search"
	"github.com/lemmatic/sitesearch/internal/storage"
)

var (
	cfgFile   string
	version   string
	buildTime string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sitesearch",
	Short: "A lemma-based site crawler and full-text search engine",
	Long: `sitesearch crawls a configured list of sites, builds a lemma-based
inverted index of their pages and answers ranked full-text queries
over that index.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets version information for the CLI
func SetVersionInfo(v, bt string) {
	version = v
	buildTime = bt
	rootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildTime)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./sitesearch.yml)")
	rootCmd.PersistentFlags().StringP("database", "d", "./sitesearch.db", "Path to SQLite database file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-file", "", "Log file path (console only when empty)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format: text or json")

	bindFlags := []struct {
		viperKey string
		flagName string
	}{
		{"database_path", "database"},
		{"log.level", "log-level"},
		{"log.file", "log-file"},
		{"log.format", "log-format"},
	}

	for _, bind := range bindFlags {
		if err := viper.BindPFlag(bind.viperKey, rootCmd.PersistentFlags().Lookup(bind.flagName)); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to bind flag %s: %v\n", bind.flagName, err)
		}
	}

	rootCmd.AddCommand(newIndexCmd())
	rootCmd.AddCommand(newSearchCmd())
	rootCmd.AddCommand(newDeleteSiteCmd())
	rootCmd.AddCommand(newStatsCmd())
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("sitesearch")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("SITESEARCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig merges defaults, config file and flags, then validates.
func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setupLogging() error {
	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.ParseLevel(viper.GetString("log.level"))
	logCfg.Format = viper.GetString("log.format")
	logCfg.FilePath = viper.GetString("log.file")
	return logging.SetDefault(*logCfg)
}

func openStorage(cfg *config.Config) (*storage.SQLiteStorage, error) {
	dbDir := filepath.Dir(cfg.DatabasePath)
	if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	return storage.NewSQLiteStorage(cfg.DatabasePath)
}

// engineParts wires the shared components: storage, analyzer, profiles,
// crawler, orchestrator and search engine.
type engineParts struct {
	cfg      *config.Config
	store    *storage.SQLiteStorage
	crawler  *crawler.Crawler
	service  *indexer.Service
	searcher *search.Engine
	cache    *search.Cache
}

func buildEngine(ctx context.Context) (*engineParts, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	store, err := openStorage(cfg)
	if err != nil {
		return nil, err
	}

	analyzer, err := lemma.New(cfg.Language)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize morphological analyzer: %w", err)
	}

	profiles := config.NewProfiles(cfg.Profiles)
	profiles.StartRefresh(ctx, cfg.ProfileRefresh)

	cr, err := crawler.New(cfg, profiles)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	cache, err := search.NewCache(cfg.CacheTTL)
	if err != nil {
		cr.Close()
		_ = store.Close()
		return nil, err
	}

	service, err := indexer.NewService(cfg, store, cr, analyzer, cache)
	if err != nil {
		cache.Close()
		cr.Close()
		_ = store.Close()
		return nil, err
	}

	searcher := search.NewEngine(store, analyzer, cache, search.Options{
		FrequencyThreshold: cfg.FrequencyThreshold,
		ShortQueryLemmas:   cfg.ShortQueryLemmas,
		SnippetRadius:      cfg.SnippetRadius,
	})

	return &engineParts{
		cfg:      cfg,
		store:    store,
		crawler:  cr,
		service:  service,
		searcher: searcher,
		cache:    cache,
	}, nil
}

func (p *engineParts) close() {
	p.service.Close()
	p.crawler.Close()
	p.cache.Close()
	_ = p.store.Close()
}

func newIndexCmd() *cobra.Command {
	var pageURL string

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index all configured sites, or a single page with --page",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setupLogging(); err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			parts, err := buildEngine(ctx)
			if err != nil {
				return err
			}
			defer parts.close()

			if pageURL != "" {
				return parts.service.IndexPage(ctx, pageURL)
			}

			// SIGINT/SIGTERM request a cooperative stop of the run.
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigCh)
			go func() {
				<-sigCh
				fmt.Fprintln(os.Stderr, "Interrupt received, stopping indexing...")
				_ = parts.service.Stop()
			}()

			if err := parts.service.Start(ctx); err != nil {
				return err
			}
			parts.service.Wait()
			return nil
		},
	}

	cmd.Flags().StringVar(&pageURL, "page", "", "Re-index a single page URL instead of all sites")
	return cmd
}

func newSearchCmd() *cobra.Command {
	var (
		siteURL string
		offset  int
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Run a ranked full-text query against the index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setupLogging(); err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			parts, err := buildEngine(ctx)
			if err != nil {
				return err
			}
			defer parts.close()

			result, err := parts.searcher.Search(strings.Join(args, " "), siteURL, offset, limit)
			if err != nil {
				return err
			}

			fmt.Printf("%d result(s)\n", result.Count)
			for _, item := range result.Items {
				fmt.Printf("%.3f  %s%s  %s\n", item.Relevance, item.Site, item.URI, item.Title)
				fmt.Printf("       %s\n", item.Snippet)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&siteURL, "site", "", "Restrict the search to one configured site URL")
	cmd.Flags().IntVar(&offset, "offset", 0, "Result offset")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of results")
	return cmd
}

func newDeleteSiteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-site ID",
		Short: "Delete a site and everything indexed under it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setupLogging(); err != nil {
				return err
			}

			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid site id %q", args[0])
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			parts, err := buildEngine(ctx)
			if err != nil {
				return err
			}
			defer parts.close()

			return parts.service.DeleteSite(id)
		},
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show per-site page and lemma counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setupLogging(); err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStorage(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			stats, err := indexer.Statistics(store)
			if err != nil {
				return err
			}

			for _, s := range stats {
				fmt.Printf("%-40s %-10s pages=%-6d lemmas=%-6d %s\n",
					s.Site.URL, s.Site.Status, s.Pages, s.Lemmas, s.Site.LastError)
			}
			return nil
		},
	}
}
