package main

import (
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/aluiziolira/amiami-scraper/config"
	"github.com/aluiziolira/amiami-scraper/models"
)

type rootOptions struct {
	verbose bool
}

// queryFlags are the listing parameters accepted on the command line.
type queryFlags struct {
	pages         int
	keyword       string
	types         []string
	category1     string
	category2     string
	sort          string
	alwaysDetails bool
}

func (f *queryFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.IntVar(&f.pages, "pages", 0, "Maximum listing pages to crawl (0 crawls until the listing runs out)")
	flags.StringVar(&f.keyword, "keyword", "", "Search keyword")
	flags.StringSliceVar(&f.types, "type", nil, "Item type filter, repeatable (NEW, PRE_ORDER, BACK_ORDER, PRE_OWNED or a raw flag)")
	flags.StringVar(&f.category1, "category1", "", "Category1 code or name (AGE_RESTRICTED)")
	flags.StringVar(&f.category2, "category2", "", "Category2 code or name (FOREIGN, CHARACTER, BISHOUJO)")
	flags.StringVar(&f.sort, "sort", "", "Sort key (RECENT_UPDATE, RECOMMENDATION, RELEASE_DATE, PREOWNED); defaults from --type")
}

func (f *queryFlags) registerDetails(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.alwaysDetails, "always-details", false, "Fetch detail pages for every item, not only pre-owned ones")
}

func (f *queryFlags) query() (models.Query, error) {
	spec := config.QuerySpec{
		NumPages:  f.pages,
		Keyword:   f.keyword,
		Types:     f.types,
		Category1: f.category1,
		Category2: f.category2,
		SortKey:   f.sort,
	}
	return spec.Query()
}

// NewRootCmd builds the amiscraper command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "amiscraper",
		Short: "Crawl AmiAmi listings and enrich them with detail pages",
		Long: `amiscraper crawls the AmiAmi listing API into a raw dump, then enriches every
row from the detail API into a resumable, checkpointed dump registered in a manifest.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
			logger, _ := newLogger(opts.verbose)
			slog.SetDefault(logger)
		},
	}
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(newRunCmd(), newCrawlCmd(), newEnrichCmd())
	return cmd
}

func newRunCmd() *cobra.Command {
	flags := &queryFlags{}
	var batchPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Crawl and enrich one query, or every query of a batch file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			var queries []models.Query
			if batchPath != "" {
				batch, err := config.LoadBatch(batchPath)
				if err != nil {
					return err
				}
				if batch.AlwaysScrapDetails != nil {
					cfg.AlwaysScrapDetails = *batch.AlwaysScrapDetails
				}
				if queries, err = batch.Resolve(); err != nil {
					return err
				}
			} else {
				q, err := flags.query()
				if err != nil {
					return err
				}
				queries = []models.Query{q}
			}
			if cmd.Flags().Changed("always-details") {
				cfg.AlwaysScrapDetails = flags.alwaysDetails
			}

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.runQueries(cmd.Context(), queries)
		},
	}
	flags.register(cmd)
	flags.registerDetails(cmd)
	cmd.Flags().StringVar(&batchPath, "config", "", "Batch file (.toml, .yaml) listing the queries to run")
	return cmd
}

func newCrawlCmd() *cobra.Command {
	flags := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl the listing for one query and write the raw dump only",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			q, err := flags.query()
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.crawl(cmd.Context(), q)
		},
	}
	flags.register(cmd)
	return cmd
}

func newEnrichCmd() *cobra.Command {
	flags := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "enrich <timestamp> <raw-filename>",
		Short: "Enrich an existing raw dump, resuming from its last checkpoint",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("always-details") {
				cfg.AlwaysScrapDetails = flags.alwaysDetails
			}

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.enrich(cmd.Context(), args[0], args[1])
		},
	}
	flags.registerDetails(cmd)
	return cmd
}

func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if err := config.ApplyEnv(cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
