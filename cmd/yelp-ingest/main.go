package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andres-troiano/yelp-mongodb-analytics/internal/config"
	"github.com/andres-troiano/yelp-mongodb-analytics/pkg/cache"
	"github.com/andres-troiano/yelp-mongodb-analytics/pkg/client"
	"github.com/andres-troiano/yelp-mongodb-analytics/pkg/ingest"
	"github.com/andres-troiano/yelp-mongodb-analytics/pkg/logging"
	"github.com/andres-troiano/yelp-mongodb-analytics/pkg/metrics"
	"github.com/andres-troiano/yelp-mongodb-analytics/pkg/pagination"
	"github.com/andres-troiano/yelp-mongodb-analytics/pkg/store"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"

	prettyLogs  bool
	metricsAddr string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "yelp-ingest",
		Short: "Resilient Yelp search ingestion into MongoDB",
		Long: `yelp-ingest fetches restaurant listings from the Yelp search API,
caches raw responses to avoid redundant calls, and idempotently merges
the records into a MongoDB collection keyed by business id.`,
	}

	rootCmd.PersistentFlags().BoolVarP(&prettyLogs, "pretty", "p", false, "Human-readable log output")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve /metrics and /health on this address (e.g. :9090)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("yelp-ingest %s (%s, %s)\n", version, commit, buildDate)
		},
	})

	rootCmd.AddCommand(newIngestCmd())
	rootCmd.AddCommand(newAnalyzeCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newIngestCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "ingest [locations...]",
		Short: "Fetch and merge listings for the given locations",
		Long: `Fetch restaurant listings for each location and merge them into the
store. Without arguments a fixed list of major US cities is ingested.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			if err := cfg.ValidateIngest(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			responseCache, err := newResponseCache(ctx, cfg)
			if err != nil {
				return err
			}

			mongoClient, coll, err := store.Open(ctx, cfg.MongoURI, cfg.DBName, cfg.CollectionName)
			if err != nil {
				return err
			}
			defer func() {
				_ = mongoClient.Disconnect(context.Background())
			}()

			if err := store.EnsureIndexes(ctx, coll); err != nil {
				return err
			}

			fetcher, err := client.New(client.DefaultConfig(cfg.APIKey, responseCache))
			if err != nil {
				return err
			}

			collector := pagination.NewCollector(fetcher, pagination.DefaultConfig())
			orchestrator := ingest.New(collector, store.NewSink(coll), limit)

			result, runErr := orchestrator.Run(ctx, args)
			printResult(cmd.OutOrStdout(), result)
			return runErr
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 50, "Record budget per location (capped at 1000)")
	return cmd
}

func newAnalyzeCmd() *cobra.Command {
	var minBusinesses, minReviews int

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run aggregation queries over the stored listings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			if err := cfg.ValidateStore(); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()

			mongoClient, coll, err := store.Open(ctx, cfg.MongoURI, cfg.DBName, cfg.CollectionName)
			if err != nil {
				return err
			}
			defer func() {
				_ = mongoClient.Disconnect(context.Background())
			}()

			analytics := store.NewAnalytics(coll)
			out := cmd.OutOrStdout()

			categories, err := analytics.AverageRatingPerCategory(ctx, minBusinesses)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "Average rating per category:")
			for _, row := range categories {
				fmt.Fprintf(out, "  %-30s avg=%.2f n=%d\n", row.Category, row.AvgRating, row.NumBusinesses)
			}

			prices, err := analytics.PriceLevelDistribution(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "Price level distribution:")
			for _, row := range prices {
				fmt.Fprintf(out, "  %-10s count=%d avg=%.2f\n", row.Price, row.Count, row.AvgRating)
			}

			pairs, err := analytics.RatingReviewPairs(ctx, minReviews)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Rating/review pairs: %d\n", len(pairs))

			return nil
		},
	}

	cmd.Flags().IntVar(&minBusinesses, "min-businesses", 5, "Minimum businesses per category")
	cmd.Flags().IntVar(&minReviews, "min-reviews", 0, "Minimum review count for rating pairs")
	return cmd
}

// setup loads config, configures logging, and starts the optional metrics
// listener.
func setup() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: prettyLogs,
		Output: os.Stderr,
	})

	if metricsAddr != "" {
		go serveMetrics(metricsAddr)
	}

	return cfg, nil
}

// newResponseCache picks the cache backend: Redis when configured, memory
// otherwise.
func newResponseCache(ctx context.Context, cfg config.Config) (cache.Store, error) {
	if cfg.RedisAddr == "" {
		log.Debug().Msg("No REDIS_ADDR configured, using in-memory response cache")
		return cache.NewMemoryStore(), nil
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis at %s: %w", cfg.RedisAddr, err)
	}

	log.Info().Str("addr", cfg.RedisAddr).Msg("Using Redis response cache")
	return cache.NewRedisStore(redisClient), nil
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})

	log.Info().Str("addr", addr).Msg("Serving metrics")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error().Err(err).Msg("Metrics server failed")
	}
}

// printResult writes the per-location and total summary lines.
func printResult(w io.Writer, result ingest.Result) {
	for _, loc := range result.Locations {
		if loc.Err != nil {
			fmt.Fprintf(w, "Location=%s failed: %v\n", loc.Location, loc.Err)
			continue
		}
		fmt.Fprintf(w, "Location=%s matched=%d upserted=%d\n",
			loc.Location, loc.Summary.Matched, loc.Summary.Upserted)
	}
	fmt.Fprintf(w, "Total matched=%d upserted=%d\n",
		result.Total.Matched, result.Total.Upserted)
}
