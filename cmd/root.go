package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/clock/system"
	"github.com/JakeFAU/catalog-crawler/internal/config"
	"github.com/JakeFAU/catalog-crawler/internal/discovery"
	"github.com/JakeFAU/catalog-crawler/internal/dispatcher"
	"github.com/JakeFAU/catalog-crawler/internal/extract"
	collyfetcher "github.com/JakeFAU/catalog-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/catalog-crawler/internal/hash/sha256"
	"github.com/JakeFAU/catalog-crawler/internal/id/uuid"
	"github.com/JakeFAU/catalog-crawler/internal/images"
	"github.com/JakeFAU/catalog-crawler/internal/logging"
	"github.com/JakeFAU/catalog-crawler/internal/naming"
	"github.com/JakeFAU/catalog-crawler/internal/pipeline"
	"github.com/JakeFAU/catalog-crawler/internal/storage/local"
	"github.com/JakeFAU/catalog-crawler/internal/worker"
)

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context) (pipeline.Report, error)
}

// newRunner is the pipeline factory. It's a variable so tests can swap in a
// fake runner.
var newRunner = buildPipeline

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "catalog-crawler",
		Short: "Ingest a product catalog into a JSON file and an image tree.",
		Long: `catalog-crawler reads one catalog listing page, fetches every product page it
links to, downloads the product images into one folder per product and writes
the titled products to a single JSON artifact.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(logging.Options{
				Development: cfg.Logging.Development,
				Level:       cfg.Logging.Level,
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck // best-effort flush

			return run(cmd.Context(), cfg, logger)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	flags.String("url", "", "catalog listing page URL (catalog.url)")
	flags.String("output", "products.json", "JSON artifact path (output.artifact_path)")
	flags.String("images-dir", "product_images", "image root directory (output.images_dir)")
	flags.Bool("clean", true, "remove the previous artifact and image root first (output.clean_before_run)")
	flags.Duration("timeout", 0, "per-request timeout (http.timeout)")
	flags.String("user-agent", "", "User-Agent header (http.user_agent)")
	flags.Int("detail-concurrency", 8, "concurrent product page fetches (detail.concurrency)")
	flags.Int("image-concurrency", 10, "concurrent image downloads (images.concurrency)")
	flags.Bool("skip-existing", true, "skip images already on disk (images.skip_existing)")
	flags.Bool("preserve-order", false, "keep catalog display order instead of sorting links (discovery.preserve_order)")
	flags.Bool("dev", false, "human-readable development logging (logging.development)")
	flags.String("log-level", "info", "minimum log level (logging.level)")
	flags.String("metrics-textfile", "", "write Prometheus metrics here after the run (metrics.textfile_path)")

	return cmd
}

func run(parent context.Context, cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := newRunner(cfg, logger)
	if err != nil {
		return err
	}
	report, err := runner.Run(ctx)
	if err != nil {
		logger.Error("run failed", zap.Error(err), report.Field())
		return err
	}
	logger.Info("run complete", report.Field())
	return nil
}

func buildPipeline(cfg config.Config, logger *zap.Logger) (Runner, error) {
	store, err := local.New(local.Config{BaseDir: cfg.Output.ImagesDir})
	if err != nil {
		return nil, fmt.Errorf("init image store: %w", err)
	}
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:    cfg.HTTP.UserAgent,
		Timeout:      cfg.HTTP.Timeout,
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
	})
	ext := extract.New(cfg.Selectors)

	links := discovery.New(
		discovery.Config{PreserveOrder: cfg.Discovery.PreserveOrder},
		fetcher,
		ext,
		logger.Named("discovery"),
	)
	details := worker.New(
		dispatcher.New("detail", cfg.Detail.Concurrency),
		fetcher,
		ext,
		uuid.NewURLGenerator(),
		logger.Named("detail"),
	)
	organizer := images.NewOrganizer(
		naming.NewRegistry(store),
		images.NewDownloader(
			dispatcher.New("image", cfg.Images.Concurrency),
			fetcher,
			store,
			cfg.Images.SkipExisting,
			logger.Named("images"),
		),
		logger.Named("images"),
	)

	return pipeline.New(
		pipeline.Config{
			CatalogURL:      cfg.Catalog.URL,
			ArtifactPath:    cfg.Output.ArtifactPath,
			ImagesDir:       cfg.Output.ImagesDir,
			CleanBeforeRun:  cfg.Output.CleanBeforeRun,
			MetricsTextfile: cfg.Metrics.TextfilePath,
		},
		links,
		details,
		organizer,
		sha256.New(),
		system.New(),
		logger.Named("pipeline"),
	), nil
}

// Execute is the main entry point. Any error exits with status 1.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "catalog-crawler: %v\n", err)
		os.Exit(1)
	}
}
