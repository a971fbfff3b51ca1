// Command nimbusd runs the build-and-deploy orchestrator: it accepts a
// free-text prompt over HTTP, has an LLM generate a project, builds it in a
// sandbox container, deploys it to the edge, and streams progress back to
// the caller over SSE.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/c360studio/nimbusd/internal/config"
	"github.com/c360studio/nimbusd/internal/deploy"
	"github.com/c360studio/nimbusd/internal/framework"
	"github.com/c360studio/nimbusd/internal/httpapi"
	"github.com/c360studio/nimbusd/internal/jobstore"
	"github.com/c360studio/nimbusd/internal/llmclient"
	"github.com/c360studio/nimbusd/internal/logarchive"
	"github.com/c360studio/nimbusd/internal/pipeline"
	"github.com/c360studio/nimbusd/internal/sandbox"
	"github.com/c360studio/nimbusd/internal/sweeper"
)

const sandboxImage = "nimbusd/sandbox:latest"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string

	rootCmd := &cobra.Command{
		Use:     "nimbusd",
		Short:   "Build-and-deploy orchestrator for AI-generated web apps",
		Version: "dev",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), configPath)
		},
	}
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to nimbusd.yaml")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one cleanup sweep pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return sweepOnce(cmd.Context(), configPath)
		},
	}
	rootCmd.AddCommand(sweepCmd)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

func loadConfig(configPath string) (config.Config, *slog.Logger, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	if configPath == "" {
		configPath = config.DetectProjectConfig()
	}

	loader := config.Loader{Logger: logger}
	cfg, err := loader.Load(configPath)
	if err != nil {
		return config.Config{}, logger, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, logger, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, logger, nil
}

// components bundles everything wired up so both serve and sweep can share
// the construction logic.
type components struct {
	store   *jobstore.Store
	archive *logarchive.Archive
	creds   deploy.Credentials
	sw      *sweeper.Sweeper
	pipe    *pipeline.Pipeline
}

func buildComponents(ctx context.Context, cfg config.Config, logger *slog.Logger) (*components, error) {
	store, err := jobstore.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}

	archive, err := logarchive.Open(ctx, cfg.NATSURL)
	if err != nil {
		return nil, fmt.Errorf("open log archive: %w", err)
	}

	creds := deploy.Credentials{APIToken: cfg.CloudflareAPIToken, AccountID: cfg.CloudflareAccountID}

	sw := &sweeper.Sweeper{Store: store, Archive: archive, Deploy: creds, Logger: logger}

	c := &components{store: store, archive: archive, creds: creds, sw: sw}

	if cfg.OpenRouterAPIKey != "" {
		llm, err := llmclient.NewClient("openrouter", llmclient.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("create llm client: %w", err)
		}

		provisioner, err := sandbox.NewDockerProvisioner(sandboxImage)
		if err != nil {
			return nil, fmt.Errorf("create sandbox provisioner: %w", err)
		}
		driver := &sandbox.Driver{Provisioner: provisioner, Logger: logger}

		c.pipe = &pipeline.Pipeline{
			Store:         store,
			Archive:       archive,
			LLM:           llm,
			Frameworks:    framework.NewRegistry(),
			SandboxDriver: driver,
			Deploy:        creds,
			DefaultModel:  cfg.DefaultModel,
			Retention:     cfg.JobRetention,
			Logger:        logger,
		}
	}

	return c, nil
}

func serve(ctx context.Context, configPath string) error {
	cfg, logger, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	c, err := buildComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if c.pipe == nil {
		return fmt.Errorf("OPENROUTER_API_KEY is required to serve jobs")
	}

	sweepSpec := fmt.Sprintf("@every %s", cfg.SweepInterval)
	if err := c.sw.Start(ctx, sweepSpec); err != nil {
		return fmt.Errorf("start sweeper: %w", err)
	}
	defer c.sw.Stop()

	server := &httpapi.Server{
		Pipeline:  c.pipe,
		Store:     c.store,
		Archive:   c.archive,
		AuthToken: cfg.AuthToken,
		Logger:    logger,
	}

	httpSrv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.Router(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Info("nimbusd listening", "addr", cfg.ListenAddr)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

func sweepOnce(ctx context.Context, configPath string) error {
	cfg, logger, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	c, err := buildComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	c.sw.RunOnce(ctx)
	return nil
}
