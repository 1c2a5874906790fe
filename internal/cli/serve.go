package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rcliao/checkpoint-tracker/internal/catalog"
	"github.com/rcliao/checkpoint-tracker/internal/ingest"
	"github.com/rcliao/checkpoint-tracker/internal/interview"
	"github.com/rcliao/checkpoint-tracker/internal/server"
	"github.com/rcliao/checkpoint-tracker/internal/session"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long:  "Serve the ingestion endpoint and the session operations over HTTP until interrupted.",
		Run:   runServe,
	}

	cmd.Flags().String("addr", "", "Listen address (overrides config)")

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	logger := cfg.NewLogger(os.Stderr)

	s, err := openStore(cfg)
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	svc := ingest.NewService(s, cfg.RetryPolicy(), logger.With("component", "ingest"))
	engine := interview.NewEngine(
		session.NewRegistry(),
		catalog.NewLoader(s, cfg.Normalization(), logger.With("component", "catalog")),
		svc,
		logger.With("component", "interview"),
	)
	srv := server.New(server.Config{
		Addr:              cfg.Server.Addr,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		IngestPerMinute:   cfg.Server.IngestPerMinute,
		IngestBurst:       cfg.Server.IngestBurst,
		Logger:            logger.With("component", "http"),
	}, engine, svc)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("checkpoint tracker ready",
		"addr", cfg.Server.Addr,
		"backend", cfg.Store.Backend,
		"path", cfg.Store.Path)
	if err := srv.ListenAndServe(ctx); err != nil {
		exitErr("serve", err)
	}
}
