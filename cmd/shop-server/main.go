package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kalaasaarathi/shopbot/internal/app"
	"github.com/kalaasaarathi/shopbot/internal/config"
	"github.com/kalaasaarathi/shopbot/internal/logging"
)

// CLI flags override the matching environment variables.
var (
	portFlag    string
	modelFlag   string
	storeFlag   string
	siteDirFlag string
	deployFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "shop-server",
	Short: "WhatsApp storefront bot for artisans",
	Long: `Shop Server receives WhatsApp messages from artisans, turns product photos
into published shop pages, and serves the storefront REST API.

Point the WhatsApp sandbox webhook at https://<host>/whatsapp. Configuration
comes from the environment (and .env); flags override it.

Examples:
  shop-server
  shop-server --port 9000 --store sqlite
  shop-server --deploy command --site-dir ./site
  shop-server --model gemini-2.5-pro`,
	SilenceUsage: true,
	RunE:         runMain,
}

func init() {
	rootCmd.Flags().StringVarP(&portFlag, "port", "p", "", "Port to listen on (default $PORT or 8000)")
	rootCmd.Flags().StringVarP(&modelFlag, "model", "m", "", "Gemini model for product descriptions")
	rootCmd.Flags().StringVar(&storeFlag, "store", "", "Record store backend: file, sqlite or dynamo")
	rootCmd.Flags().StringVar(&siteDirFlag, "site-dir", "", "Directory the storefront is rendered into")
	rootCmd.Flags().StringVar(&deployFlag, "deploy", "", "Deploy mode: none, command or s3")
	rootCmd.Version = commitHash
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) error {
	logging.Init()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg, app.Options{
		Name:      "shop-server",
		CommitSHA: commitHash,
		BuildTime: buildTime,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	// Graceful shutdown: stop accepting requests, then let queued tasks
	// finish within the task timeout.
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("Shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("HTTP shutdown incomplete")
		}

		ctx, cancel = context.WithTimeout(context.Background(), cfg.TaskTimeout)
		defer cancel()
		if err := a.Close(ctx); err != nil {
			log.Warn().Err(err).Msg("Background tasks did not finish")
		}
	}()

	log.Info().Str("port", cfg.Port).Str("shop", cfg.PublicBaseURL).Msg("Starting shop server")
	fmt.Printf("\n  Webhook: http://localhost:%s/whatsapp\n  Shop:    %s\n\n", cfg.Port, cfg.PublicBaseURL)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	<-done
	return nil
}

// applyFlags copies explicitly set flags over cfg and revalidates.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port = portFlag
	}
	if flags.Changed("model") {
		cfg.GeminiModel = modelFlag
	}
	if flags.Changed("store") {
		cfg.StoreBackend = storeFlag
	}
	if flags.Changed("site-dir") {
		cfg.SiteDir = siteDirFlag
	}
	if flags.Changed("deploy") {
		cfg.DeployMode = deployFlag
	}
	return cfg.Validate()
}
