// Package app builds the shop from a Config: it selects the live or
// fallback variant of every adapter once, wires them into the bot, the
// webhook and the REST API, and logs the result. Both binaries share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kalaasaarathi/shopbot/internal/api"
	"github.com/kalaasaarathi/shopbot/internal/awsboot"
	"github.com/kalaasaarathi/shopbot/internal/bot"
	"github.com/kalaasaarathi/shopbot/internal/chat"
	"github.com/kalaasaarathi/shopbot/internal/config"
	"github.com/kalaasaarathi/shopbot/internal/imagehost"
	"github.com/kalaasaarathi/shopbot/internal/media"
	"github.com/kalaasaarathi/shopbot/internal/publish"
	"github.com/kalaasaarathi/shopbot/internal/shipping"
	"github.com/kalaasaarathi/shopbot/internal/store"
	"github.com/kalaasaarathi/shopbot/internal/tasks"
	"github.com/kalaasaarathi/shopbot/internal/webhook"
	"github.com/kalaasaarathi/shopbot/internal/whatsapp"
)

// Options describe the binary being started.
type Options struct {
	Name      string
	CommitSHA string
	BuildTime string

	// InlineTasks runs background tasks inside the request. Lambda freezes
	// the environment once the response is written, so queued work would
	// never finish there.
	InlineTasks bool
}

// App is a fully wired shop.
type App struct {
	Config   *config.Config
	Store    store.RecordStore
	Runner   *tasks.Runner
	Bot      *bot.Service
	Services api.Services
	Handler  http.Handler
}

// New wires every component. Only a store or AWS bootstrap failure is
// fatal; every other adapter falls back.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	initStart := time.Now()

	var clients *awsboot.AWSClients
	if cfg.NeedsAWS() {
		var err error
		clients, err = awsboot.InitAWS(ctx)
		if err != nil {
			return nil, err
		}
		if cfg.SSMParamsPending() {
			cfg.ResolveSecrets(ctx, awsboot.ParamFetcher(clients.SSM))
		}
	}

	st, err := awsboot.OpenStore(cfg, clients)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}

	describer := selectDescriber(ctx, cfg)
	remover := selectRemover(cfg, describer)
	uploader := selectUploader(cfg, clients, remover)
	deployer := selectDeployer(cfg, clients)
	publisher := publish.New(cfg.SiteDir, cfg.PublicBaseURL, deployer).WithBuyNumber(cfg.TwilioWhatsAppFrom)
	if cfg.StoreBackend == config.StoreFile && filepath.Clean(cfg.DataDir) == filepath.Clean(cfg.SiteDir) {
		publisher.WithoutSnapshots()
	}
	messenger := selectMessenger(cfg)
	labeler := selectLabeler(cfg)

	workers := cfg.Workers
	if opts.InlineTasks {
		workers = 0
	}
	runner := tasks.NewRunner(workers, cfg.QueueSize, cfg.TaskTimeout)

	var validator *whatsapp.SignatureValidator
	switch {
	case cfg.TwilioValidateSignature && cfg.TwilioAuthToken != "":
		validator = whatsapp.NewSignatureValidator(cfg.TwilioAuthToken)
	case cfg.TwilioValidateSignature:
		log.Warn().Msg("TWILIO_VALIDATE_SIGNATURE is set but no auth token is available, signature checks disabled")
	}

	// Without signature checks the media URL is untrusted input.
	fetcher := media.NewDownloader(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.ScratchDir).
		RestrictToTrusted(validator == nil)

	svc := bot.NewService(bot.Deps{
		Store:     st,
		Describer: describer,
		Uploader:  uploader,
		Fetcher:   fetcher,
		Publisher: publisher,
		Messenger: messenger,
		Runner:    runner,
	})

	services := api.Services{
		Gemini:          describer.Name() != chat.FallbackDescriber{}.Name(),
		ImageProcessing: uploader.Name() != imagehost.FallbackUploader{}.Name(),
		Deployment:      deployer.Name() != publish.NoopDeployer{}.Name(),
		Shipping:        labeler.Name() != shipping.FallbackLabeler{}.Name(),
		SMS:             cfg.TwilioEnabled() && cfg.TwilioSMSFrom != "",
	}
	var siteDir string
	if cfg.DeployMode == config.DeployNone {
		siteDir = cfg.SiteDir
	}
	server := api.NewServer(api.Deps{
		Store:      st,
		Uploader:   uploader,
		Publisher:  publisher,
		Shipper:    shipping.NewService(labeler, messenger),
		Tasks:      runner,
		Webhook:    webhook.NewHandler(svc, validator, cfg.WebhookBaseURL),
		Services:   services,
		ScratchDir: cfg.ScratchDir,
		SiteDir:    siteDir,
	})

	awsboot.StartupLog(opts.Name, cfg, initStart).
		CommitHash(opts.CommitSHA).
		BuildTime(opts.BuildTime).
		Feature("gemini", services.Gemini).
		Feature("imageProcessing", services.ImageProcessing).
		Feature("deploy", services.Deployment).
		Feature("shipping", services.Shipping).
		Feature("sms", services.SMS).
		Feature("backgroundRemoval", remover != nil).
		Feature("signatureValidation", validator != nil).
		Config("describer", describer.Name()).
		Config("uploader", uploader.Name()).
		Config("deployer", deployer.Name()).
		Config("messenger", messenger.Name()).
		Log()

	return &App{
		Config:   cfg,
		Store:    st,
		Runner:   runner,
		Bot:      svc,
		Services: services,
		Handler:  server.Handler(),
	}, nil
}

// Close drains background tasks, then closes the store.
func (a *App) Close(ctx context.Context) error {
	return errors.Join(a.Runner.Shutdown(ctx), a.Store.Close())
}

func selectDescriber(ctx context.Context, cfg *config.Config) chat.Describer {
	client, err := chat.NewClient(ctx, cfg.GeminiAPIKey, "")
	if err != nil {
		log.Warn().Err(err).Str("adapter", "describer").Msg("Adapter unavailable, using fallback")
		return chat.FallbackDescriber{}
	}
	return chat.SelectDescriber(ctx, client, cfg.GeminiModel)
}

// selectRemover enables background removal only when the key has already
// proven valid for descriptions.
func selectRemover(cfg *config.Config, describer chat.Describer) chat.BackgroundRemover {
	if !cfg.BackgroundRemoval || describer.Name() == (chat.FallbackDescriber{}).Name() {
		return nil
	}
	return chat.NewGeminiImageClient(cfg.GeminiAPIKey, cfg.GeminiImageModel)
}

// selectUploader prefers the image bucket, then the site bucket, then the
// local site directory.
func selectUploader(cfg *config.Config, clients *awsboot.AWSClients, remover chat.BackgroundRemover) imagehost.Uploader {
	switch {
	case cfg.ImageBucket != "" && clients != nil:
		return imagehost.NewS3Uploader(clients.S3, imagehost.S3Config{
			ImageBucket: cfg.ImageBucket,
			VideoBucket: cfg.VideoBucket,
			Region:      clients.Config.Region,
			BaseURL:     cfg.MediaBaseURL,
		}, remover)
	case cfg.DeployMode == config.DeployS3 && clients != nil:
		return imagehost.NewS3Uploader(clients.S3, imagehost.S3Config{
			ImageBucket: cfg.SiteBucket,
			Region:      clients.Config.Region,
			BaseURL:     cfg.PublicBaseURL,
		}, remover)
	case cfg.SiteDir != "":
		return imagehost.NewDirUploader(cfg.SiteDir, cfg.PublicBaseURL, remover)
	default:
		log.Warn().Str("adapter", "uploader").Msg("Adapter unavailable, using fallback")
		return imagehost.FallbackUploader{}
	}
}

func selectDeployer(cfg *config.Config, clients *awsboot.AWSClients) publish.Deployer {
	switch cfg.DeployMode {
	case config.DeployS3:
		return publish.NewS3Deployer(clients.S3, cfg.SiteBucket, cfg.SiteDir)
	case config.DeployCommand:
		return publish.NewCommandDeployer(cfg.DeployCommand, cfg.SiteDir)
	default:
		return publish.NoopDeployer{}
	}
}

func selectMessenger(cfg *config.Config) whatsapp.Messenger {
	if !cfg.TwilioEnabled() {
		log.Warn().Str("adapter", "messenger").Msg("Twilio credentials missing, follow-up messages will only be logged")
		return whatsapp.LogMessenger{}
	}
	return whatsapp.NewTwilioMessenger(whatsapp.TwilioConfig{
		AccountSID:   cfg.TwilioAccountSID,
		AuthToken:    cfg.TwilioAuthToken,
		WhatsAppFrom: cfg.TwilioWhatsAppFrom,
		SMSFrom:      cfg.TwilioSMSFrom,
		SendRate:     cfg.SendRate,
		SendBurst:    cfg.SendBurst,
	})
}

func selectLabeler(cfg *config.Config) shipping.Labeler {
	if cfg.ShippingAPIURL == "" || cfg.ShippingAPIToken == "" {
		return shipping.FallbackLabeler{}
	}
	return shipping.NewLabelClient(cfg.ShippingAPIURL, cfg.ShippingAPIToken)
}
