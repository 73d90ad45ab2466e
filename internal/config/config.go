// Package config reads the process configuration once at startup into an
// explicit Config value that is passed to every component constructor.
//
// Values come from the environment; a .env file in the working directory is
// loaded first when present. Secrets (the Twilio auth token, the Gemini API
// key and the shipping API token) may instead live in AWS SSM Parameter
// Store, in which case ResolveSecrets fills them in.
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Store backends.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreDynamo = "dynamo"
)

// Deploy modes for the publish step.
const (
	DeployS3      = "s3"
	DeployCommand = "command"
	DeployNone    = "none"
)

// Config holds all application configuration.
type Config struct {
	// HTTP server
	Port           string
	PublicBaseURL  string // storefront origin, e.g. https://shop.example.com
	WebhookBaseURL string // externally visible origin of this server, for signature checks

	// Storage
	StoreBackend string
	DataDir      string
	SQLitePath   string
	DynamoTable  string
	SiteDir      string
	ScratchDir   string

	// Object storage
	ImageBucket   string
	VideoBucket   string
	SiteBucket    string
	MediaBaseURL  string // public origin for uploaded media; defaults to the bucket's S3 URL
	DeployMode    string
	DeployCommand string

	// Messaging
	TwilioAccountSID        string
	TwilioAuthToken         string
	TwilioWhatsAppFrom      string
	TwilioSMSFrom           string
	TwilioValidateSignature bool
	SendRate                float64
	SendBurst               int

	// Description and image adapters
	GeminiAPIKey      string
	GeminiModel       string
	GeminiImageModel  string
	BackgroundRemoval bool

	// Shipping
	ShippingAPIURL   string
	ShippingAPIToken string

	// Background tasks
	Workers     int
	QueueSize   int
	TaskTimeout time.Duration

	// SSM parameter names for secrets not set in the environment.
	SSMTwilioTokenParam   string
	SSMGeminiKeyParam     string
	SSMShippingTokenParam string
}

// Default returns configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Port:          "8000",
		PublicBaseURL: "http://localhost:8000",
		StoreBackend:  StoreFile,
		DataDir:       "site",
		SQLitePath:    "shop.db",
		SiteDir:       "site",
		ScratchDir:    os.TempDir(),
		DeployMode:    DeployNone,
		DeployCommand: "firebase deploy --only hosting --non-interactive",
		SendRate:      1,
		SendBurst:     5,
		GeminiModel:   "gemini-2.5-flash",
		Workers:       4,
		QueueSize:     64,
		TaskTimeout:   10 * time.Minute,
	}
}

// Load reads .env (if present) and the environment over Default.
func Load() (*Config, error) {
	// Silently ignored when missing.
	_ = godotenv.Load()

	c := Default()
	c.Port = getEnv("PORT", c.Port)
	c.PublicBaseURL = strings.TrimRight(getEnv("PUBLIC_BASE_URL", c.PublicBaseURL), "/")
	c.WebhookBaseURL = strings.TrimRight(getEnv("WEBHOOK_BASE_URL", ""), "/")

	c.StoreBackend = strings.ToLower(getEnv("STORE_BACKEND", c.StoreBackend))
	c.SiteDir = getEnv("SITE_DIR", c.SiteDir)
	c.DataDir = getEnv("DATA_DIR", c.SiteDir)
	c.SQLitePath = getEnv("SQLITE_PATH", c.SQLitePath)
	c.DynamoTable = getEnv("DYNAMO_TABLE_NAME", "")
	c.ScratchDir = getEnv("SCRATCH_DIR", c.ScratchDir)

	c.ImageBucket = getEnv("IMAGE_BUCKET", "")
	c.VideoBucket = getEnv("VIDEO_BUCKET", c.ImageBucket)
	c.SiteBucket = getEnv("SITE_BUCKET", "")
	c.MediaBaseURL = strings.TrimRight(getEnv("MEDIA_BASE_URL", ""), "/")
	c.DeployMode = strings.ToLower(getEnv("DEPLOY_MODE", c.DeployMode))
	c.DeployCommand = getEnv("DEPLOY_COMMAND", c.DeployCommand)

	c.TwilioAccountSID = getEnv("TWILIO_ACCOUNT_SID", "")
	c.TwilioAuthToken = getEnv("TWILIO_AUTH_TOKEN", "")
	c.TwilioWhatsAppFrom = getEnv("TWILIO_WHATSAPP_FROM", "")
	c.TwilioSMSFrom = getEnv("TWILIO_SMS_FROM", "")
	c.TwilioValidateSignature = getEnvBool("TWILIO_VALIDATE_SIGNATURE", false)
	c.SendRate = getEnvFloat("SEND_RATE", c.SendRate)
	c.SendBurst = getEnvInt("SEND_BURST", c.SendBurst)

	c.GeminiAPIKey = getEnv("GEMINI_API_KEY", "")
	c.GeminiModel = getEnv("GEMINI_MODEL", c.GeminiModel)
	c.GeminiImageModel = getEnv("GEMINI_IMAGE_MODEL", "")
	c.BackgroundRemoval = getEnvBool("BACKGROUND_REMOVAL", true)

	c.ShippingAPIURL = strings.TrimRight(getEnv("SHIPPING_API_URL", ""), "/")
	c.ShippingAPIToken = getEnv("SHIPPING_API_TOKEN", "")

	c.Workers = getEnvInt("WORKERS", c.Workers)
	c.QueueSize = getEnvInt("QUEUE_SIZE", c.QueueSize)
	c.TaskTimeout = getEnvDuration("TASK_TIMEOUT", c.TaskTimeout)

	c.SSMTwilioTokenParam = getEnv("SSM_TWILIO_TOKEN_PARAM", "")
	c.SSMGeminiKeyParam = getEnv("SSM_API_KEY_PARAM", "")
	c.SSMShippingTokenParam = getEnv("SSM_SHIPPING_TOKEN_PARAM", "")

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks values that would otherwise fail late and obscurely.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreFile, StoreSQLite:
	case StoreDynamo:
		if c.DynamoTable == "" {
			return fmt.Errorf("STORE_BACKEND=dynamo requires DYNAMO_TABLE_NAME")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	switch c.DeployMode {
	case DeployNone, DeployCommand:
	case DeployS3:
		if c.SiteBucket == "" {
			return fmt.Errorf("DEPLOY_MODE=s3 requires SITE_BUCKET")
		}
	default:
		return fmt.Errorf("unknown DEPLOY_MODE %q", c.DeployMode)
	}
	if c.Workers < 1 {
		return fmt.Errorf("WORKERS must be at least 1, got %d", c.Workers)
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("QUEUE_SIZE must not be negative, got %d", c.QueueSize)
	}
	return nil
}

// NeedsAWS reports whether any configured component talks to AWS.
func (c *Config) NeedsAWS() bool {
	return c.StoreBackend == StoreDynamo || c.DeployMode == DeployS3 ||
		c.ImageBucket != "" || c.VideoBucket != "" || c.SSMParamsPending()
}

// SSMParamsPending reports whether a secret is unset but has an SSM name.
func (c *Config) SSMParamsPending() bool {
	return (c.TwilioAuthToken == "" && c.SSMTwilioTokenParam != "") ||
		(c.GeminiAPIKey == "" && c.SSMGeminiKeyParam != "") ||
		(c.ShippingAPIToken == "" && c.SSMShippingTokenParam != "")
}

// ParamFetcher reads a secret parameter by name.
type ParamFetcher func(ctx context.Context, name string) (string, error)

// ResolveSecrets fills empty secrets from their SSM parameters. A failed
// fetch leaves the secret empty, which selects the fallback adapter.
func (c *Config) ResolveSecrets(ctx context.Context, fetch ParamFetcher) {
	resolve := func(label string, dst *string, param string) {
		if *dst != "" || param == "" {
			return
		}
		start := time.Now()
		v, err := fetch(ctx, param)
		if err != nil {
			log.Warn().Err(err).Str("param", param).Msgf("%s not found in SSM", label)
			return
		}
		*dst = v
		log.Debug().Str("param", param).Dur("elapsed", time.Since(start)).Msgf("%s loaded from SSM", label)
	}
	resolve("Twilio auth token", &c.TwilioAuthToken, c.SSMTwilioTokenParam)
	resolve("Gemini API key", &c.GeminiAPIKey, c.SSMGeminiKeyParam)
	resolve("Shipping API token", &c.ShippingAPIToken, c.SSMShippingTokenParam)
}

// TwilioEnabled reports whether outbound messaging credentials are present.
func (c *Config) TwilioEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioWhatsAppFrom != ""
}

func getEnv(key, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Warn().Str("key", key).Str("value", v).Msg("Ignoring non-integer config value")
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		log.Warn().Str("key", key).Str("value", v).Msg("Ignoring non-numeric config value")
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		log.Warn().Str("key", key).Str("value", v).Msg("Ignoring non-boolean config value")
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Warn().Str("key", key).Str("value", v).Msg("Ignoring invalid duration config value")
	}
	return defaultVal
}
