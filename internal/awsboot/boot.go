// Package awsboot provides the shared AWS bootstrap used by both binaries.
//
// The server and the Lambda need some subset of: AWS config, S3, DynamoDB
// and SSM parameter fetch. This package keeps those init patterns in one
// place so each main is a short composition of helpers.
package awsboot

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/kalaasaarathi/shopbot/internal/config"
	"github.com/kalaasaarathi/shopbot/internal/logging"
	"github.com/kalaasaarathi/shopbot/internal/store"
)

// AWSClients holds the core AWS SDK clients.
type AWSClients struct {
	Config aws.Config
	SSM    *ssm.Client
	S3     *s3.Client
}

// InitAWS loads the default AWS config and returns it along with common clients.
func InitAWS(ctx context.Context) (*AWSClients, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return &AWSClients{
		Config: cfg,
		SSM:    ssm.NewFromConfig(cfg),
		S3:     s3.NewFromConfig(cfg),
	}, nil
}

// SSMGetter is the part of the SSM client used to read parameters.
type SSMGetter interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// ParamFetcher adapts an SSM client to config.ParamFetcher. Parameters are
// read with decryption so SecureString values work.
func ParamFetcher(client SSMGetter) config.ParamFetcher {
	return func(ctx context.Context, name string) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		result, err := client.GetParameter(ctx, &ssm.GetParameterInput{
			Name:           &name,
			WithDecryption: aws.Bool(true),
		})
		if err != nil {
			return "", fmt.Errorf("get parameter %s: %w", name, err)
		}
		if result.Parameter == nil || result.Parameter.Value == nil {
			return "", fmt.Errorf("parameter %s has no value", name)
		}
		return *result.Parameter.Value, nil
	}
}

// OpenStore builds the RecordStore selected by cfg.StoreBackend. clients may
// be nil unless the dynamo backend is selected.
func OpenStore(cfg *config.Config, clients *AWSClients) (store.RecordStore, error) {
	switch cfg.StoreBackend {
	case config.StoreSQLite:
		return store.OpenSQLite(cfg.SQLitePath)
	case config.StoreDynamo:
		if clients == nil {
			return nil, fmt.Errorf("dynamo store requires AWS clients")
		}
		return store.NewDynamoStore(dynamodb.NewFromConfig(clients.Config), cfg.DynamoTable), nil
	default:
		return store.NewFileStore(cfg.DataDir)
	}
}

// StartupLog builds the startup summary shared by both binaries.
func StartupLog(name string, cfg *config.Config, initStart time.Time) *logging.StartupLogger {
	sl := logging.NewStartupLogger(name).
		InitDuration(time.Since(initStart)).
		Config("storeBackend", cfg.StoreBackend).
		Config("deployMode", cfg.DeployMode).
		Config("publicBaseUrl", cfg.PublicBaseURL).
		Config("geminiModel", cfg.GeminiModel).
		Config("workers", fmt.Sprint(cfg.Workers))

	switch cfg.StoreBackend {
	case config.StoreDynamo:
		sl.DynamoTable("records", cfg.DynamoTable)
	case config.StoreSQLite:
		sl.Path("sqlite", cfg.SQLitePath)
	default:
		sl.Path("data", cfg.DataDir)
	}
	sl.Path("site", cfg.SiteDir)
	if cfg.ImageBucket != "" {
		sl.S3Bucket("images", cfg.ImageBucket)
	}
	if cfg.VideoBucket != "" {
		sl.S3Bucket("videos", cfg.VideoBucket)
	}
	if cfg.SiteBucket != "" {
		sl.S3Bucket("site", cfg.SiteBucket)
	}
	for label, param := range map[string]string{
		"twilioToken":   cfg.SSMTwilioTokenParam,
		"geminiKey":     cfg.SSMGeminiKeyParam,
		"shippingToken": cfg.SSMShippingTokenParam,
	} {
		if param != "" {
			sl.SSMParam(label, param)
		}
	}
	return sl
}
