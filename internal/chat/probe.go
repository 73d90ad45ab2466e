package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/kalaasaarathi/shopbot/internal/metrics"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// ProbeError is a classified failure of the startup key probe.
type ProbeError struct {
	Kind    ProbeErrorKind
	Message string
	Err     error
}

// ProbeErrorKind categorizes probe failures.
type ProbeErrorKind int

const (
	// ProbeNoKey indicates no API key was configured.
	ProbeNoKey ProbeErrorKind = iota
	// ProbeInvalidKey indicates the key is invalid or revoked.
	ProbeInvalidKey
	// ProbeNetwork indicates the API could not be reached.
	ProbeNetwork
	// ProbeQuota indicates the key is rate limited or out of quota.
	ProbeQuota
	// ProbeUnknown covers everything else.
	ProbeUnknown
)

func (k ProbeErrorKind) String() string {
	switch k {
	case ProbeNoKey:
		return "no_key"
	case ProbeInvalidKey:
		return "invalid"
	case ProbeNetwork:
		return "network_error"
	case ProbeQuota:
		return "quota"
	default:
		return "unknown"
	}
}

func (e *ProbeError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// ProbeKey verifies the client's key with a one-word request. The server
// runs it once at startup; any error selects the fallback describer.
// A nil client reports ProbeNoKey.
func ProbeKey(ctx context.Context, client *genai.Client) error {
	if client == nil {
		return &ProbeError{Kind: ProbeNoKey, Message: "no Gemini API key configured"}
	}
	log.Debug().Str("model", probeModelName).Msg("Probing Gemini API key")

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	start := time.Now()
	resp, err := client.Models.GenerateContent(ctx, probeModelName, genai.Text("hi"), nil)
	elapsed := time.Since(start)

	if err != nil {
		perr := classifyProbeError(err)
		metrics.RecordFallback("gemini_probe_" + perr.Kind.String())
		return perr
	}
	if resp == nil || len(resp.Candidates) == 0 {
		log.Warn().Msg("Gemini key probe returned empty response")
		return &ProbeError{Kind: ProbeUnknown, Message: "API returned empty response"}
	}

	log.Info().Dur("duration", elapsed).Msg("Gemini API key validated")
	return nil
}

// classifyProbeError maps an SDK or transport error onto a ProbeErrorKind.
func classifyProbeError(err error) *ProbeError {
	var apiErr *genai.APIError
	if errors.As(err, &apiErr) {
		return classifyAPIError(apiErr)
	}

	errLower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errLower, "api key not valid") ||
		strings.Contains(errLower, "api_key_invalid") ||
		strings.Contains(errLower, "permission denied") ||
		strings.Contains(errLower, "error 401") ||
		strings.Contains(errLower, "error 403"):
		log.Error().Err(err).Msg("Invalid Gemini API key")
		return &ProbeError{Kind: ProbeInvalidKey, Message: "API key is invalid or has been revoked", Err: err}

	case strings.Contains(errLower, "quota") ||
		strings.Contains(errLower, "resource exhausted") ||
		strings.Contains(errLower, "error 429"):
		log.Error().Err(err).Msg("Gemini API quota exceeded")
		return &ProbeError{Kind: ProbeQuota, Message: "API quota exceeded or rate limited", Err: err}

	case strings.Contains(errLower, "connection") ||
		strings.Contains(errLower, "timeout") ||
		strings.Contains(errLower, "deadline exceeded") ||
		strings.Contains(errLower, "dial") ||
		strings.Contains(errLower, "no such host"):
		log.Error().Err(err).Msg("Network error during Gemini key probe")
		return &ProbeError{Kind: ProbeNetwork, Message: "network error reaching Gemini", Err: err}

	default:
		log.Error().Err(err).Msg("Unknown error during Gemini key probe")
		return &ProbeError{Kind: ProbeUnknown, Message: "failed to validate API key", Err: err}
	}
}

func classifyAPIError(err *genai.APIError) *ProbeError {
	switch err.Code {
	case 400, 401, 403:
		log.Error().Int("code", err.Code).Msg("Gemini rejected the API key")
		return &ProbeError{Kind: ProbeInvalidKey, Message: "API key is invalid, expired, or lacks permissions", Err: err}
	case 429:
		log.Error().Int("code", err.Code).Msg("Gemini rate limit exceeded")
		return &ProbeError{Kind: ProbeQuota, Message: "API rate limit exceeded", Err: err}
	case 500, 502, 503, 504:
		log.Error().Int("code", err.Code).Msg("Gemini server error during probe")
		return &ProbeError{Kind: ProbeNetwork, Message: "Gemini API server error", Err: err}
	default:
		log.Error().Int("code", err.Code).Str("message", err.Message).Msg("Gemini API error")
		return &ProbeError{Kind: ProbeUnknown, Message: err.Message, Err: err}
	}
}
