package tasks

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/rs/zerolog/log"
)

// IDPrefix starts every task id.
const IDPrefix = "task-"

// GenerateID creates a new random id with the given prefix, which should
// include a trailing dash.
func GenerateID(prefix string) string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		log.Fatal().Err(err).Msgf("Failed to generate random %s id", prefix)
	}
	return prefix + hex.EncodeToString(b)
}
