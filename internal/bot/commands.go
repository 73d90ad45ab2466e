package bot

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/kalaasaarathi/shopbot/internal/store"
)

// handleList shows the sender's most recent products.
func (s *Service) handleList(ctx context.Context, from string) string {
	products, err := s.store.ListProducts(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list products")
		return MsgListError
	}
	var mine []*store.Product
	for _, p := range products {
		if p.OwnedBy(from) {
			mine = append(mine, p)
		}
	}
	if len(mine) == 0 {
		return MsgNoProducts
	}
	return ProductListMessage(mine, s.publisher.ProductURL)
}

// handleProfile implements "profile" and "profile set FIELD VALUE".
func (s *Service) handleProfile(ctx context.Context, from, body string) string {
	phone := store.NormalizePhone(from)
	parts := strings.Fields(body)

	if len(parts) < 2 {
		profile, err := s.store.GetSeller(ctx, phone)
		if err != nil {
			log.Error().Err(err).Str("phone", phone).Msg("Failed to load seller profile")
		}
		if profile == nil {
			return MsgProfileSetup
		}
		return ProfileMessage(profile)
	}

	if strings.ToLower(parts[1]) != "set" || len(parts) < 4 {
		return MsgProfileUsage
	}
	field := strings.ToLower(parts[2])
	value := strings.Join(parts[3:], " ")

	update := &store.SellerProfile{Phone: phone}
	switch field {
	case "name":
		update.Name = value
	case "region":
		update.Region = value
	case "bio":
		update.Bio = value
	case "skills":
		update.Skills = splitSkills(value)
	default:
		return MsgProfileBadField
	}

	if _, err := s.store.UpsertSeller(ctx, update); err != nil {
		log.Error().Err(err).Str("phone", phone).Str("field", field).Msg("Failed to update seller profile")
		return MsgProfileError
	}
	log.Info().Str("phone", phone).Str("field", field).Msg("Seller profile updated")
	return ProfileUpdatedMessage(field)
}

// splitSkills splits a comma-separated list, dropping empty entries.
func splitSkills(value string) []string {
	var skills []string
	for _, s := range strings.Split(value, ",") {
		if s = strings.TrimSpace(s); s != "" {
			skills = append(skills, s)
		}
	}
	return skills
}
