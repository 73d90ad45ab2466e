package store

import (
	"math/rand/v2"
	"time"
)

// Product is a published craft listing. JSON field names match the
// products.json document the storefront reads.
type Product struct {
	ID              string   `json:"id" dynamodbav:"-" db:"id"`
	Title           string   `json:"title" dynamodbav:"title" db:"title"`
	Description     string   `json:"description" dynamodbav:"description" db:"description"`
	Price           int      `json:"price" dynamodbav:"price" db:"price"`
	Images          []string `json:"images" dynamodbav:"images" db:"-"`
	Category        string   `json:"category" dynamodbav:"category" db:"category"`
	ArtisanName     string   `json:"artisan_name" dynamodbav:"artisanName" db:"artisan_name"`
	ArtisanRegion   string   `json:"artisan_region" dynamodbav:"artisanRegion" db:"artisan_region"`
	ArtisanPhone    string   `json:"artisan_phone" dynamodbav:"artisanPhone" db:"artisan_phone"`
	UserPhone       string   `json:"user_phone,omitempty" dynamodbav:"userPhone,omitempty" db:"user_phone"`
	Material        string   `json:"material,omitempty" dynamodbav:"material,omitempty" db:"material"`
	Dimensions      string   `json:"dimensions,omitempty" dynamodbav:"dimensions,omitempty" db:"dimensions"`
	Rating          float64  `json:"rating" dynamodbav:"rating" db:"rating"`
	ReviewsCount    int      `json:"reviews_count" dynamodbav:"reviewsCount" db:"reviews_count"`
	OrdersCompleted int      `json:"orders_completed" dynamodbav:"ordersCompleted" db:"orders_completed"`
	InStock         bool     `json:"in_stock" dynamodbav:"inStock" db:"in_stock"`
	URL             string   `json:"url,omitempty" dynamodbav:"url,omitempty" db:"url"`
	CreatedAt       string   `json:"created_at" dynamodbav:"createdAt" db:"created_at"`
	UpdatedAt       string   `json:"updated_at,omitempty" dynamodbav:"updatedAt,omitempty" db:"updated_at"`
}

// OwnedBy reports whether the product was listed by the given phone.
func (p *Product) OwnedBy(phone string) bool {
	phone = NormalizePhone(phone)
	if phone == "" {
		return false
	}
	return NormalizePhone(p.ArtisanPhone) == phone || NormalizePhone(p.UserPhone) == phone
}

// SellerProfile is keyed by phone. Empty fields are never written over
// stored values by UpsertSeller.
type SellerProfile struct {
	Phone        string   `json:"phone" dynamodbav:"-" db:"phone"`
	Name         string   `json:"name" dynamodbav:"name" db:"name"`
	Region       string   `json:"region" dynamodbav:"region" db:"region"`
	Bio          string   `json:"bio,omitempty" dynamodbav:"bio,omitempty" db:"bio"`
	Skills       []string `json:"skills,omitempty" dynamodbav:"skills,omitempty" db:"-"`
	ProfileImage string   `json:"profile_image,omitempty" dynamodbav:"profileImage,omitempty" db:"profile_image"`
	UpdatedAt    string   `json:"updated_at" dynamodbav:"updatedAt" db:"updated_at"`
}

// Merge returns a copy of s with every non-empty field of update applied.
func (s *SellerProfile) Merge(update *SellerProfile) *SellerProfile {
	out := &SellerProfile{Phone: update.Phone}
	if s != nil {
		c := *s
		c.Skills = append([]string(nil), s.Skills...)
		out = &c
	}
	if update.Phone != "" {
		out.Phone = update.Phone
	}
	if update.Name != "" {
		out.Name = update.Name
	}
	if update.Region != "" {
		out.Region = update.Region
	}
	if update.Bio != "" {
		out.Bio = update.Bio
	}
	if len(update.Skills) > 0 {
		out.Skills = append([]string(nil), update.Skills...)
	}
	if update.ProfileImage != "" {
		out.ProfileImage = update.ProfileImage
	}
	out.UpdatedAt = Now()
	return out
}

// Reel is a short seller video shown in the storefront's reels section.
type Reel struct {
	ID           string `json:"id" dynamodbav:"-" db:"id"`
	VideoURL     string `json:"video_url" dynamodbav:"videoUrl" db:"video_url"`
	Caption      string `json:"caption" dynamodbav:"caption" db:"caption"`
	SellerName   string `json:"seller_name" dynamodbav:"sellerName" db:"seller_name"`
	SellerRegion string `json:"seller_region" dynamodbav:"sellerRegion" db:"seller_region"`
	SellerPhone  string `json:"seller_phone" dynamodbav:"sellerPhone" db:"seller_phone"`
	Likes        int    `json:"likes" dynamodbav:"likes" db:"likes"`
	Comments     int    `json:"comments" dynamodbav:"comments" db:"comments"`
	CreatedAt    string `json:"created_at" dynamodbav:"createdAt" db:"created_at"`
}

// SynthesizeStats fills the display-only rating, review and order counts of
// a new listing. Rating falls in [4.5, 4.9].
func (p *Product) SynthesizeStats() {
	p.Rating = float64(45+rand.IntN(5)) / 10
	p.ReviewsCount = rand.IntN(25)
	p.OrdersCompleted = rand.IntN(50)
}

// Now returns the current time in the timestamp format stored on records.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
