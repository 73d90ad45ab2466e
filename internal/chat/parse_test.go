package chat

import (
	"strings"
	"testing"
)

const sampleReply = `Ah, this little clay pot carries the warmth of my village courtyard, shaped by patient hands.
Hindi: mitti (earth), pyaar (love), ghar (home).
Price: ₹200-400. Tags: #pottery #handmade #terracotta #indiancraft #clayart
Title: Terracotta Courtyard Pot
Category: pottery`

func TestParseDescription_FullReply(t *testing.T) {
	d := ParseDescription(sampleReply)

	if d.Title != "Terracotta Courtyard Pot" {
		t.Errorf("Title = %q", d.Title)
	}
	if d.Price != 300 {
		t.Errorf("Price = %d, want midpoint 300", d.Price)
	}
	if d.Category != "pottery" {
		t.Errorf("Category = %q", d.Category)
	}
	if len(d.Tags) != 5 || d.Tags[0] != "#pottery" {
		t.Errorf("Tags = %v", d.Tags)
	}
	if strings.Contains(d.Text, "Title:") || strings.Contains(d.Text, "Category:") {
		t.Errorf("field lines should be stripped from Text: %q", d.Text)
	}
	if !strings.Contains(d.Text, "Price: ₹200-400") {
		t.Errorf("Text lost the price line: %q", d.Text)
	}
}

func TestParseDescription_Empty(t *testing.T) {
	d := ParseDescription("   ")
	if d.Text != FallbackText || d.Title != FallbackTitle || d.Price != FallbackPrice || d.Category != "handmade" {
		t.Errorf("expected fallback description, got %+v", d)
	}
}

func TestExtractPrice(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"range", "Price: ₹200-400.", 300},
		{"range with spaces", "fair price ₹ 250 - 450", 350},
		{"range with to", "₹1,000 to ₹1,500", 1250},
		{"en dash", "₹300–500", 400},
		{"rupees prefix", "Rs. 600-800", 700},
		{"single", "Price: ₹450", 450},
		{"inverted range uses first amount", "₹500-100", 500},
		{"word ending in rs is not a price", "yours 2 pots", FallbackPrice},
		{"none", "a lovely basket", FallbackPrice},
		{"range at the cap", "₹9,000,000-10,000,000", 9_500_000},
		{"amounts near int max", "₹9223372036854775000-9223372036854775807", FallbackPrice},
		{"amount beyond int", "₹99999999999999999999999", FallbackPrice},
		{"upper bound over the cap", "₹500-20,000,000", 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractPrice(tt.text); got != tt.want {
				t.Errorf("ExtractPrice(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestExtractCategory(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"explicit line", "Nice.\nCategory: Jewelry", "jewelry"},
		{"explicit line with markdown", "Nice.\n**Category:** home-decor", "home-decor"},
		{"unknown explicit falls to keywords", "A brass diya.\nCategory: lamps", "metalwork"},
		{"keyword", "A hand-woven silk saree from Kanchipuram.", "textiles"},
		{"keyword word boundary", "A spotless finish.", "handmade"},
		{"nothing", "A lovely thing.", "handmade"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractCategory(tt.text); got != tt.want {
				t.Errorf("ExtractCategory(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestExtractTitle(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		category string
		want     string
	}{
		{"line", "Title: \"Blue Pottery Vase\"", "pottery", "Blue Pottery Vase"},
		{"from category", "no title here", "home-decor", "Handmade Home-Decor"},
		{"fallback", "no title here", "handmade", FallbackTitle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractTitle(tt.text, tt.category); got != tt.want {
				t.Errorf("ExtractTitle = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractTags_Dedupes(t *testing.T) {
	got := ExtractTags("#Handmade #craft #handmade #शिल्प")
	want := []string{"#Handmade", "#craft", "#शिल्प"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("ExtractTags = %v, want %v", got, want)
	}
}

func TestTitleCase(t *testing.T) {
	for in, want := range map[string]string{
		"pottery":    "Pottery",
		"home-decor": "Home-Decor",
		"HANDMADE":   "Handmade",
		"":           "",
	} {
		if got := TitleCase(in); got != want {
			t.Errorf("TitleCase(%q) = %q, want %q", in, got, want)
		}
	}
}
