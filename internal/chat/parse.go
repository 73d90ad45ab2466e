package chat

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kalaasaarathi/shopbot/internal/store"
)

var (
	titleLineRe    = regexp.MustCompile(`(?im)^[\s*_]*title[\s*_]*:\s*(.+)$`)
	categoryLineRe = regexp.MustCompile(`(?im)^[\s*_]*category[\s*_]*:\s*(.+)$`)
	priceRangeRe   = regexp.MustCompile(`(?i)(?:₹|\brs\.?|\binr)\s*([\d,]+)\s*(?:-|–|—|to)\s*(?:₹|\brs\.?|\binr)?\s*([\d,]+)`)
	priceSingleRe  = regexp.MustCompile(`(?i)(?:₹|\brs\.?|\binr)\s*([\d,]+)`)
	hashtagRe      = regexp.MustCompile(`#[\p{L}\p{M}\p{N}_]+`)
)

// categoryKeywords maps each advertised category to words that suggest it.
// Scanned in store.Categories order; the first hit wins.
var categoryKeywords = map[string][]string{
	"pottery":     {"pottery", "pot", "pots", "clay", "terracotta", "ceramic", "earthen", "matka"},
	"textiles":    {"textile", "textiles", "saree", "sari", "fabric", "weave", "woven", "handloom", "shawl", "dupatta", "embroidery", "cloth"},
	"jewelry":     {"jewelry", "jewellery", "necklace", "earring", "earrings", "bangle", "bangles", "bracelet", "pendant", "jhumka"},
	"paintings":   {"painting", "paintings", "canvas", "madhubani", "warli", "pattachitra", "kalamkari", "artwork"},
	"wooden":      {"wooden", "wood", "carved", "carving", "sandalwood", "teak"},
	"metalwork":   {"metalwork", "brass", "copper", "bronze", "metal", "dhokra", "bidriware"},
	"leather":     {"leather", "mojari", "jutti"},
	"papercraft":  {"papercraft", "paper", "origami", "quilling", "papier-mache"},
	"home-decor":  {"decor", "lamp", "diya", "vase", "lantern", "toran", "candle"},
	"accessories": {"accessory", "accessories", "bag", "purse", "clutch", "scarf", "wallet"},
}

var categoryRes = compileCategoryRes()

func compileCategoryRes() map[string]*regexp.Regexp {
	out := make(map[string]*regexp.Regexp, len(categoryKeywords))
	for cat, words := range categoryKeywords {
		quoted := make([]string, len(words))
		for i, w := range words {
			quoted[i] = regexp.QuoteMeta(w)
		}
		out[cat] = regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
	}
	return out
}

// ParseDescription derives the listing fields from a model reply. Fields
// that cannot be found fall back to the canned values, so the result is
// always usable.
func ParseDescription(text string) *Description {
	text = strings.TrimSpace(text)
	if text == "" {
		return Fallback()
	}

	category := ExtractCategory(text)
	d := &Description{
		Text:     stripFieldLines(text),
		Title:    ExtractTitle(text, category),
		Price:    ExtractPrice(text),
		Category: category,
		Tags:     ExtractTags(text),
	}
	if d.Text == "" {
		d.Text = FallbackText
	}
	return d
}

// ExtractPrice returns the midpoint of the first ₹ range in text, a single ₹
// amount when there is no range, or FallbackPrice.
func ExtractPrice(text string) int {
	if m := priceRangeRe.FindStringSubmatch(text); m != nil {
		lo, errLo := parseAmount(m[1])
		hi, errHi := parseAmount(m[2])
		if errLo == nil && errHi == nil && lo > 0 && hi >= lo {
			return lo + (hi-lo)/2
		}
	}
	if m := priceSingleRe.FindStringSubmatch(text); m != nil {
		if n, err := parseAmount(m[1]); err == nil && n > 0 {
			return n
		}
	}
	return FallbackPrice
}

// MaxPrice bounds any amount read from a model reply, in rupees.
const MaxPrice = 10_000_000

func parseAmount(s string) (int, error) {
	n, err := strconv.Atoi(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return 0, err
	}
	if n > MaxPrice {
		return 0, fmt.Errorf("amount %d exceeds %d", n, MaxPrice)
	}
	return n, nil
}

// ExtractTitle returns the "Title:" line, or a title built from the
// category when the model left it out.
func ExtractTitle(text, category string) string {
	if m := titleLineRe.FindStringSubmatch(text); m != nil {
		title := strings.Trim(strings.TrimSpace(m[1]), `"'*_ `)
		if title != "" {
			if r := []rune(title); len(r) > 80 {
				title = strings.TrimSpace(string(r[:80]))
			}
			return title
		}
	}
	if category != "" && category != store.FallbackCategory {
		return "Handmade " + TitleCase(category)
	}
	return FallbackTitle
}

// ExtractCategory returns the "Category:" line when it names an advertised
// category, else the first category whose keywords appear in text, else
// store.FallbackCategory.
func ExtractCategory(text string) string {
	if m := categoryLineRe.FindStringSubmatch(text); m != nil {
		c := strings.ToLower(strings.Trim(strings.TrimSpace(m[1]), `"'*_. `))
		if store.IsCategory(c) {
			return c
		}
	}
	body := stripFieldLines(text)
	for _, c := range store.Categories {
		if categoryRes[c].MatchString(body) {
			return c
		}
	}
	return store.FallbackCategory
}

// ExtractTags returns the distinct hashtags in text in order of appearance.
func ExtractTags(text string) []string {
	var tags []string
	seen := make(map[string]bool)
	for _, t := range hashtagRe.FindAllString(text, -1) {
		key := strings.ToLower(t)
		if seen[key] {
			continue
		}
		seen[key] = true
		tags = append(tags, t)
	}
	return tags
}

// stripFieldLines removes the Title and Category lines, which are for
// parsing only.
func stripFieldLines(text string) string {
	text = titleLineRe.ReplaceAllString(text, "")
	text = categoryLineRe.ReplaceAllString(text, "")
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			kept = append(kept, strings.TrimRight(l, " \t"))
		}
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// TitleCase upper-cases the first letter of each hyphen or space separated
// word: "home-decor" becomes "Home-Decor".
func TitleCase(s string) string {
	r := []rune(strings.ToLower(s))
	upper := true
	for i, c := range r {
		if upper && c >= 'a' && c <= 'z' {
			r[i] = c - 'a' + 'A'
		}
		upper = c == ' ' || c == '-'
	}
	return string(r)
}
