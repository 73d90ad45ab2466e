package bot

import (
	"fmt"
	"strings"

	"github.com/kalaasaarathi/shopbot/internal/chat"
	"github.com/kalaasaarathi/shopbot/internal/publish"
	"github.com/kalaasaarathi/shopbot/internal/store"
)

// Replies sent to sellers.
const (
	MsgPhotoAck        = "📸 Got your image! Processing it now with AI... I'll send the analysis and shop link in a moment."
	MsgVideoNeedsReel  = "🎥 Got your video! Would you like to add it to reels? Reply 'reel' followed by a caption to add it."
	MsgReelAck         = "🎥 Processing your video for reels..."
	MsgReelNeedsVideo  = "❌ Please send a video with the reel command. Example: reel Check out my new craft!"
	MsgReelAdded       = "🎥 Your video has been added to our reels section! View it on the website."
	MsgHelp            = "📸 Please send a photo of your craft to get started! I'll analyze it and create a shop for you.\n\nType 'help' for commands."
	MsgImageError      = "⚠️ Sorry, I encountered an error processing your image. Please try again."
	MsgVideoError      = "⚠️ Sorry, I encountered an error processing your video. Please try again."
	MsgApology         = "⚠️ Sorry, I encountered an error. Please try sending the photo again."
	MsgBusy            = "⏳ We're handling a lot of crafts right now. Please send your photo again in a few minutes."
	MsgNoProducts      = "You don't have any products yet. Send a photo to create your first shop!"
	MsgListError       = "❌ Error fetching your products. Please try again later."
	MsgEditUsage       = "Usage: edit PRODUCT_ID FIELD VALUE\nExample: edit abc123 price 500\n\nFields: price, description, image, title, category"
	MsgEditBadPrice    = "❌ Price must be a number. Example: edit abc123 price 500"
	MsgEditNeedsImage  = "❌ Please send an image with the edit command: edit PRODUCT_ID image"
	MsgEditBadField    = "❌ Invalid field. Use: price, description, title, category, or image"
	MsgEditNotFound    = "❌ Product not found. Check the product ID."
	MsgEditAmbiguous   = "❌ That product ID matches more than one product. Send more characters of the ID."
	MsgEditError       = "❌ Error updating your product. Please try again later."
	MsgProfileBadField = "❌ Invalid field. Use: name, region, bio, or skills"
	MsgProfileUsage    = "❌ Invalid profile command. Use: profile or profile set FIELD VALUE"
	MsgProfileError    = "❌ Error updating your profile. Please try again later."
	MsgProfileSetup    = "You don't have a profile yet. Set up your profile with:\n\n" +
		"profile set name Your Name\n" +
		"profile set region Your Region\n" +
		"profile set bio Your Bio\n" +
		"profile set skills skill1, skill2, skill3"
)

// MsgWelcome answers a greeting.
const MsgWelcome = `👋 नमस्ते! Welcome to KalaaSaarathi!

Send me a photo of your handmade craft and I'll:
1. 📸 Analyze it with AI
2. 🛍️ Create an online shop
3. 📊 Suggest a fair price
4. 📦 Help with shipping

Commands:
• myproducts - List your items
• categories - Show available categories
• profile - View/update your seller profile
• reel CAPTION + video - Add to reels
• edit PRODUCT_ID price 500 - Change price
• edit PRODUCT_ID description "New text" - Update description
• edit PRODUCT_ID title "New title" - Update title
• edit PRODUCT_ID category pottery - Change category
• edit PRODUCT_ID image + send photo - Change image

Just send a photo to get started!`

// Defaults for products listed before the seller sets up a profile.
const (
	DefaultArtisanName   = "Local Artisan"
	DefaultArtisanRegion = "India"
)

// listLimit is how many products myproducts shows.
const listLimit = 5

// CategoriesMessage lists the advertised categories.
func CategoriesMessage() string {
	var b strings.Builder
	b.WriteString("🏷️ Available Categories:\n\n")
	for _, c := range store.Categories {
		b.WriteString("• " + c + "\n")
	}
	b.WriteString("\nUse: edit PRODUCT_ID category CATEGORY_NAME")
	return b.String()
}

// ShopReadyMessage carries the product page link.
func ShopReadyMessage(url string) string {
	return "🛍️ Your shop is ready: " + url
}

// EditTipsMessage follows a new listing with the edit commands for it.
func EditTipsMessage(productID string) string {
	id := publish.ShortID(productID)
	return "📦 We'll help you with shipping and payments!\n\n" +
		"To edit this product later:\n" +
		"• edit " + id + " price NEW_PRICE\n" +
		"• edit " + id + " description \"NEW_DESCRIPTION\"\n" +
		"• edit " + id + " title \"NEW_TITLE\"\n" +
		"• edit " + id + " category NEW_CATEGORY\n" +
		"• edit " + id + " image + send new photo\n" +
		"• Type 'myproducts' to see all your items\n" +
		"• Type 'profile' to manage your seller profile"
}

// UpdatedMessage confirms an edit.
func UpdatedMessage(field, productID string) string {
	return fmt.Sprintf("✅ Updated %s for product %s", field, publish.ShortID(productID))
}

// EditImageAckMessage acknowledges an image edit that runs in the background.
func EditImageAckMessage(productID string) string {
	return fmt.Sprintf("🖼️ Got the new photo for product %s. Updating your listing now...", publish.ShortID(productID))
}

// EditImageFailedMessage reports an image edit that could not be processed.
// The listing keeps its current images.
func EditImageFailedMessage(productID string) string {
	return fmt.Sprintf("⚠️ Sorry, I couldn't process the new photo for product %s. Your listing still shows the old one. Please try again.", publish.ShortID(productID))
}

// ProfileUpdatedMessage confirms a profile change.
func ProfileUpdatedMessage(field string) string {
	return fmt.Sprintf("✅ Profile %s updated successfully!", field)
}

// ProfileMessage renders a stored profile.
func ProfileMessage(p *store.SellerProfile) string {
	orNotSet := func(s string) string {
		if strings.TrimSpace(s) == "" {
			return "Not set"
		}
		return s
	}
	var b strings.Builder
	b.WriteString("👤 Your Profile:\n\n")
	b.WriteString("Name: " + orNotSet(p.Name) + "\n")
	b.WriteString("Region: " + orNotSet(p.Region) + "\n")
	b.WriteString("Bio: " + orNotSet(p.Bio) + "\n")
	b.WriteString("Skills: " + orNotSet(strings.Join(p.Skills, ", ")) + "\n")
	b.WriteString("\nTo update: profile set name Your Name")
	return b.String()
}

// ProductListMessage renders the seller's most recent products. urlFor
// supplies the link for products stored without one.
func ProductListMessage(products []*store.Product, urlFor func(id string) string) string {
	if len(products) > listLimit {
		products = products[len(products)-listLimit:]
	}
	var b strings.Builder
	b.WriteString("📋 Your Products:\n\n")
	for _, p := range products {
		title := p.Title
		if title == "" {
			title = "Handmade Craft"
		}
		category := p.Category
		if category == "" {
			category = store.FallbackCategory
		}
		url := p.URL
		if url == "" {
			url = urlFor(p.ID)
		}
		fmt.Fprintf(&b, "🆔 %s...\n", publish.ShortID(p.ID))
		fmt.Fprintf(&b, "📦 %s\n", title)
		fmt.Fprintf(&b, "💰 ₹%d\n", p.Price)
		fmt.Fprintf(&b, "📂 %s\n", chat.TitleCase(category))
		fmt.Fprintf(&b, "🔗 %s\n", url)
		b.WriteString("━━━━━━━━━━━━━━━━━━━━\n")
	}
	b.WriteString("\nTo edit: 'edit PRODUCT_ID field value'\nExample: 'edit abc123 price 500'")
	return b.String()
}
