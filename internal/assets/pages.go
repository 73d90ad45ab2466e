package assets

import (
	_ "embed"
	"html/template"
	"io"
)

//go:embed templates/product.html
var productPageTemplate string

//go:embed templates/index.html
var shopIndexTemplate string

var (
	productPageTmpl = template.Must(template.New("product").Parse(productPageTemplate))
	shopIndexTmpl   = template.Must(template.New("index").Parse(shopIndexTemplate))
)

// ProductPage is the data rendered into product/<id>.html.
type ProductPage struct {
	ID          string
	ShortID     string
	Title       string
	Description string
	Price       int
	Images      []string
	BuyURL      string
	ShopURL     string
}

// ShopCard is one product tile on the shop index.
type ShopCard struct {
	Title         string
	Price         int
	Category      string
	ArtisanName   string
	ArtisanRegion string
	Image         string
	URL           string
}

// ShopReel is one reel on the shop index.
type ShopReel struct {
	VideoURL     string
	Caption      string
	SellerName   string
	SellerRegion string
	Likes        int
}

// ShopIndex is the data rendered into index.html. Products are newest first.
type ShopIndex struct {
	Products    []ShopCard
	Reels       []ShopReel
	GeneratedAt string
}

// RenderProductPage writes a product page. Values are HTML-escaped, so
// seller-supplied text cannot inject markup.
func RenderProductPage(w io.Writer, page ProductPage) error {
	return productPageTmpl.Execute(w, page)
}

// RenderShopIndex writes the storefront index page.
func RenderShopIndex(w io.Writer, index ShopIndex) error {
	return shopIndexTmpl.Execute(w, index)
}
