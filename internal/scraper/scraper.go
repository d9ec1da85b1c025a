// Package scraper fetches product pages and extracts title and price.
package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"github.com/MikeSquared-Agency/pricewatch/internal/catalog"
	"github.com/MikeSquared-Agency/pricewatch/internal/failure"
	"github.com/MikeSquared-Agency/pricewatch/internal/pricing"
)

const maxBody = 5 << 20

// ErrOutOfStock is wrapped in the EXTRACTION failure for unavailable products.
var ErrOutOfStock = errors.New("product out of stock")

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
}

// Product is what a page yields.
type Product struct {
	ID    string
	Title string
	Price decimal.Decimal
	Link  string
}

// Scraper fetches canonical product pages for a marketplace.
type Scraper struct {
	client *http.Client
	links  catalog.Links
	// pageURL builds the fetched URL for an identifier.
	pageURL func(id string) string
	pick    func(n int) int
}

func New(links catalog.Links, timeout time.Duration) *Scraper {
	return &Scraper{
		client:  &http.Client{Timeout: timeout},
		links:   links,
		pageURL: links.Product,
		pick:    rand.Intn,
	}
}

// Fetch loads the page of the product referenced by rawURL. Failures carry
// a failure code: VALIDATION for links without an identifier, TRANSIENT for
// network trouble and unexpected statuses, UPSTREAM_BLOCK for captcha pages
// and 503s, EXTRACTION for pages missing a price.
func (s *Scraper) Fetch(ctx context.Context, rawURL string) (Product, error) {
	id, ok := catalog.ExtractID(rawURL)
	if !ok {
		return Product{}, failure.Newf(failure.CodeValidation, "scraper.fetch", "no product identifier in %q", rawURL)
	}
	target := s.pageURL(id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Product{}, failure.New(failure.CodeValidation, "scraper.fetch", err)
	}
	req.Header.Set("User-Agent", userAgents[s.pick(len(userAgents))])
	req.Header.Set("Accept-Language", "it-IT,it;q=0.9,en-US;q=0.8,en;q=0.7")

	resp, err := s.client.Do(req)
	if err != nil {
		return Product{}, failure.New(failure.CodeTransient, "scraper.fetch", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return Product{}, failure.New(failure.CodeTransient, "scraper.read", err)
	}

	if resp.StatusCode == http.StatusServiceUnavailable || bytes.Contains(bytes.ToLower(body), []byte("captcha")) {
		return Product{}, failure.Newf(failure.CodeUpstreamBlock, "scraper.fetch", "blocked fetching %s (status %d)", id, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return Product{}, failure.Newf(failure.CodeTransient, "scraper.fetch", "unexpected status %d for %s", resp.StatusCode, id)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Product{}, failure.New(failure.CodeExtraction, "scraper.parse", err)
	}

	p, err := Extract(doc)
	if err != nil {
		return Product{}, failure.New(failure.CodeExtraction, "scraper.extract", fmt.Errorf("%s: %w", id, err))
	}
	p.ID = id
	p.Link = s.links.Product(id)
	return p, nil
}

// Extract reads title and price from a product page. Only the price is
// required; a page without a title yields an empty Title.
func Extract(doc *goquery.Document) (Product, error) {
	if outOfStock(doc) {
		return Product{}, ErrOutOfStock
	}

	title := strings.TrimSpace(doc.Find("#productTitle").First().Text())
	price := pricing.Normalize(priceText(doc))
	if !price.IsPositive() {
		return Product{}, errors.New("price not found")
	}
	return Product{Title: title, Price: price}, nil
}

func outOfStock(doc *goquery.Document) bool {
	txt := strings.ToLower(doc.Find("#availability").Text())
	return strings.Contains(txt, "non disponibile") || strings.Contains(txt, "currently unavailable")
}

// priceText tries the known price locations from most to least specific.
func priceText(doc *goquery.Document) string {
	if t := text(doc.Find("span.a-price").First().Find("span.a-offscreen").First()); t != "" {
		return t
	}
	if t := text(doc.Find("#priceblock_ourprice, #priceblock_dealprice").First()); t != "" {
		return t
	}
	if t := text(doc.Find("#corePriceDisplay_desktop_feature_div span.a-offscreen").First()); t != "" {
		return t
	}
	var found string
	doc.Find("span.a-offscreen").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		t := text(sel)
		if strings.ContainsAny(t, "€$") {
			found = t
			return false
		}
		return true
	})
	return found
}

func text(sel *goquery.Selection) string {
	return strings.TrimSpace(sel.Text())
}
