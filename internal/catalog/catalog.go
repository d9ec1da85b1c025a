// Package catalog turns product links into identifiers and affiliate links.
package catalog

import (
	"fmt"
	"regexp"
	"strings"
)

var idPattern = regexp.MustCompile(`B0[A-Z0-9]{8}`)

// ExtractID returns the catalog code embedded in a product URL.
func ExtractID(raw string) (string, bool) {
	id := idPattern.FindString(raw)
	return id, id != ""
}

// Links builds affiliate URLs for one marketplace.
type Links struct {
	Host string
	Tag  string
}

// Product is the canonical tagged product page.
func (l Links) Product(id string) string {
	return fmt.Sprintf("https://%s/dp/%s?tag=%s", l.Host, id, l.Tag)
}

// Cart adds one unit of id to the visitor's cart.
func (l Links) Cart(id string) string {
	return fmt.Sprintf("https://%s/gp/aws/cart/add.html?ASIN.1=%s&Quantity.1=1&tag=%s", l.Host, id, l.Tag)
}

// Tagged appends the tracking parameter to an arbitrary link.
func (l Links) Tagged(raw string) string {
	sep := "?"
	if strings.Contains(raw, "?") {
		sep = "&"
	}
	return raw + sep + "tag=" + l.Tag
}

// Resolved is what a pasted link resolves to.
type Resolved struct {
	ID       string
	Link     string
	CartLink string
}

// Resolve prefers the canonical product URL and falls back to tagging the
// raw link when it carries no identifier.
func (l Links) Resolve(raw string) Resolved {
	raw = strings.TrimSpace(raw)
	if id, ok := ExtractID(raw); ok {
		return Resolved{ID: id, Link: l.Product(id), CartLink: l.Cart(id)}
	}
	tagged := l.Tagged(raw)
	return Resolved{Link: tagged, CartLink: tagged}
}

// Shorten rebuilds the canonical link for a stored link, dropping query noise.
func (l Links) Shorten(link string) string {
	base, _, _ := strings.Cut(link, "?")
	if id, ok := ExtractID(base); ok {
		return l.Product(id)
	}
	return link
}
