package post

import (
	"fmt"
	"net/url"
)

// Button is a URL button under a channel post.
type Button struct {
	Text string
	URL  string
}

// Buttons are the buy, add-to-cart and share links, one per row.
func Buttons(title, priceDisplay, link, cartLink string) []Button {
	share := url.QueryEscape(fmt.Sprintf("Look: %s at %s! %s", title, priceDisplay, link))
	return []Button{
		{Text: "✅ Buy now on Amazon ✅", URL: link},
		{Text: "🛒 Add to cart", URL: cartLink},
		{Text: "😏 Invite a friend", URL: "https://t.me/share/url?url=" + link + "&text=" + share},
	}
}
