package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/pricewatch/internal/catalog"
	"github.com/MikeSquared-Agency/pricewatch/internal/failure"
)

const productURL = "https://www.amazon.it/Friggitrice/dp/B0ABCDEFGH/ref=sr_1_1"

type captured struct {
	path   string
	header http.Header
}

func newTestScraper(t *testing.T, handler http.HandlerFunc) (*Scraper, *captured) {
	t.Helper()
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.path = r.URL.Path
		got.header = r.Header.Clone()
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	s := New(catalog.Links{Host: "www.amazon.it", Tag: "radartest-21"}, 2*time.Second)
	s.pageURL = func(id string) string { return srv.URL + "/dp/" + id }
	s.pick = func(int) int { return 1 }
	return s, got
}

func page(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("<html><body>" + body + "</body></html>"))
	}
}

func TestFetch_MainPrice(t *testing.T) {
	s, req := newTestScraper(t, page(`
		<span id="productTitle">  Friggitrice ad Aria 5L  </span>
		<span class="a-price aok-align-center"><span class="a-offscreen">1.019,99 €</span></span>
		<span id="priceblock_ourprice">9,99 €</span>`))

	p, err := s.Fetch(context.Background(), productURL)
	require.NoError(t, err)
	require.Equal(t, "B0ABCDEFGH", p.ID)
	require.Equal(t, "Friggitrice ad Aria 5L", p.Title)
	require.True(t, p.Price.Equal(decimal.RequireFromString("1019.99")))
	require.Equal(t, "https://www.amazon.it/dp/B0ABCDEFGH?tag=radartest-21", p.Link)

	require.Equal(t, "/dp/B0ABCDEFGH", req.path)
	require.Equal(t, userAgents[1], req.header.Get("User-Agent"))
	require.True(t, strings.HasPrefix(req.header.Get("Accept-Language"), "it-IT"))
}

func TestExtract_Fallbacks(t *testing.T) {
	cases := map[string]string{
		"deal block": `<span id="priceblock_dealprice">44,00 €</span>`,
		"core price": `<div id="corePriceDisplay_desktop_feature_div"><span class="a-offscreen">44,00€</span></div>`,
		"any offscreen": `<span class="a-offscreen">Save now</span><span class="a-offscreen">44,00 €</span>`,
	}
	for name, body := range cases {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<span id="productTitle">X</span>` + body))
		require.NoError(t, err)
		p, err := Extract(doc)
		require.NoError(t, err, name)
		require.True(t, p.Price.Equal(decimal.NewFromInt(44)), name)
	}
}

func TestFetch_Failures(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		code    failure.Code
	}{
		{"503", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) }, failure.CodeUpstreamBlock},
		{"captcha", page(`<form action="/errors/validateCaptcha">Type the characters</form>`), failure.CodeUpstreamBlock},
		{"404", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNotFound) }, failure.CodeTransient},
		{"no price", page(`<span id="productTitle">X</span>`), failure.CodeExtraction},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, _ := newTestScraper(t, tc.handler)
			_, err := s.Fetch(context.Background(), productURL)
			require.Error(t, err)
			require.Equal(t, tc.code, failure.CodeOf(err))
		})
	}
}

func TestFetch_MissingTitleKeepsPrice(t *testing.T) {
	s, _ := newTestScraper(t, page(`<span class="a-price"><span class="a-offscreen">5,00 €</span></span>`))
	p, err := s.Fetch(context.Background(), productURL)
	require.NoError(t, err)
	require.Empty(t, p.Title)
	require.Equal(t, "B0ABCDEFGH", p.ID)
	require.True(t, p.Price.Equal(decimal.NewFromInt(5)))
}

func TestFetch_OutOfStock(t *testing.T) {
	s, _ := newTestScraper(t, page(`
		<span id="productTitle">X</span>
		<div id="availability"><span>Attualmente non disponibile.</span></div>
		<span class="a-price"><span class="a-offscreen">5,00 €</span></span>`))
	_, err := s.Fetch(context.Background(), productURL)
	require.Equal(t, failure.CodeExtraction, failure.CodeOf(err))
	require.True(t, errors.Is(err, ErrOutOfStock))
}

func TestFetch_NoIdentifier(t *testing.T) {
	s, _ := newTestScraper(t, page(""))
	_, err := s.Fetch(context.Background(), "https://example.com/not-a-product")
	require.Equal(t, failure.CodeValidation, failure.CodeOf(err))
}

func TestFetch_Timeout(t *testing.T) {
	s, _ := newTestScraper(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	s.client.Timeout = 50 * time.Millisecond
	_, err := s.Fetch(context.Background(), productURL)
	require.Equal(t, failure.CodeTransient, failure.CodeOf(err))
}
