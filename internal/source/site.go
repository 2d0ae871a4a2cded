package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/axgle/mahonia"

	"github.com/goldenmouse/bulletin-bot/internal/model"
)

// ErrStructureMismatch marks a listing page whose extracted field sequences
// disagree in length: the page template changed, so retrying cannot help and
// the page is skipped whole rather than risking misaligned records.
var ErrStructureMismatch = errors.New("listing structure mismatch")

// Site reads the bulletin board: listing pages, detail pages and the two
// counter endpoints.
type Site struct {
	client     *Client
	baseURL    string
	totalPages int
}

func NewSite(client *Client, baseURL string, totalPages int) *Site {
	return &Site{
		client:     client,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		totalPages: totalPages,
	}
}

func (s *Site) listURL(page int) string {
	return fmt.Sprintf("%s/list.jsp?totalpage=%d&PAGENUM=%d&urltype=tree.TreeTempUrl&wbtreeid=1029", s.baseURL, s.totalPages, page)
}

// FetchList retrieves one listing page and extracts one item per posting.
// The five field sequences are collected independently; the cardinality
// check runs before any record is assembled, since downstream code assumes
// aligned columns.
func (s *Site) FetchList(ctx context.Context, page int) ([]model.ListItem, error) {
	body, err := s.client.Get(ctx, s.listURL(page))
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse listing page: %w", err)
	}

	var (
		types    []string
		units    []string
		dates    []string
		titles   []string
		suffixes []string
	)

	doc.Find(`div > a[target="_self"]`).Each(func(_ int, sel *goquery.Selection) {
		types = append(types, strings.TrimSpace(sel.Text()))
	})
	doc.Find(`a[style*="font-size: 14px"]`).Each(func(_ int, sel *goquery.Selection) {
		units = append(units, strings.TrimSpace(sel.Text()))
	})
	doc.Find(`div[style*="width:11%"]`).Each(func(_ int, sel *goquery.Selection) {
		dates = append(dates, strings.TrimSpace(sel.Text()))
	})
	doc.Find(`a[title][target="_blank"]`).Each(func(_ int, sel *goquery.Selection) {
		title, _ := sel.Attr("title")
		titles = append(titles, title)
	})
	doc.Find(`a[href^="info/"]`).Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		suffixes = append(suffixes, strings.TrimPrefix(href, "info/"))
	})

	if len(types) != len(units) || len(types) != len(dates) ||
		len(types) != len(titles) || len(types) != len(suffixes) {
		log.Printf("[ERROR] page %d: field lengths disagree: types=%d units=%d dates=%d titles=%d urls=%d",
			page, len(types), len(units), len(dates), len(titles), len(suffixes))
		return nil, ErrStructureMismatch
	}

	items := make([]model.ListItem, 0, len(types))
	for i := range types {
		items = append(items, model.ListItem{
			Type:   types[i],
			Source: units[i],
			Title:  titles[i],
			Date:   dates[i],
			URL:    fmt.Sprintf("%s/info/%s", s.baseURL, suffixes[i]),
		})
	}

	log.Printf("page %d extracted, %d records", page, len(items))

	return items, nil
}

// FetchDetail retrieves one posting's raw HTML. The upstream serves UTF-8
// bytes under a Latin-1 label, so the raw body is used as-is when it is
// valid UTF-8; anything else falls back to a GB18030 decode.
func (s *Site) FetchDetail(ctx context.Context, url string) (string, error) {
	body, err := s.client.Get(ctx, url)
	if err != nil {
		return "", err
	}

	if utf8.Valid(body) {
		return string(body), nil
	}

	decoder := mahonia.NewDecoder("gb18030")
	if decoder == nil {
		return string(body), nil
	}

	return decoder.ConvertString(string(body)), nil
}
