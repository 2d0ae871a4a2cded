package parser

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/goldenmouse/bulletin-bot/internal/model"
)

// ParseError marks a detail page missing a required field. It is terminal
// for the record's enrichment: the record stays un-enriched and is picked up
// again by a future sweep, but the parse itself is never retried.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "parse: " + e.Reason
}

// ClickCounter resolves the access counter from a scraped argument list.
type ClickCounter interface {
	ClickCount(ctx context.Context, args string) (int64, error)
}

// DownloadCounter resolves an attachment download counter from a scraped
// argument list.
type DownloadCounter interface {
	DownloadCount(ctx context.Context, args string) (int64, error)
}

// Masker runs text through the sensitive-data masking service. It is
// best-effort by contract and always returns usable text.
type Masker interface {
	Mask(ctx context.Context, text string) string
}

const publishTimeLabel = "发布时间："

var (
	contentBlockExpr = regexp.MustCompile(`(?s)<div class="v_news_content">(.*?)</div>`)
	clickScriptExpr  = regexp.MustCompile(`_showDynClicks(.*?)</script></div>`)
	attachmentExpr   = regexp.MustCompile(`附件【<a href="[^"]+"[^>]*target="_blank">(.*?)</a>】`)
	downloadExpr     = regexp.MustCompile(`getClickTimes(.*?)</script></span>`)
)

// Parser extracts the enrichment fields out of a detail page.
type Parser struct {
	masker    Masker
	clicks    ClickCounter
	downloads DownloadCounter
}

func New(masker Masker, clicks ClickCounter, downloads DownloadCounter) *Parser {
	return &Parser{
		masker:    masker,
		clicks:    clicks,
		downloads: downloads,
	}
}

// Parse walks one posting's raw HTML and resolves both counters. Click-count
// resolution is mandatory; download-count resolution degrades to zero.
func (p *Parser) Parse(ctx context.Context, html string) (model.ArticleDetails, error) {
	var details model.ArticleDetails

	if html == "" {
		return details, &ParseError{Reason: "empty html"}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return details, &ParseError{Reason: fmt.Sprintf("build document: %v", err)}
	}

	contentForm := doc.Find(`form[name="_newscontent_fromname"]`)
	if contentForm.Length() == 0 {
		return details, &ParseError{Reason: "content form not found"}
	}

	var totalContent strings.Builder
	contentForm.Each(func(_ int, sel *goquery.Selection) {
		totalContent.WriteString(sel.Text())
	})
	details.TotalContent = p.masker.Mask(ctx, totalContent.String())

	detailTime, err := extractDetailTime(doc)
	if err != nil {
		return details, err
	}
	details.DetailTime = detailTime
	log.Printf("detail time: %s", detailTime)

	if match := contentBlockExpr.FindStringSubmatch(html); match != nil {
		details.Content = match[1]
	} else {
		log.Printf("content block not found")
	}

	clickMatch := clickScriptExpr.FindStringSubmatch(html)
	if clickMatch == nil || !strings.Contains(clickMatch[1], "(") {
		return details, &ParseError{Reason: "click count arguments not found"}
	}

	clickNum, err := p.clicks.ClickCount(ctx, clickMatch[1])
	if err != nil {
		return details, fmt.Errorf("resolve click count: %w", err)
	}
	details.ClickNum = clickNum

	if doc.Find(".fujian").Length() > 0 {
		log.Printf("attachments found")

		names := make([]string, 0, 1)
		for _, match := range attachmentExpr.FindAllStringSubmatch(html, -1) {
			names = append(names, match[1])
		}
		details.Attachments = strings.Join(names, "\n")

		var totalDownloads int64
		downloadMatch := downloadExpr.FindStringSubmatch(html)
		if downloadMatch != nil && strings.Contains(downloadMatch[1], "(") {
			downloads, err := p.downloads.DownloadCount(ctx, downloadMatch[1])
			if err != nil {
				log.Printf("download count unresolved, keeping zero: %v", err)
			} else {
				totalDownloads += downloads
			}
		} else {
			log.Printf("download count arguments not found")
		}
		details.AttachmentDownloads = &totalDownloads
	}

	return details, nil
}

func extractDetailTime(doc *goquery.Document) (string, error) {
	var spanText string
	doc.Find("span").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if strings.Contains(sel.Text(), publishTimeLabel) && sel.Children().Length() == 0 {
			spanText = strings.TrimSpace(sel.Text())
			return false
		}
		return true
	})
	if spanText == "" {
		return "", &ParseError{Reason: "publish time not found"}
	}

	_, totalTime, found := strings.Cut(spanText, publishTimeLabel)
	if !found {
		return "", &ParseError{Reason: "publish time label malformed"}
	}
	if !strings.Contains(totalTime, "日") {
		return "", &ParseError{Reason: "publish time missing day marker"}
	}

	_, detailTime, found := strings.Cut(totalTime, "日 ")
	if !found {
		return "", &ParseError{Reason: "publish time missing clock part"}
	}

	return detailTime, nil
}
