package crawler

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/goldenmouse/bulletin-bot/internal/model"
	"github.com/goldenmouse/bulletin-bot/internal/source"
)

type ArticleStorage interface {
	Add(ctx context.Context, article model.Article) (string, error)
	All(ctx context.Context) ([]model.Article, error)
	UpdateDetails(ctx context.Context, id int64, details model.ArticleDetails) error
}

type Source interface {
	FetchList(ctx context.Context, page int) ([]model.ListItem, error)
	FetchDetail(ctx context.Context, url string) (string, error)
}

type DetailParser interface {
	Parse(ctx context.Context, html string) (model.ArticleDetails, error)
}

// SleepIntervals is the self-imposed pacing scheme: a short pause after
// every record and longer pauses at page/record-count multiples, to stay
// under the site's rate tolerance.
type SleepIntervals struct {
	Default  time.Duration
	Every10  time.Duration
	Every30  time.Duration
	Every50  time.Duration
	Every200 time.Duration
}

func DefaultSleepIntervals() SleepIntervals {
	return SleepIntervals{
		Default:  500 * time.Millisecond,
		Every10:  time.Second,
		Every30:  2 * time.Second,
		Every50:  2 * time.Second,
		Every200: 5 * time.Second,
	}
}

// Crawler drives one serial ingestion pass: listing pages high to low,
// detail fetch per record, insert-if-absent, then an enrichment sweep over
// everything still missing details.
type Crawler struct {
	articles  ArticleStorage
	source    Source
	parser    DetailParser
	startPage int
	endPage   int
	sleeps    SleepIntervals
}

func New(articles ArticleStorage, src Source, parser DetailParser, startPage, endPage int, sleeps SleepIntervals) *Crawler {
	return &Crawler{
		articles:  articles,
		source:    src,
		parser:    parser,
		startPage: startPage,
		endPage:   endPage,
		sleeps:    sleeps,
	}
}

// Run executes one full pass, ingestion then enrichment, and returns the
// URLs that were genuinely new this run. Enrichment failures are per-record
// and never touch the returned list.
func (c *Crawler) Run(ctx context.Context) ([]string, error) {
	started := time.Now()

	newURLs, err := c.Crawl(ctx)
	if err != nil {
		return newURLs, err
	}
	log.Printf("crawl finished in %s, %d new articles", time.Since(started).Round(time.Millisecond), len(newURLs))

	processed, err := c.EnrichDetails(ctx)
	if err != nil {
		return newURLs, err
	}
	log.Printf("enrichment finished, %d articles processed", processed)

	return newURLs, nil
}

// Crawl walks the configured page range from the high index down: backlog
// first, recent pages last. A failed page is logged and skipped; pages are
// independent of each other.
func (c *Crawler) Crawl(ctx context.Context) ([]string, error) {
	var newURLs []string

	for page := c.endPage; page > c.startPage; page-- {
		if err := ctx.Err(); err != nil {
			return newURLs, err
		}

		log.Printf("fetching page %d", page)

		items, err := c.source.FetchList(ctx, page)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return newURLs, err
			}
			log.Printf("[ERROR] page %d failed: %v", page, err)
			continue
		}
		if len(items) == 0 {
			log.Printf("[ERROR] page %d returned no records", page)
			continue
		}

		for _, item := range items {
			log.Printf("fetching article: %s - %s", item.Title, item.URL)

			raw, err := c.source.FetchDetail(ctx, item.URL)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return newURLs, err
				}
				log.Printf("[ERROR] article fetch failed: %s: %v", item.URL, err)
				continue
			}

			url, err := c.articles.Add(ctx, model.Article{
				Type:    item.Type,
				Source:  item.Source,
				Title:   item.Title,
				Date:    item.Date,
				URL:     item.URL,
				RawHTML: raw,
			})
			if err != nil {
				log.Printf("[ERROR] store article failed: %s: %v", item.URL, err)
			} else if url != "" {
				newURLs = append(newURLs, url)
				log.Printf("new article: %s", url)
			}

			if err := c.sleep(ctx, c.sleeps.Default); err != nil {
				return newURLs, err
			}
		}

		if err := c.pause(ctx, page); err != nil {
			return newURLs, err
		}
	}

	return newURLs, nil
}

// EnrichDetails sweeps every stored article, parses the ones still missing
// details and applies the result. Returns how many articles are enriched
// after the sweep, counting cheap skips.
func (c *Crawler) EnrichDetails(ctx context.Context) (int, error) {
	articles, err := c.articles.All(ctx)
	if err != nil {
		return 0, err
	}

	var success int

	for i, article := range articles {
		index := i + 1

		if err := ctx.Err(); err != nil {
			return success, err
		}

		if article.Enriched() {
			success++
			continue
		}

		log.Printf("processing article %d: %s", index, article.URL)

		details, err := c.parser.Parse(ctx, article.RawHTML)
		if err != nil {
			// Terminal for this record only; the next sweep sees it again
			log.Printf("[ERROR] processing article %s: %v", article.URL, err)
		} else if err := c.articles.UpdateDetails(ctx, article.ID, details); err != nil {
			log.Printf("[ERROR] updating article %s: %v", article.URL, err)
		} else {
			success++
		}

		if err := c.pause(ctx, index); err != nil {
			return success, err
		}
		if index%200 == 0 {
			if err := c.sleep(ctx, c.sleeps.Every200); err != nil {
				return success, err
			}
		}
	}

	return success, nil
}

func (c *Crawler) pause(ctx context.Context, n int) error {
	if n%10 == 0 {
		if err := c.sleep(ctx, c.sleeps.Every10); err != nil {
			return err
		}
	}
	if n%30 == 0 {
		if err := c.sleep(ctx, c.sleeps.Every30); err != nil {
			return err
		}
	}
	if n%50 == 0 {
		if err := c.sleep(ctx, c.sleeps.Every50); err != nil {
			return err
		}
	}
	return nil
}

func (c *Crawler) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

var _ Source = (*source.Site)(nil)
