package notifier

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/tomakado/containers/set"

	"github.com/goldenmouse/bulletin-bot/internal/model"
)

type ArticleProvider interface {
	ArticlesByURLs(ctx context.Context, urls []string) ([]model.Article, error)
}

type SubscriberStorage interface {
	AllSubscribers(ctx context.Context) ([]model.Subscriber, error)
	Platforms(ctx context.Context) ([]model.Platform, error)
	UpdateLastSentTime(ctx context.Context, id int64, sentAt time.Time) error
	IncrementEmailsSent(ctx context.Context, n int) error
}

// Mailer delivers one message. By contract it never fails loudly: expected
// transport errors come back as a zero sent count.
type Mailer interface {
	Send(recipients []string, subject, body string, isHTML bool) int
}

type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Notifier turns a batch of newly-ingested URLs into per-subscriber digest
// mails, one per originating unit, honouring each subscriber's cadence.
type Notifier struct {
	articles         ArticleProvider
	subscribers      SubscriberStorage
	mailer           Mailer
	summarizer       Summarizer
	sent             *SentCache
	subscribePageURL string
	// Injected clock
	now func() time.Time
}

func New(
	articles ArticleProvider,
	subscribers SubscriberStorage,
	mailer Mailer,
	summarizer Summarizer,
	sent *SentCache,
	subscribePageURL string,
) *Notifier {
	return &Notifier{
		articles:         articles,
		subscribers:      subscribers,
		mailer:           mailer,
		summarizer:       summarizer,
		sent:             sent,
		subscribePageURL: subscribePageURL,
		now:              time.Now,
	}
}

// Notify processes one batch of newly-inserted URLs. A mailer failure for
// one subscriber leaves that subscriber's clock untouched and never affects
// the others.
func (n *Notifier) Notify(ctx context.Context, newURLs []string) error {
	fresh := make([]string, 0, len(newURLs))
	for _, url := range newURLs {
		if !n.sent.Contains(url) {
			fresh = append(fresh, url)
		}
	}
	if len(fresh) == 0 {
		log.Printf("no new articles to send")
		return nil
	}

	// URLs ingested but not yet resolvable are dropped; notification runs
	// right after ingestion, before enrichment has seen them
	articles, err := n.articles.ArticlesByURLs(ctx, fresh)
	if err != nil {
		return err
	}
	if len(articles) == 0 {
		log.Printf("no stored articles for %d new urls", len(fresh))
		return nil
	}

	groups := make(map[string][]model.Article)
	for _, article := range articles {
		groups[article.Source] = append(groups[article.Source], article)
	}

	units := make([]string, 0, len(groups))
	for unit := range groups {
		units = append(units, unit)
	}
	sort.Strings(units)

	platformIDs, err := n.platformIDsByName(ctx)
	if err != nil {
		return err
	}

	subscribers, err := n.subscribers.AllSubscribers(ctx)
	if err != nil {
		return err
	}

	now := n.now()

	for _, unit := range units {
		group := groups[unit]
		subject := buildSubject(group)

		body, err := renderDigest(unit, n.digestArticles(ctx, group), n.subscribePageURL)
		if err != nil {
			log.Printf("[ERROR] render digest for %s: %v", unit, err)
			continue
		}

		unitPlatformID := platformIDs[unit]

		for _, sub := range subscribers {
			if !due(sub, now) || !interested(sub, unitPlatformID) {
				continue
			}

			sentCount := n.mailer.Send([]string{sub.Email}, subject, body, true)
			if sentCount == 0 {
				// Clock stays put: the subscriber is still due next run
				log.Printf("[ERROR] dispatch to %s failed, will retry on next due cycle", sub.Email)
				continue
			}

			if err := n.subscribers.UpdateLastSentTime(ctx, sub.ID, now); err != nil {
				log.Printf("[ERROR] update last sent time for %s: %v", sub.Email, err)
			}
			if err := n.subscribers.IncrementEmailsSent(ctx, sentCount); err != nil {
				log.Printf("[ERROR] update email stats: %v", err)
			}
		}

		log.Printf("dispatched %s digest, %d articles", unit, len(group))
	}

	n.sent.Add(fresh...)

	return nil
}

// due applies the cadence rule: never-sent subscribers are always due,
// others once their configured hours have elapsed.
func due(sub model.Subscriber, now time.Time) bool {
	if sub.LastSentAt == nil {
		return true
	}

	return now.Sub(*sub.LastSentAt) >= time.Duration(sub.FrequencyHours)*time.Hour
}

func interested(sub model.Subscriber, platformID int64) bool {
	if sub.AllPlatforms {
		return true
	}
	if platformID == 0 {
		return false
	}

	return set.New(sub.PlatformIDs...).Contains(platformID)
}

func (n *Notifier) platformIDsByName(ctx context.Context) (map[string]int64, error) {
	platforms, err := n.subscribers.Platforms(ctx)
	if err != nil {
		return nil, err
	}

	ids := make(map[string]int64, len(platforms))
	for _, platform := range platforms {
		ids[platform.Name] = platform.ID
	}

	return ids, nil
}

func (n *Notifier) digestArticles(ctx context.Context, group []model.Article) []digestArticle {
	items := make([]digestArticle, 0, len(group))
	for _, article := range group {
		items = append(items, digestArticle{
			Title:       article.Title,
			URL:         article.URL,
			Source:      article.Source,
			DateDisplay: dateDisplay(article),
			Summary:     n.summarize(ctx, article),
		})
	}

	return items
}

func (n *Notifier) summarize(ctx context.Context, article model.Article) string {
	if n.summarizer == nil || article.TotalContent == "" {
		return ""
	}

	summary, err := n.summarizer.Summarize(ctx, article.TotalContent)
	if err != nil {
		log.Printf("summary unavailable for %s: %v", article.URL, err)
		return ""
	}

	return summary
}
