package crawler

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goldenmouse/bulletin-bot/internal/model"
)

type fakeSource struct {
	pages     map[int][]model.ListItem
	details   map[string]string
	failPages map[int]bool
}

func (f *fakeSource) FetchList(_ context.Context, page int) ([]model.ListItem, error) {
	if f.failPages[page] {
		return nil, errors.New("listing unavailable")
	}
	return f.pages[page], nil
}

func (f *fakeSource) FetchDetail(_ context.Context, url string) (string, error) {
	html, ok := f.details[url]
	if !ok {
		return "", errors.New("detail unavailable")
	}
	return html, nil
}

type fakeArticleStorage struct {
	articles map[string]*model.Article
	nextID   int64
	updates  map[int64]model.ArticleDetails
}

func newFakeArticleStorage() *fakeArticleStorage {
	return &fakeArticleStorage{
		articles: make(map[string]*model.Article),
		updates:  make(map[int64]model.ArticleDetails),
	}
}

func (f *fakeArticleStorage) Add(_ context.Context, article model.Article) (string, error) {
	if _, ok := f.articles[article.URL]; ok {
		return "", nil
	}

	f.nextID++
	article.ID = f.nextID
	f.articles[article.URL] = &article

	return article.URL, nil
}

func (f *fakeArticleStorage) All(_ context.Context) ([]model.Article, error) {
	out := make([]model.Article, 0, len(f.articles))
	for _, article := range f.articles {
		out = append(out, *article)
	}
	return out, nil
}

func (f *fakeArticleStorage) UpdateDetails(_ context.Context, id int64, details model.ArticleDetails) error {
	f.updates[id] = details

	for _, article := range f.articles {
		if article.ID == id {
			article.DetailTime = details.DetailTime
			clicks := details.ClickNum
			article.ClickNum = &clicks
			article.Content = details.Content
		}
	}

	return nil
}

type fakeParser struct {
	details model.ArticleDetails
	err     error
	calls   int
}

func (f *fakeParser) Parse(_ context.Context, _ string) (model.ArticleDetails, error) {
	f.calls++
	return f.details, f.err
}

func listItem(n int) model.ListItem {
	return model.ListItem{
		Type:   "通知",
		Source: "教务部",
		Title:  fmt.Sprintf("公告%d", n),
		Date:   "2024-10-15",
		URL:    fmt.Sprintf("https://nbw.example.cn/info/%d.htm", n),
	}
}

func newTestCrawler(src *fakeSource, store *fakeArticleStorage, p *fakeParser, startPage, endPage int) *Crawler {
	return New(store, src, p, startPage, endPage, SleepIntervals{})
}

func TestCrawlIsIdempotent(t *testing.T) {
	t.Parallel()

	items := []model.ListItem{listItem(1), listItem(2)}
	src := &fakeSource{
		pages: map[int][]model.ListItem{1: items},
		details: map[string]string{
			items[0].URL: "<html>1</html>",
			items[1].URL: "<html>2</html>",
		},
	}
	store := newFakeArticleStorage()
	c := newTestCrawler(src, store, &fakeParser{}, 0, 1)

	newURLs, err := c.Crawl(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{items[0].URL, items[1].URL}, newURLs)
	assert.Len(t, store.articles, 2)

	// Second pass over the same listing inserts nothing
	newURLs, err = c.Crawl(context.Background())
	require.NoError(t, err)
	assert.Empty(t, newURLs)
	assert.Len(t, store.articles, 2)
}

func TestCrawlSkipsFailedPages(t *testing.T) {
	t.Parallel()

	src := &fakeSource{
		pages: map[int][]model.ListItem{
			1: {listItem(1)},
			3: {listItem(3)},
		},
		details: map[string]string{
			listItem(1).URL: "<html>1</html>",
			listItem(3).URL: "<html>3</html>",
		},
		failPages: map[int]bool{2: true},
	}
	store := newFakeArticleStorage()
	c := newTestCrawler(src, store, &fakeParser{}, 0, 3)

	newURLs, err := c.Crawl(context.Background())
	require.NoError(t, err)
	assert.Len(t, newURLs, 2, "pages around the failed one must still be ingested")
}

func TestCrawlSkipsFailedDetailFetch(t *testing.T) {
	t.Parallel()

	items := []model.ListItem{listItem(1), listItem(2)}
	src := &fakeSource{
		pages: map[int][]model.ListItem{1: items},
		details: map[string]string{
			items[1].URL: "<html>2</html>",
		},
	}
	store := newFakeArticleStorage()
	c := newTestCrawler(src, store, &fakeParser{}, 0, 1)

	newURLs, err := c.Crawl(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{items[1].URL}, newURLs)
}

func TestEnrichDetailsSkipsEnriched(t *testing.T) {
	t.Parallel()

	store := newFakeArticleStorage()

	clicks := int64(5)
	enriched := model.Article{
		ID:         1,
		URL:        "https://nbw.example.cn/info/1.htm",
		DetailTime: "09:30",
		ClickNum:   &clicks,
		Content:    "<p>done</p>",
		RawHTML:    "<html>1</html>",
	}
	pending := model.Article{
		ID:      2,
		URL:     "https://nbw.example.cn/info/2.htm",
		RawHTML: "<html>2</html>",
	}
	store.articles[enriched.URL] = &enriched
	store.articles[pending.URL] = &pending
	store.nextID = 2

	p := &fakeParser{details: model.ArticleDetails{
		DetailTime: "10:00",
		ClickNum:   9,
		Content:    "<p>parsed</p>",
	}}
	c := newTestCrawler(&fakeSource{}, store, p, 0, 0)

	processed, err := c.EnrichDetails(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, processed)
	assert.Equal(t, 1, p.calls, "already enriched article must be a cheap skip")
	_, updatedEnriched := store.updates[enriched.ID]
	assert.False(t, updatedEnriched)
	assert.Equal(t, "10:00", store.updates[pending.ID].DetailTime)
}

func TestEnrichDetailsKeepsGoingOnParseFailure(t *testing.T) {
	t.Parallel()

	store := newFakeArticleStorage()
	store.articles["u1"] = &model.Article{ID: 1, URL: "u1", RawHTML: "<html></html>"}

	p := &fakeParser{err: errors.New("no publish time")}
	c := newTestCrawler(&fakeSource{}, store, p, 0, 0)

	processed, err := c.EnrichDetails(context.Background())
	require.NoError(t, err)
	assert.Zero(t, processed)
	assert.Empty(t, store.updates, "failed parse must not write details")
}

func TestRunReturnsNewURLsDespiteEnrichmentFailures(t *testing.T) {
	t.Parallel()

	items := []model.ListItem{listItem(1)}
	src := &fakeSource{
		pages:   map[int][]model.ListItem{1: items},
		details: map[string]string{items[0].URL: "<html>1</html>"},
	}
	store := newFakeArticleStorage()
	p := &fakeParser{err: errors.New("terminal parse error")}
	c := newTestCrawler(src, store, p, 0, 1)

	newURLs, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{items[0].URL}, newURLs)
}
