package storage

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/samber/lo"

	"github.com/goldenmouse/bulletin-bot/internal/model"
)

const uniqueViolation = pq.ErrorCode("23505")

type ArticlePostgresStorage struct {
	db *sqlx.DB
}

func NewArticlePostgresStorage(db *sqlx.DB) *ArticlePostgresStorage {
	return &ArticlePostgresStorage{db: db}
}

// Add inserts the article unless its URL is already present. It returns the
// URL for a genuinely new article and "" for an already-known one; a unique
// violation racing past the pre-check counts as already known, so concurrent
// duplicate inserts are safe.
func (s *ArticlePostgresStorage) Add(ctx context.Context, article model.Article) (string, error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	var exists bool
	if err := conn.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM articles WHERE url = $1)`, article.URL); err != nil {
		return "", err
	}
	if exists {
		return "", nil
	}

	_, err = conn.ExecContext(ctx,
		`INSERT INTO articles (type, source, title, date, url, raw_html)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		article.Type, article.Source, article.Title, article.Date, article.URL, article.RawHTML,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			log.Printf("article already exists (concurrent insert): %s", article.URL)
			return "", nil
		}
		return "", err
	}

	return article.URL, nil
}

// UpdateDetails applies the enrichment fields to one article. An unknown id
// is a warning, not an error.
func (s *ArticlePostgresStorage) UpdateDetails(ctx context.Context, id int64, details model.ArticleDetails) error {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	builder := sq.Update("articles").
		Set("detail_time", details.DetailTime).
		Set("click_num", details.ClickNum).
		Set("content", details.Content).
		Set("total_content", details.TotalContent).
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Dollar)

	if details.Attachments != "" {
		builder = builder.Set("attachments", details.Attachments)
	}
	if details.AttachmentDownloads != nil {
		builder = builder.Set("attachment_downloads", *details.AttachmentDownloads)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return err
	}

	result, err := conn.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		log.Printf("article not found, id: %d", id)
	}

	return nil
}

// All returns every stored article. The enrichment sweep is a batch job, so
// a full unordered scan is fine here.
func (s *ArticlePostgresStorage) All(ctx context.Context) ([]model.Article, error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var articles []dbArticle
	if err := conn.SelectContext(ctx, &articles, `SELECT * FROM articles`); err != nil {
		return nil, err
	}

	return lo.Map(articles, func(article dbArticle, _ int) model.Article {
		return article.toModel()
	}), nil
}

// ArticlesByURLs resolves a batch of URLs to full articles. URLs with no
// stored article are simply absent from the result.
func (s *ArticlePostgresStorage) ArticlesByURLs(ctx context.Context, urls []string) ([]model.Article, error) {
	if len(urls) == 0 {
		return nil, nil
	}

	conn, err := s.db.Connx(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var articles []dbArticle
	if err := conn.SelectContext(ctx, &articles,
		`SELECT * FROM articles WHERE url = ANY($1)`, pq.Array(urls)); err != nil {
		return nil, err
	}

	return lo.Map(articles, func(article dbArticle, _ int) model.Article {
		return article.toModel()
	}), nil
}

type dbArticle struct {
	ID                  int64          `db:"id"`
	Type                string         `db:"type"`
	Source              string         `db:"source"`
	Title               string         `db:"title"`
	Date                string         `db:"date"`
	URL                 string         `db:"url"`
	DetailTime          sql.NullString `db:"detail_time"`
	ClickNum            sql.NullInt64  `db:"click_num"`
	Content             sql.NullString `db:"content"`
	TotalContent        sql.NullString `db:"total_content"`
	Attachments         sql.NullString `db:"attachments"`
	AttachmentDownloads sql.NullInt64  `db:"attachment_downloads"`
	RawHTML             string         `db:"raw_html"`
	CreatedAt           time.Time      `db:"created_at"`
}

func (a dbArticle) toModel() model.Article {
	article := model.Article{
		ID:           a.ID,
		Type:         a.Type,
		Source:       a.Source,
		Title:        a.Title,
		Date:         a.Date,
		URL:          a.URL,
		DetailTime:   a.DetailTime.String,
		Content:      a.Content.String,
		TotalContent: a.TotalContent.String,
		Attachments:  a.Attachments.String,
		RawHTML:      a.RawHTML,
		CreatedAt:    a.CreatedAt,
	}

	if a.ClickNum.Valid {
		clicks := a.ClickNum.Int64
		article.ClickNum = &clicks
	}
	if a.AttachmentDownloads.Valid {
		downloads := a.AttachmentDownloads.Int64
		article.AttachmentDownloads = &downloads
	}

	return article
}
