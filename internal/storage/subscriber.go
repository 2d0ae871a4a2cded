package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"regexp"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/samber/lo"

	"github.com/goldenmouse/bulletin-bot/internal/model"
)

var emailExpr = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

type SubscriberPostgresStorage struct {
	db *sqlx.DB
	// Optional extra restriction on top of the generic e-mail shape,
	// e.g. student-mail addresses only
	mask *regexp.Regexp
}

// NewSubscriberPostgresStorage compiles the optional subscriber mask; an
// empty or invalid mask disables the restriction.
func NewSubscriberPostgresStorage(db *sqlx.DB, mask string) *SubscriberPostgresStorage {
	s := &SubscriberPostgresStorage{db: db}

	if mask != "" {
		expr, err := regexp.Compile(mask)
		if err != nil {
			log.Printf("[ERROR] invalid subscriber mask %q: %v", mask, err)
		} else {
			s.mask = expr
		}
	}

	return s
}

// ValidEmail reports whether the address is well-formed and allowed to
// subscribe.
func (s *SubscriberPostgresStorage) ValidEmail(email string) bool {
	if !emailExpr.MatchString(email) {
		return false
	}
	if s.mask != nil && !s.mask.MatchString(email) {
		return false
	}
	return true
}

// AllSubscribers returns every subscriber with their platform selections
// attached.
func (s *SubscriberPostgresStorage) AllSubscribers(ctx context.Context) ([]model.Subscriber, error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var subscribers []dbSubscriber
	if err := conn.SelectContext(ctx, &subscribers, `SELECT * FROM subscribers`); err != nil {
		return nil, err
	}

	var pairs []dbSubscriberPlatform
	if err := conn.SelectContext(ctx, &pairs,
		`SELECT subscriber_id, platform_id FROM subscriber_platform`); err != nil {
		return nil, err
	}

	platformsBySubscriber := make(map[int64][]int64, len(subscribers))
	for _, pair := range pairs {
		platformsBySubscriber[pair.SubscriberID] = append(platformsBySubscriber[pair.SubscriberID], pair.PlatformID)
	}

	return lo.Map(subscribers, func(sub dbSubscriber, _ int) model.Subscriber {
		return sub.toModel(platformsBySubscriber[sub.ID])
	}), nil
}

// Platforms returns the seeded platform list, ordered by name.
func (s *SubscriberPostgresStorage) Platforms(ctx context.Context) ([]model.Platform, error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var platforms []dbPlatform
	if err := conn.SelectContext(ctx, &platforms,
		`SELECT id, name FROM platforms ORDER BY name`); err != nil {
		return nil, err
	}

	return lo.Map(platforms, func(platform dbPlatform, _ int) model.Platform {
		return model.Platform(platform)
	}), nil
}

// Upsert creates a subscriber or replaces an existing one's selection.
// All-platforms clears the explicit selection; the send frequency is
// clamped into [1, 24] hours.
func (s *SubscriberPostgresStorage) Upsert(ctx context.Context, email string, allPlatforms bool, platformIDs []int64, frequencyHours int) error {
	if !s.ValidEmail(email) {
		return fmt.Errorf("email %q not allowed to subscribe", email)
	}

	if frequencyHours < 1 || frequencyHours > 24 {
		frequencyHours = 24
	}
	if !allPlatforms && len(platformIDs) == 0 {
		allPlatforms = true
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var id int64
	row := tx.QueryRowxContext(ctx,
		`INSERT INTO subscribers (email, all_platforms, send_frequency)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (email) DO UPDATE
		 SET all_platforms = EXCLUDED.all_platforms,
		     send_frequency = EXCLUDED.send_frequency
		 RETURNING id`,
		email, allPlatforms, frequencyHours,
	)
	if err := row.Scan(&id); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM subscriber_platform WHERE subscriber_id = $1`, id); err != nil {
		return err
	}

	if !allPlatforms {
		// Unknown platform ids are dropped silently by the join
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO subscriber_platform (subscriber_id, platform_id)
			 SELECT $1, id FROM platforms WHERE id = ANY($2)`,
			id, pq.Array(platformIDs)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Delete removes a subscriber and their platform selection. An unknown
// address is a warning, not an error.
func (s *SubscriberPostgresStorage) Delete(ctx context.Context, email string) error {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	result, err := conn.ExecContext(ctx, `DELETE FROM subscribers WHERE email = $1`, email)
	if err != nil {
		return err
	}

	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		log.Printf("subscriber not found: %s", email)
	}

	return nil
}

// UpdateLastSentTime records a confirmed dispatch for exactly one
// subscriber.
func (s *SubscriberPostgresStorage) UpdateLastSentTime(ctx context.Context, id int64, sentAt time.Time) error {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	result, err := conn.ExecContext(ctx,
		`UPDATE subscribers SET last_sent_at = $1 WHERE id = $2`, sentAt, id)
	if err != nil {
		return err
	}

	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		log.Printf("subscriber not found, id: %d", id)
	}

	return nil
}

// SeedPlatforms inserts the static platform reference list once. A
// non-empty table means a previous run already seeded it.
func (s *SubscriberPostgresStorage) SeedPlatforms(ctx context.Context, names []string) error {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	var count int
	if err := conn.GetContext(ctx, &count, `SELECT COUNT(*) FROM platforms`); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	for _, name := range names {
		if _, err := conn.ExecContext(ctx,
			`INSERT INTO platforms (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name); err != nil {
			return err
		}
	}

	log.Printf("seeded %d platforms", len(names))

	return nil
}

// IncrementEmailsSent bumps the running total of delivered mails.
func (s *SubscriberPostgresStorage) IncrementEmailsSent(ctx context.Context, n int) error {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	result, err := conn.ExecContext(ctx,
		`UPDATE email_stats SET total_emails_sent = total_emails_sent + $1`, n)
	if err != nil {
		return err
	}

	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		_, err := conn.ExecContext(ctx,
			`INSERT INTO email_stats (total_emails_sent) VALUES ($1)`, n)
		return err
	}

	return nil
}

// Stats returns the subscriber count and the total of delivered mails.
func (s *SubscriberPostgresStorage) Stats(ctx context.Context) (subscribers int64, emailsSent int64, err error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return 0, 0, err
	}
	defer conn.Close()

	if err := conn.GetContext(ctx, &subscribers, `SELECT COUNT(*) FROM subscribers`); err != nil {
		return 0, 0, err
	}

	var total sql.NullInt64
	if err := conn.GetContext(ctx, &total,
		`SELECT SUM(total_emails_sent) FROM email_stats`); err != nil {
		return 0, 0, err
	}

	return subscribers, total.Int64, nil
}

type dbSubscriber struct {
	ID            int64        `db:"id"`
	Email         string       `db:"email"`
	AllPlatforms  bool         `db:"all_platforms"`
	SendFrequency int          `db:"send_frequency"`
	LastSentAt    sql.NullTime `db:"last_sent_at"`
}

func (s dbSubscriber) toModel(platformIDs []int64) model.Subscriber {
	sub := model.Subscriber{
		ID:             s.ID,
		Email:          s.Email,
		AllPlatforms:   s.AllPlatforms,
		PlatformIDs:    platformIDs,
		FrequencyHours: s.SendFrequency,
	}

	if s.LastSentAt.Valid {
		sentAt := s.LastSentAt.Time
		sub.LastSentAt = &sentAt
	}

	return sub
}

type dbSubscriberPlatform struct {
	SubscriberID int64 `db:"subscriber_id"`
	PlatformID   int64 `db:"platform_id"`
}

type dbPlatform struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}
