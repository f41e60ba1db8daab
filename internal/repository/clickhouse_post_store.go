package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"AlertFuse/internal/domain/models"
	drepo "AlertFuse/internal/domain/repository"
)

// PostSchema creates the normalized posts table. ReplacingMergeTree on
// post_key folds redeliveries from replay into one row.
const PostSchema = `
CREATE TABLE IF NOT EXISTS posts (
	post_key   String,
	tenant_id  String,
	domain     LowCardinality(String),
	source     LowCardinality(String),
	created_at DateTime64(3),
	title      String,
	summary    String,
	url        String,
	likes      Int64,
	comments   Int64,
	shares     Int64,
	views      Int64,
	price      Float64,
	volume     Float64,
	keywords   String,
	sentiment  Float64,
	severity   Int32,
	entities   String,
	dedup_hash String
) ENGINE = ReplacingMergeTree
ORDER BY (tenant_id, created_at, post_key)
`

// ClickHousePostStore implements PostStore over ClickHouse.
type ClickHousePostStore struct {
	db    *sql.DB
	table string
}

func NewClickHousePostStore(db *sql.DB, table string) drepo.PostStore {
	if table == "" {
		table = "posts"
	}
	return &ClickHousePostStore{db: db, table: table}
}

const postColumns = "post_key, tenant_id, domain, source, created_at, title, summary, url, likes, comments, shares, views, price, volume, keywords, sentiment, severity, entities, dedup_hash"

func postArgs(p *models.NormalizedPost) []interface{} {
	keywords, _ := json.Marshal(p.Keywords)
	entities, _ := json.Marshal(p.Entities)
	return []interface{}{
		p.PostKey,
		p.TenantID,
		string(p.Domain),
		p.Source,
		p.CreatedAt,
		p.Title,
		p.Summary,
		p.URL,
		p.Engagement.Likes,
		p.Engagement.Comments,
		p.Engagement.Shares,
		p.Engagement.Views,
		p.Price,
		p.Volume,
		string(keywords),
		p.Sentiment,
		int32(p.Severity),
		string(entities),
		p.DedupHash,
	}
}

func (s *ClickHousePostStore) Store(ctx context.Context, p *models.NormalizedPost) error {
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", s.table, postColumns)
	_, err := s.db.ExecContext(ctx, q, postArgs(p)...)
	return err
}

func (s *ClickHousePostStore) StoreBatch(ctx context.Context, posts []*models.NormalizedPost) error {
	if len(posts) == 0 {
		return nil
	}
	// Multi-row VALUES, chunked to bound statement size.
	const chunkSize = 1000
	for start := 0; start < len(posts); start += chunkSize {
		end := start + chunkSize
		if end > len(posts) {
			end = len(posts)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*19)
		for _, p := range posts[start:end] {
			if p == nil || p.PostKey == "" {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args, postArgs(p)...)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", s.table, postColumns, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	return nil
}

func (s *ClickHousePostStore) ListSince(ctx context.Context, tenantID string, since time.Time, limit int) ([]*models.NormalizedPost, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE tenant_id = ? AND created_at > ? ORDER BY created_at ASC LIMIT ?`, postColumns, s.table)
	rows, err := s.db.QueryContext(ctx, q, tenantID, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []*models.NormalizedPost
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func scanPost(rows *sql.Rows) (*models.NormalizedPost, error) {
	var (
		p                  models.NormalizedPost
		domain             string
		keywords, entities string
		severity           int32
	)
	err := rows.Scan(
		&p.PostKey, &p.TenantID, &domain, &p.Source, &p.CreatedAt,
		&p.Title, &p.Summary, &p.URL,
		&p.Engagement.Likes, &p.Engagement.Comments, &p.Engagement.Shares, &p.Engagement.Views,
		&p.Price, &p.Volume,
		&keywords, &p.Sentiment, &severity, &entities, &p.DedupHash,
	)
	if err != nil {
		return nil, err
	}
	p.Domain = models.Domain(domain)
	p.Severity = int(severity)
	if keywords != "" {
		_ = json.Unmarshal([]byte(keywords), &p.Keywords)
	}
	if entities != "" {
		_ = json.Unmarshal([]byte(entities), &p.Entities)
	}
	return &p, nil
}

func (s *ClickHousePostStore) Tenants(ctx context.Context, since time.Time) ([]string, error) {
	q := fmt.Sprintf("SELECT DISTINCT tenant_id FROM %s WHERE created_at > ?", s.table)
	rows, err := s.db.QueryContext(ctx, q, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

func (s *ClickHousePostStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHousePostStore) Close() error {
	return nil // the shared client owns the connection
}
