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

// FusedSchema creates the fused events table. Rows are never updated,
// so plain MergeTree.
const FusedSchema = `
CREATE TABLE IF NOT EXISTS fused_events (
	id          String,
	ts          DateTime64(3),
	tenant_id   String,
	domain      LowCardinality(String),
	severity    Int32,
	sentiment   Float64,
	keywords    String,
	entities    String,
	evidence    String,
	confidence  Float64,
	rationale   String,
	impact_hint String
) ENGINE = MergeTree
ORDER BY (tenant_id, ts, id)
`

// ClickHouseFusedStore implements FusedStore over ClickHouse.
type ClickHouseFusedStore struct {
	db    *sql.DB
	table string
}

func NewClickHouseFusedStore(db *sql.DB, table string) drepo.FusedStore {
	if table == "" {
		table = "fused_events"
	}
	return &ClickHouseFusedStore{db: db, table: table}
}

const fusedColumns = "id, ts, tenant_id, domain, severity, sentiment, keywords, entities, evidence, confidence, rationale, impact_hint"

func (s *ClickHouseFusedStore) StoreBatch(ctx context.Context, events []*models.FusedEvent) error {
	if len(events) == 0 {
		return nil
	}

	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*12)
	for _, e := range events {
		if e == nil || e.ID == "" {
			continue
		}
		keywords, _ := json.Marshal(e.Keywords)
		entities, _ := json.Marshal(e.Entities)
		evidence, _ := json.Marshal(e.Evidence)
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			e.ID, e.TS, e.TenantID, string(e.Domain),
			int32(e.Severity), e.Sentiment,
			string(keywords), string(entities), string(evidence),
			e.Confidence, e.Rationale, e.ImpactHint,
		)
	}
	if len(values) == 0 {
		return nil
	}

	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", s.table, fusedColumns, strings.Join(values, ","))
	_, err := s.db.ExecContext(ctx, q, args...)
	return err
}

func (s *ClickHouseFusedStore) Query(ctx context.Context, tenantID string, from, to time.Time, limit int) ([]*models.FusedEvent, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE tenant_id = ? AND ts >= ? AND ts <= ? ORDER BY severity DESC, ts DESC LIMIT ?`, fusedColumns, s.table)
	rows, err := s.db.QueryContext(ctx, q, tenantID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.FusedEvent
	for rows.Next() {
		var (
			e                            models.FusedEvent
			domain                       string
			keywords, entities, evidence string
			severity                     int32
		)
		err := rows.Scan(
			&e.ID, &e.TS, &e.TenantID, &domain,
			&severity, &e.Sentiment,
			&keywords, &entities, &evidence,
			&e.Confidence, &e.Rationale, &e.ImpactHint,
		)
		if err != nil {
			return nil, err
		}
		e.Domain = models.Domain(domain)
		e.Severity = int(severity)
		if keywords != "" {
			_ = json.Unmarshal([]byte(keywords), &e.Keywords)
		}
		if entities != "" {
			_ = json.Unmarshal([]byte(entities), &e.Entities)
		}
		if evidence != "" {
			_ = json.Unmarshal([]byte(evidence), &e.Evidence)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

func (s *ClickHouseFusedStore) Close() error {
	return nil // the shared client owns the connection
}
