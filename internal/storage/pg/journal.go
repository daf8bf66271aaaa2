package pg

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taoyao-code/xbee-digimesh/internal/migrate"
	"github.com/taoyao-code/xbee-digimesh/internal/radio"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Journal 事件流水（每个事件一行，payload 为完整 JSON）
type Journal struct {
	Pool *pgxpool.Pool
}

// EnsureSchema 执行未应用的流水表迁移（幂等）
func (j *Journal) EnsureSchema(ctx context.Context) error {
	_, err := migrate.Runner{FS: migrations, Dir: "migrations"}.Up(ctx, j.Pool)
	return err
}

// JournalEntry 一条流水
type JournalEntry struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	FrameID   int16           `json:"frame_id"`
	Source    *string         `json:"source,omitempty"`
	Detail    *string         `json:"detail,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// entryFor 事件转换为行
func entryFor(ev radio.Event) (JournalEntry, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return JournalEntry{}, fmt.Errorf("marshal event: %w", err)
	}
	e := JournalEntry{
		ID:        ev.ID,
		Kind:      string(ev.Kind),
		FrameID:   int16(ev.FrameID),
		Payload:   payload,
		CreatedAt: ev.Time,
	}
	switch {
	case ev.Message != nil:
		s := ev.Message.Source.String()
		e.Source = &s
	case ev.Node != nil:
		s := ev.Node.Address.String()
		e.Source = &s
	}
	detail := ev.Detail
	if detail == "" {
		detail = ev.Diagnostic
	}
	if detail != "" {
		e.Detail = &detail
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	return e, nil
}

// Record 写入一个事件；重复 ID 忽略
func (j *Journal) Record(ctx context.Context, ev radio.Event) error {
	e, err := entryFor(ev)
	if err != nil {
		return err
	}
	const q = `INSERT INTO xbee_events (id, kind, frame_id, source, detail, payload, created_at)
               VALUES ($1,$2,$3,$4,$5,$6,$7)
               ON CONFLICT (id) DO NOTHING`
	_, err = j.Pool.Exec(ctx, q, e.ID, e.Kind, e.FrameID, e.Source, e.Detail, []byte(e.Payload), e.CreatedAt)
	return err
}

// RecordBatch 批量写入（一次往返）
func (j *Journal) RecordBatch(ctx context.Context, events []radio.Event) error {
	if len(events) == 0 {
		return nil
	}
	const q = `INSERT INTO xbee_events (id, kind, frame_id, source, detail, payload, created_at)
               VALUES ($1,$2,$3,$4,$5,$6,$7)
               ON CONFLICT (id) DO NOTHING`
	batch := &pgx.Batch{}
	for _, ev := range events {
		e, err := entryFor(ev)
		if err != nil {
			return err
		}
		batch.Queue(q, e.ID, e.Kind, e.FrameID, e.Source, e.Detail, []byte(e.Payload), e.CreatedAt)
	}
	return j.Pool.SendBatch(ctx, batch).Close()
}

// Recent 最近的流水；kind 为空表示全部
func (j *Journal) Recent(ctx context.Context, kind string, limit int) ([]JournalEntry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	const q = `SELECT id, kind, frame_id, source, detail, payload, created_at
               FROM xbee_events
               WHERE ($1 = '' OR kind = $1)
               ORDER BY created_at DESC
               LIMIT $2`
	rows, err := j.Pool.Query(ctx, q, kind, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []JournalEntry
	for rows.Next() {
		var e JournalEntry
		var payload []byte
		if err := rows.Scan(&e.ID, &e.Kind, &e.FrameID, &e.Source, &e.Detail, &payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Payload = payload
		out = append(out, e)
	}
	return out, rows.Err()
}
