// Package recordsink exports the transmission trail to Postgres/Timescale.
package recordsink

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/domain"
	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/ports"
)

// PGSink buffers records as they are appended to diagnostics and writes them
// in one statement when Flush runs, which the node does right before sleep.
type PGSink struct {
	db        *sql.DB
	tableName string
	nodeID    string
	obs       ports.Observability

	mu      sync.Mutex
	pending []row
	max     int
}

type row struct {
	id  string
	rec domain.TransmissionRecord
}

// NewPGSink buffers at most maxPending records; older ones are dropped first.
func NewPGSink(db *sql.DB, table, nodeID string, maxPending int, obs ports.Observability) *PGSink {
	if maxPending <= 0 {
		maxPending = 512
	}
	if obs == nil {
		obs = ports.NopObservability{}
	}
	return &PGSink{db: db, tableName: table, nodeID: nodeID, max: maxPending, obs: obs}
}

// Observe queues rec for export. It never blocks on the database.
func (t *PGSink) Observe(rec domain.TransmissionRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.pending) >= t.max {
		t.pending = t.pending[1:]
	}
	t.pending = append(t.pending, row{id: uuid.NewString(), rec: rec})
	t.obs.SetGauge("aegis_export_backlog", float64(len(t.pending)))
}

func (t *PGSink) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Flush writes everything buffered. On failure the rows stay buffered for the
// next attempt; the insert is idempotent on record_id.
func (t *PGSink) Flush(ctx context.Context) error {
	t.mu.Lock()
	batch := append([]row(nil), t.pending...)
	t.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}

	if err := t.writeBatch(ctx, batch); err != nil {
		return fmt.Errorf("export %d records: %w", len(batch), err)
	}

	t.mu.Lock()
	t.pending = dropFlushed(t.pending, batch)
	left := len(t.pending)
	t.mu.Unlock()

	t.obs.IncCounter("aegis_records_exported_total", float64(len(batch)))
	t.obs.SetGauge("aegis_export_backlog", float64(left))
	return nil
}

func (t *PGSink) writeBatch(ctx context.Context, rows []row) error {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(t.tableName)
	b.WriteString(" (record_id, node_id, payload_id, link, outcome, attempt, ts) VALUES ")

	args := make([]any, 0, len(rows)*7)
	for i, r := range rows {
		if i > 0 {
			b.WriteString(",")
		}
		n := len(args)
		b.WriteString(fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d,$%d)", n+1, n+2, n+3, n+4, n+5, n+6, n+7))
		args = append(args,
			r.id,
			t.nodeID,
			int64(r.rec.PayloadID),
			r.rec.Link.String(),
			r.rec.Outcome.String(),
			r.rec.Attempt,
			r.rec.Timestamp,
		)
	}
	b.WriteString(" ON CONFLICT (record_id) DO NOTHING")

	_, err := t.db.ExecContext(ctx, b.String(), args...)
	return err
}

// dropFlushed removes the flushed rows, keeping anything observed or evicted
// while the insert ran.
func dropFlushed(pending, flushed []row) []row {
	done := make(map[string]struct{}, len(flushed))
	for _, r := range flushed {
		done[r.id] = struct{}{}
	}
	out := pending[:0]
	for _, r := range pending {
		if _, ok := done[r.id]; !ok {
			out = append(out, r)
		}
	}
	return out
}
