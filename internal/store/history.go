package store

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/spares/internal/inventory"
)

const (
	insertHistorySQL = `
INSERT INTO item_history (id, item_id, import_id, action, origin, patch, ip_address, user_agent, created_at)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6::jsonb, NULLIF($7, ''), NULLIF($8, ''), $9)`

	listHistorySQL = `
SELECT id::text, item_id, COALESCE(import_id, ''), action, origin, patch,
       COALESCE(ip_address, ''), COALESCE(user_agent, ''), created_at
FROM item_history
WHERE item_id = $1
ORDER BY created_at DESC
LIMIT $2`

	purgeHistorySQL = `DELETE FROM item_history WHERE created_at < $1`
)

// AppendHistory inserts entries in one batch.
func (p *Postgres) AppendHistory(ctx context.Context, entries []HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(insertHistorySQL,
			e.ID, e.ItemID, e.ImportID, e.Action, string(e.Origin), []byte(e.Patch),
			e.IPAddress, e.UserAgent, e.CreatedAt)
	}
	br := p.pool.SendBatch(ctx, batch)
	for i := range entries {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return errors.Wrapf(err, "insert history for %s", entries[i].ItemID)
		}
	}
	return br.Close()
}

// ListHistory returns the newest entries for itemID first. limit <= 0 means
// no limit.
func (p *Postgres) ListHistory(ctx context.Context, itemID string, limit int) ([]HistoryEntry, error) {
	var lim any
	if limit > 0 {
		lim = limit
	}
	rows, err := p.pool.Query(ctx, listHistorySQL, itemID, lim)
	if err != nil {
		return nil, errors.Wrap(err, "list history")
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var (
			e      HistoryEntry
			origin string
			patch  []byte
		)
		if err := rows.Scan(&e.ID, &e.ItemID, &e.ImportID, &e.Action, &origin, &patch,
			&e.IPAddress, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan history")
		}
		e.Origin = inventory.Origin(origin)
		e.Patch = patch
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list history")
	}
	return out, nil
}

// PurgeHistory deletes entries created before cutoff and returns how many
// were removed.
func (p *Postgres) PurgeHistory(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := p.pool.Exec(ctx, purgeHistorySQL, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "purge history")
	}
	return tag.RowsAffected(), nil
}
