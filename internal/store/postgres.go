package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/spares/internal/inventory"
)

// DefaultNotifyChannel is the channel committed batches are announced on.
const DefaultNotifyChannel = "inventory_items_changed"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS inventory_items (
	id         TEXT PRIMARY KEY,
	doc        JSONB NOT NULL,
	origin     TEXT NOT NULL DEFAULT 'user',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS inventory_items_primary_code_idx
	ON inventory_items ((upper(doc->>'primaryCode')));
CREATE INDEX IF NOT EXISTS inventory_items_secondary_code_idx
	ON inventory_items ((upper(doc->>'secondaryCode')));

CREATE TABLE IF NOT EXISTS inventory_revision (
	id  BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (id),
	rev BIGINT NOT NULL DEFAULT 0
);
INSERT INTO inventory_revision (id, rev) VALUES (TRUE, 0) ON CONFLICT (id) DO NOTHING;

CREATE TABLE IF NOT EXISTS item_history (
	id         UUID PRIMARY KEY,
	item_id    TEXT NOT NULL,
	import_id  TEXT,
	action     TEXT NOT NULL,
	origin     TEXT NOT NULL,
	patch      JSONB NOT NULL,
	ip_address TEXT,
	user_agent TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS item_history_item_idx
	ON item_history (item_id, created_at DESC);
`

const (
	insertItemSQL = `INSERT INTO inventory_items (id, doc, origin) VALUES ($1, $2::jsonb, $3)`

	updateItemSQL = `
UPDATE inventory_items
SET doc = doc || $2::jsonb, origin = $3, updated_at = now()
WHERE id = $1`

	replaceItemSQL = `
INSERT INTO inventory_items (id, doc, origin) VALUES ($1, $2::jsonb, $3)
ON CONFLICT (id) DO UPDATE
SET doc = EXCLUDED.doc, origin = EXCLUDED.origin, updated_at = now()`

	listItemsSQL = `SELECT id, doc FROM inventory_items ORDER BY created_at, id`

	// Taking the row lock first orders concurrent commits by revision.
	bumpRevisionSQL = `UPDATE inventory_revision SET rev = rev + 1 WHERE id RETURNING rev`

	revisionSQL = `SELECT rev FROM inventory_revision WHERE id`

	notifySQL = `SELECT pg_notify($1, $2)`
)

// Postgres stores items in a JSONB table.
type Postgres struct {
	pool    *pgxpool.Pool
	maxOps  int
	channel string
}

// PostgresOption configures a Postgres store.
type PostgresOption func(*Postgres)

// WithMaxBatchOps sets the batch ceiling.
func WithMaxBatchOps(n int) PostgresOption {
	return func(p *Postgres) {
		if n > 0 {
			p.maxOps = n
		}
	}
}

// WithNotifyChannel sets the LISTEN/NOTIFY channel.
func WithNotifyChannel(name string) PostgresOption {
	return func(p *Postgres) {
		if name != "" {
			p.channel = name
		}
	}
}

// NewPostgres returns a store backed by pool.
func NewPostgres(pool *pgxpool.Pool, opts ...PostgresOption) *Postgres {
	p := &Postgres{
		pool:    pool,
		maxOps:  DefaultMaxBatchOps,
		channel: DefaultNotifyChannel,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Migrate creates the tables when missing.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schemaSQL); err != nil {
		return errors.Wrap(err, "migrate inventory schema")
	}
	return nil
}

// MaxBatchOps returns the batch ceiling.
func (p *Postgres) MaxBatchOps() int { return p.maxOps }

// AddDocument stores a new item and returns its ID.
func (p *Postgres) AddDocument(ctx context.Context, it inventory.Item) (string, error) {
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	_, err := p.CommitBatch(ctx, []Mutation{{Kind: MutationCreate, ID: it.ID, Doc: it, Origin: inventory.OriginUser}})
	if err != nil {
		return "", err
	}
	return it.ID, nil
}

// UpdateDocument merges patch into the document id.
func (p *Postgres) UpdateDocument(ctx context.Context, id string, patch map[string]any) error {
	_, err := p.CommitBatch(ctx, []Mutation{{Kind: MutationUpdate, ID: id, Patch: patch, Origin: inventory.OriginUser}})
	return err
}

// CommitBatch runs all mutations in one transaction, sent as a single
// pipelined batch, announces the commit on the notify channel and returns
// the new revision.
func (p *Postgres) CommitBatch(ctx context.Context, muts []Mutation) (int64, error) {
	if len(muts) == 0 {
		return p.revision(ctx)
	}
	if err := checkBatch(muts, p.maxOps); err != nil {
		return 0, err
	}

	batch := &pgx.Batch{}
	for i, m := range muts {
		switch m.Kind {
		case MutationCreate, MutationReplace:
			doc := m.Doc
			doc.ID = m.ID
			raw, err := encodeItem(doc)
			if err != nil {
				return 0, errors.Wrapf(err, "mutation %d", i)
			}
			sql := insertItemSQL
			if m.Kind == MutationReplace {
				sql = replaceItemSQL
			}
			batch.Queue(sql, m.ID, raw, string(m.Origin))
		case MutationUpdate:
			raw, err := json.Marshal(m.Patch)
			if err != nil {
				return 0, errors.Wrapf(err, "mutation %d: encode patch", i)
			}
			batch.Queue(updateItemSQL, m.ID, raw, string(m.Origin))
		default:
			return 0, errors.Errorf("mutation %d: unknown kind %d", i, m.Kind)
		}
	}

	var rev int64
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, bumpRevisionSQL).Scan(&rev); err != nil {
			return errors.Wrap(err, "bump revision")
		}
		batch.Queue(notifySQL, p.channel, strconv.FormatInt(rev, 10))

		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			tag, err := br.Exec()
			if err != nil {
				_ = br.Close()
				if i < len(muts) {
					return errors.Wrapf(err, "mutation %d (%s %s)", i, muts[i].Kind, muts[i].ID)
				}
				return errors.Wrap(err, "notify")
			}
			if i < len(muts) && muts[i].Kind == MutationUpdate && tag.RowsAffected() == 0 {
				_ = br.Close()
				return errors.Wrapf(ErrNotFound, "mutation %d: %s", i, muts[i].ID)
			}
		}
		return br.Close()
	})
	if err != nil {
		return 0, err
	}
	return rev, nil
}

func (p *Postgres) revision(ctx context.Context) (int64, error) {
	var rev int64
	if err := p.pool.QueryRow(ctx, revisionSQL).Scan(&rev); err != nil {
		return 0, errors.Wrap(err, "read revision")
	}
	return rev, nil
}

// ListItems loads the whole collection.
func (p *Postgres) ListItems(ctx context.Context) ([]inventory.Item, error) {
	l, err := p.Load(ctx)
	return l.Items, err
}

// Load reads the collection and its revision from one snapshot.
func (p *Postgres) Load(ctx context.Context) (Listing, error) {
	return load(ctx, p.pool)
}

type txBeginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

func load(ctx context.Context, db txBeginner) (Listing, error) {
	var l Listing
	opts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	err := pgx.BeginTxFunc(ctx, db, opts, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, revisionSQL).Scan(&l.Revision); err != nil {
			return errors.Wrap(err, "read revision")
		}
		items, err := listItems(ctx, tx)
		if err != nil {
			return err
		}
		l.Items = items
		return nil
	})
	return l, err
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listItems(ctx context.Context, q querier) ([]inventory.Item, error) {
	rows, err := q.Query(ctx, listItemsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list items")
	}
	defer rows.Close()

	var items []inventory.Item
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, errors.Wrap(err, "scan item")
		}
		it, err := decodeItem(id, raw)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list items")
	}
	return items, nil
}

// Subscribe holds one pool connection in LISTEN mode. fn receives the full
// collection once on start and again after every notification. It returns
// nil when ctx is cancelled.
func (p *Postgres) Subscribe(ctx context.Context, fn func(Listing)) error {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return errors.Wrap(err, "acquire listen connection")
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{p.channel}.Sanitize()); err != nil {
		return errors.Wrap(err, "listen")
	}

	l, err := load(ctx, conn)
	if err != nil {
		return err
	}
	fn(l)

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "wait for notification")
		}
		slog.Debug("inventory change notification", "channel", n.Channel, "revision", n.Payload)

		l, err := load(ctx, conn)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		fn(l)
	}
}
