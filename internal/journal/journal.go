// Package journal persists marketplace notifications in SQLite so that
// indexers can replay them after a restart.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	_ "modernc.org/sqlite"

	"github.com/efreitasn/nftmarket/internal/domain"
)

const schema = `CREATE TABLE IF NOT EXISTS notifications (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	kind       TEXT NOT NULL,
	collection TEXT NOT NULL,
	token_id   TEXT NOT NULL,
	seller     TEXT NOT NULL,
	buyer      TEXT NOT NULL,
	price      TEXT NOT NULL,
	amount     TEXT NOT NULL,
	at         INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS notifications_collection ON notifications (collection, seq);`

// Journal is an append-only SQLite log of notifications.
type Journal struct {
	db *sql.DB
}

// Open opens or creates the journal at path.
func Open(path string) (*Journal, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("journal path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the SQLite handle.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Record appends a notification. Recording the same ID twice is a no-op.
func (j *Journal) Record(ctx context.Context, n domain.Notification) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO notifications
		   (id, kind, collection, token_id, seller, buyer, price, amount, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID,
		string(n.Kind),
		n.Key.Collection.Hex(),
		n.Key.TokenID.Dec(),
		n.Seller.Hex(),
		n.Buyer.Hex(),
		n.Price.Dec(),
		n.Amount.Dec(),
		n.At.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record notification %s: %w", n.ID, err)
	}
	return nil
}

// Recent returns up to limit notifications, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, kind, collection, token_id, seller, buyer, price, amount, at
		   FROM notifications ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Notification, 0)
	for rows.Next() {
		var (
			n                                                    domain.Notification
			kind, collection, tokenID, seller, buyer, price, amt string
			at                                                   int64
		)
		if err := rows.Scan(&n.ID, &kind, &collection, &tokenID, &seller, &buyer, &price, &amt, &at); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Kind = domain.NotificationKind(kind)
		n.Key.Collection = common.HexToAddress(collection)
		n.Seller = common.HexToAddress(seller)
		n.Buyer = common.HexToAddress(buyer)
		n.At = time.UnixMilli(at).UTC()
		for _, f := range []struct {
			dst *uint256.Int
			src string
		}{{&n.Key.TokenID, tokenID}, {&n.Price, price}, {&n.Amount, amt}} {
			if err := f.dst.SetFromDecimal(f.src); err != nil {
				return nil, fmt.Errorf("decode notification %s: %w", n.ID, err)
			}
		}
		result = append(result, n)
	}
	return result, rows.Err()
}
