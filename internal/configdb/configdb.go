package configdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/rsh2prasad/authcfgd/internal/logger"
)

// Package configdb reads the structured configuration store. Tables live
// as redis hashes keyed "<TABLE>|<rowkey>"; row changes surface as
// keyspace notifications.

// Tables maps table name -> row key -> field -> value.
type Tables map[string]map[string]map[string]string

// TableSource supplies a full snapshot of the requested tables. Each
// reconciliation pass reads a complete snapshot rather than tracking
// incremental diffs.
type TableSource interface {
	Snapshot(ctx context.Context, tables []string) (Tables, error)
}

// Notifier delivers change triggers for the requested tables. The channel
// carries no payload; receivers re-snapshot.
type Notifier interface {
	Notifications(ctx context.Context, tables []string) (<-chan struct{}, error)
}

type Client struct {
	rdb *redis.Client
	db  int
}

func New(addr, password string, db int) *Client {
	return &Client{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		db: db,
	}
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) Snapshot(ctx context.Context, tables []string) (Tables, error) {
	out := Tables{}
	for _, table := range tables {
		rows := map[string]map[string]string{}
		iter := c.rdb.Scan(ctx, 0, table+"|*", 0).Iterator()
		for iter.Next(ctx) {
			key := iter.Val()
			rowKey, ok := splitRowKey(table, key)
			if !ok {
				continue
			}
			fields, err := c.rdb.HGetAll(ctx, key).Result()
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", key, err)
			}
			rows[rowKey] = fields
		}
		if err := iter.Err(); err != nil {
			return nil, fmt.Errorf("scan table %s: %w", table, err)
		}
		out[table] = rows
	}
	return out, nil
}

// Notifications subscribes to keyspace events for the given tables and
// forwards them as coalesced triggers. The returned channel closes when
// ctx is cancelled.
func (c *Client) Notifications(ctx context.Context, tables []string) (<-chan struct{}, error) {
	// Keyspace events may be off in a stock redis; best effort to turn
	// them on. The store deployments this daemon targets ship with them
	// enabled.
	if err := c.rdb.ConfigSet(ctx, "notify-keyspace-events", "KEA").Err(); err != nil {
		logger.Warn("could not enable keyspace notifications: %v", err)
	}

	patterns := make([]string, 0, len(tables))
	for _, t := range tables {
		patterns = append(patterns, fmt.Sprintf("__keyspace@%d__:%s|*", c.db, t))
	}
	ps := c.rdb.PSubscribe(ctx, patterns...)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer func() { _ = ps.Close() }()
		ch := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
					// A trigger is already pending; coalesce.
				}
			}
		}
	}()
	return out, nil
}

// splitRowKey extracts the row key from "<TABLE>|<rowkey>". Row keys may
// themselves contain the separator (IPv6 addresses do not, but vrf-scoped
// keys can), so only the first one splits.
func splitRowKey(table, key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, table+"|")
	if !ok || rest == "" {
		return "", false
	}
	return rest, true
}
