package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Redis mirror of gateway presence and activity. The in-process registry is
// authoritative for delivery; these keys serve REST queries and let other
// gateway nodes see who is attached where.
//
// presence key: im:presence:<user>  value: gateway node id, TTL-bound
// activity:     im:activity         hash user -> label

const (
	presencePrefix = "im:presence:"
	activityHash   = "im:activity"
)

type PresenceManager struct {
	rdb    *redis.Client
	nodeID string
	ttl    time.Duration
}

func NewPresenceManager(rdb *redis.Client, nodeID string, ttl time.Duration) *PresenceManager {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &PresenceManager{rdb: rdb, nodeID: nodeID, ttl: ttl}
}

func presenceKey(user string) string { return presencePrefix + user }

// Online marks the user online on this node and starts the TTL.
func (m *PresenceManager) Online(ctx context.Context, user string) error {
	return errors.WithStack(m.rdb.Set(ctx, presenceKey(user), m.nodeID, m.ttl).Err())
}

// Refresh renews the TTL without touching the value.
func (m *PresenceManager) Refresh(ctx context.Context, user string) error {
	return errors.WithStack(m.rdb.Expire(ctx, presenceKey(user), m.ttl).Err())
}

// Offline removes the online marker and the activity entry.
func (m *PresenceManager) Offline(ctx context.Context, user string) error {
	if err := m.rdb.Del(ctx, presenceKey(user)).Err(); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(m.rdb.HDel(ctx, activityHash, user).Err())
}

// Lookup reports whether the user is online anywhere and on which node.
func (m *PresenceManager) Lookup(ctx context.Context, user string) (nodeID string, online bool, err error) {
	val, err := m.rdb.Get(ctx, presenceKey(user)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.WithStack(err)
	}
	return val, true, nil
}

// OnlineUsers scans the presence keyspace and returns every online user id.
func (m *PresenceManager) OnlineUsers(ctx context.Context) ([]string, error) {
	var (
		users  []string
		cursor uint64
	)
	for {
		keys, next, err := m.rdb.Scan(ctx, cursor, presencePrefix+"*", 100).Result()
		if err != nil {
			return nil, errors.WithStack(err)
		}
		for _, k := range keys {
			users = append(users, k[len(presencePrefix):])
		}
		cursor = next
		if cursor == 0 {
			return users, nil
		}
	}
}

// SetActivity upserts the user's activity label.
func (m *PresenceManager) SetActivity(ctx context.Context, user, label string) error {
	return errors.WithStack(m.rdb.HSet(ctx, activityHash, user, label).Err())
}

// Activities returns the full user -> label map.
func (m *PresenceManager) Activities(ctx context.Context) (map[string]string, error) {
	res, err := m.rdb.HGetAll(ctx, activityHash).Result()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return res, nil
}
