package infra

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// snapshotVersionKey is a monotonically increasing counter bumped after every
// committed write batch (reconcile or age refresh). Analytics responses are
// cached under version-scoped keys, so a bump implicitly invalidates every
// cached table without any explicit deletion.
const snapshotVersionKey = "snapshot:version"

// BumpSnapshotVersion signals that committed state changed. Best effort:
// callers log the error and continue, since a failed bump only costs cache
// hits, never correctness (readers fall through to the database).
func BumpSnapshotVersion(ctx context.Context, rdb *redis.Client) (int64, error) {
	return rdb.Incr(ctx, snapshotVersionKey).Result()
}

// SnapshotVersion returns the current version; 0 when the key does not exist
// yet or redis is unreachable (cache-off degradation).
func SnapshotVersion(ctx context.Context, rdb *redis.Client) int64 {
	v, err := rdb.Get(ctx, snapshotVersionKey).Int64()
	if err != nil {
		return 0
	}
	return v
}
