package repository

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "sort"

    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/rental-booking/internal/model"
)

// RedisBookingRepo is a durable BookingStore on Redis. Each booking is a
// JSON string under "<prefix>:rec:<id>"; sets under "<prefix>:user:<uid>"
// and "<prefix>:item:<iid>" index the IDs so listings avoid a keyspace
// scan. The segments keep record keys and index keys apart whatever the
// booking ID looks like.
type RedisBookingRepo struct {
    rdb    redis.Cmdable
    prefix string
}

// NewRedisBookingRepo returns a repository using the given client. An
// empty prefix defaults to "booking".
func NewRedisBookingRepo(rdb redis.Cmdable, prefix string) *RedisBookingRepo {
    if prefix == "" {
        prefix = "booking"
    }
    return &RedisBookingRepo{rdb: rdb, prefix: prefix}
}

func (r *RedisBookingRepo) recordKey(id string) string { return r.prefix + ":rec:" + id }
func (r *RedisBookingRepo) userKey(userID string) string { return r.prefix + ":user:" + userID }
func (r *RedisBookingRepo) itemKey(itemID string) string { return r.prefix + ":item:" + itemID }

// Put writes the record and its index memberships in one MULTI/EXEC.
// When an existing record moved to another user or item the stale index
// entry is removed in the same transaction.
func (r *RedisBookingRepo) Put(ctx context.Context, b *model.Booking) error {
    if err := validateRecord(b); err != nil {
        return err
    }
    body, err := json.Marshal(b)
    if err != nil {
        return fmt.Errorf("marshal booking %s: %w", b.ID, err)
    }
    prev, err := r.Get(ctx, b.ID)
    if err != nil && !errors.Is(err, ErrBookingNotFound) {
        return err
    }
    _, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
        if prev != nil && prev.UserID != b.UserID {
            pipe.SRem(ctx, r.userKey(prev.UserID), b.ID)
        }
        if prev != nil && prev.ItemID != b.ItemID {
            pipe.SRem(ctx, r.itemKey(prev.ItemID), b.ID)
        }
        pipe.Set(ctx, r.recordKey(b.ID), body, 0)
        pipe.SAdd(ctx, r.userKey(b.UserID), b.ID)
        pipe.SAdd(ctx, r.itemKey(b.ItemID), b.ID)
        return nil
    })
    return err
}

// Get loads and decodes a single booking.
func (r *RedisBookingRepo) Get(ctx context.Context, id string) (*model.Booking, error) {
    body, err := r.rdb.Get(ctx, r.recordKey(id)).Bytes()
    if errors.Is(err, redis.Nil) {
        return nil, ErrBookingNotFound
    }
    if err != nil {
        return nil, err
    }
    var b model.Booking
    if err := json.Unmarshal(body, &b); err != nil {
        return nil, fmt.Errorf("decode booking %s: %w", id, err)
    }
    if err := checkStored(&b); err != nil {
        return nil, err
    }
    return &b, nil
}

// ListByUser returns every booking of userID, oldest first.
func (r *RedisBookingRepo) ListByUser(ctx context.Context, userID string) ([]*model.Booking, error) {
    return r.listIndex(ctx, r.userKey(userID))
}

// ListByItem returns every booking of itemID, oldest first.
func (r *RedisBookingRepo) ListByItem(ctx context.Context, itemID string) ([]*model.Booking, error) {
    return r.listIndex(ctx, r.itemKey(itemID))
}

// ListActiveByItem returns the PENDING and CONFIRMED bookings of itemID.
func (r *RedisBookingRepo) ListActiveByItem(ctx context.Context, itemID string) ([]*model.Booking, error) {
    all, err := r.listIndex(ctx, r.itemKey(itemID))
    if err != nil {
        return nil, err
    }
    return filterActive(all), nil
}

// listIndex resolves an index set into records ordered by creation time.
// IDs whose record has vanished are skipped.
func (r *RedisBookingRepo) listIndex(ctx context.Context, indexKey string) ([]*model.Booking, error) {
    ids, err := r.rdb.SMembers(ctx, indexKey).Result()
    if err != nil {
        return nil, err
    }
    out := make([]*model.Booking, 0, len(ids))
    if len(ids) == 0 {
        return out, nil
    }
    keys := make([]string, len(ids))
    for i, id := range ids {
        keys[i] = r.recordKey(id)
    }
    vals, err := r.rdb.MGet(ctx, keys...).Result()
    if err != nil {
        return nil, err
    }
    for i, v := range vals {
        s, ok := v.(string)
        if !ok {
            continue
        }
        var b model.Booking
        if err := json.Unmarshal([]byte(s), &b); err != nil {
            return nil, fmt.Errorf("decode booking %s: %w", ids[i], err)
        }
        if err := checkStored(&b); err != nil {
            return nil, err
        }
        out = append(out, &b)
    }
    sort.Slice(out, func(i, j int) bool {
        if out[i].CreatedAt.Equal(out[j].CreatedAt) {
            return out[i].ID < out[j].ID
        }
        return out[i].CreatedAt.Before(out[j].CreatedAt)
    })
    return out, nil
}
