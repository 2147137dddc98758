package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/petermyo/DecentralizeFileShare/internal/app/model"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrLinkNotFound signals that the requested short link does not exist.
	ErrLinkNotFound = errors.New("link not found")
	// ErrCodeTaken signals that a short code is already registered.
	ErrCodeTaken = errors.New("short code already taken")
	// ErrUnavailable wraps failures of the backing store.
	ErrUnavailable = errors.New("store unavailable")
)

// LinkRegistry defines the data access contract for short-link records.
type LinkRegistry interface {
	Lookup(ctx context.Context, kind model.RecordKind, code string) (*model.Record, error)
	Create(ctx context.Context, record *model.Record, ttl time.Duration) error
	Put(ctx context.Context, record *model.Record) error
	Delete(ctx context.Context, kind model.RecordKind, code string) error
	ListByOwner(ctx context.Context, ownerID string, kind model.RecordKind) ([]*model.Record, error)
}

type linkRegistry struct {
	client *redis.Client
}

// NewLinkRegistry returns a Redis-backed LinkRegistry.
func NewLinkRegistry(client *redis.Client) LinkRegistry {
	return &linkRegistry{client: client}
}

func (r *linkRegistry) Lookup(ctx context.Context, kind model.RecordKind, code string) (*model.Record, error) {
	val, err := r.client.Get(ctx, recordKey(kind, code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrLinkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s %s: %v", ErrUnavailable, kind, code, err)
	}

	var record model.Record
	if err := json.Unmarshal(val, &record); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", kind, code, err)
	}
	if record.Kind != kind {
		return nil, fmt.Errorf("decode %s %s: %w: stored kind %q", kind, code, model.ErrInvalidRecord, record.Kind)
	}
	return &record, nil
}

func (r *linkRegistry) Create(ctx context.Context, record *model.Record, ttl time.Duration) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode %s: %w", record.Kind, err)
	}

	key := recordKey(record.Kind, record.Code())
	created, err := r.client.SetNX(ctx, key, data, ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: create %s %s: %v", ErrUnavailable, record.Kind, record.Code(), err)
	}
	if !created {
		return ErrCodeTaken
	}

	idx := ownerKey(record.OwnerID(), record.Kind)
	pipe := r.client.TxPipeline()
	pipe.ZAdd(ctx, idx, redis.Z{Score: float64(time.Now().UnixNano()), Member: record.Code()})
	pipe.Expire(ctx, idx, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		// A record missing from its owner's index could never be listed or cleaned up by them.
		if delErr := r.client.Del(ctx, key).Err(); delErr != nil {
			err = errors.Join(err, delErr)
		}
		return fmt.Errorf("%w: index %s %s: %v", ErrUnavailable, record.Kind, record.Code(), err)
	}
	return nil
}

// Put overwrites an existing record and keeps the retention TTL it was created with.
func (r *linkRegistry) Put(ctx context.Context, record *model.Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode %s: %w", record.Kind, err)
	}

	err = r.client.SetArgs(ctx, recordKey(record.Kind, record.Code()), data, redis.SetArgs{
		Mode:    "XX",
		KeepTTL: true,
	}).Err()
	if errors.Is(err, redis.Nil) {
		return ErrLinkNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: put %s %s: %v", ErrUnavailable, record.Kind, record.Code(), err)
	}
	return nil
}

func (r *linkRegistry) Delete(ctx context.Context, kind model.RecordKind, code string) error {
	record, err := r.Lookup(ctx, kind, code)
	if errors.Is(err, ErrLinkNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, recordKey(kind, code))
	pipe.ZRem(ctx, ownerKey(record.OwnerID(), kind), code)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: delete %s %s: %v", ErrUnavailable, kind, code, err)
	}
	return nil
}

// ListByOwner returns the owner's records newest first, pruning index entries
// whose records have aged out of the store.
func (r *linkRegistry) ListByOwner(ctx context.Context, ownerID string, kind model.RecordKind) ([]*model.Record, error) {
	idx := ownerKey(ownerID, kind)
	codes, err := r.client.ZRevRange(ctx, idx, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: list %s for %s: %v", ErrUnavailable, kind, ownerID, err)
	}
	if len(codes) == 0 {
		return nil, nil
	}

	keys := make([]string, len(codes))
	for i, code := range codes {
		keys[i] = recordKey(kind, code)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: load %s for %s: %v", ErrUnavailable, kind, ownerID, err)
	}

	result := make([]*model.Record, 0, len(values))
	var stale []interface{}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, codes[i])
			continue
		}
		var record model.Record
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return nil, fmt.Errorf("decode %s %s: %w", kind, codes[i], err)
		}
		result = append(result, &record)
	}

	if len(stale) > 0 {
		if err := r.client.ZRem(ctx, idx, stale...).Err(); err != nil {
			return nil, fmt.Errorf("%w: prune %s index for %s: %v", ErrUnavailable, kind, ownerID, err)
		}
	}
	return result, nil
}

func recordKey(kind model.RecordKind, code string) string {
	return fmt.Sprintf("%s:%s", kind, code)
}

func ownerKey(ownerID string, kind model.RecordKind) string {
	return fmt.Sprintf("owner:%s:%ss", ownerID, kind)
}
