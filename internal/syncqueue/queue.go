// Package syncqueue defers record writes made while the backend is
// unreachable and replays them once connectivity returns.
package syncqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/vitalwarrior/internal/domain"
	"github.com/spec-kit/vitalwarrior/internal/persistence"
)

// Key is the slot holding the queued items as a JSON array.
const Key = "pendingSync"

// Writer receives replayed items.
type Writer interface {
	Insert(ctx context.Context, table string, record any) error
	Upsert(ctx context.Context, table string, record any) error
}

// Queue is a FIFO of SyncItems stored in one durable slot.
type Queue struct {
	mu     sync.Mutex
	slots  persistence.SlotStore
	logger *zap.Logger
	now    func() time.Time
}

// New builds a queue over slots.
func New(slots persistence.SlotStore, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{slots: slots, logger: logger.Named("syncqueue"), now: time.Now}
}

// Enqueue appends a write with a fresh id and UTC timestamp.
func (q *Queue) Enqueue(ctx context.Context, typ domain.SyncType, data any) (domain.SyncItem, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return domain.SyncItem{}, fmt.Errorf("encode sync data: %w", err)
	}
	item := domain.SyncItem{
		ID:        uuid.NewString(),
		Type:      typ,
		Data:      raw,
		Timestamp: q.now().UTC(),
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	items, err := q.load(ctx)
	if err != nil {
		return domain.SyncItem{}, err
	}
	if err := q.store(ctx, append(items, item)); err != nil {
		return domain.SyncItem{}, err
	}
	q.logger.Info("queued for sync", zap.String("id", item.ID), zap.String("type", string(typ)))
	return item, nil
}

// Pending returns the queued items in order.
func (q *Queue) Pending(ctx context.Context) ([]domain.SyncItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.load(ctx)
}

// Drain replays the queue through w in order. The first failure stops the
// drain and leaves every item queued. After a full pass the replayed items
// are removed; items enqueued meanwhile stay. It returns the number of
// items written.
func (q *Queue) Drain(ctx context.Context, w Writer) (int, error) {
	q.mu.Lock()
	items, err := q.load(ctx)
	q.mu.Unlock()
	if err != nil || len(items) == 0 {
		return 0, err
	}

	written := 0
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		switch item.Type {
		case domain.SyncHealthRecord:
			err = w.Insert(ctx, domain.TableHealthRecords, item.Data)
		case domain.SyncUserProfile:
			err = w.Upsert(ctx, domain.TableProfiles, item.Data)
		default:
			q.logger.Warn("unknown sync item type", zap.String("id", item.ID), zap.String("type", string(item.Type)))
			continue
		}
		if err != nil {
			q.logger.Error("sync failed", zap.String("id", item.ID), zap.Error(err))
			return 0, err
		}
		written++
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.removeDrained(ctx, items); err != nil {
		return 0, err
	}
	q.logger.Info("pending data synced", zap.Int("count", written))
	return written, nil
}

func (q *Queue) removeDrained(ctx context.Context, drained []domain.SyncItem) error {
	current, err := q.load(ctx)
	if err != nil {
		return err
	}
	done := make(map[string]struct{}, len(drained))
	for _, item := range drained {
		done[item.ID] = struct{}{}
	}
	rest := current[:0]
	for _, item := range current {
		if _, ok := done[item.ID]; !ok {
			rest = append(rest, item)
		}
	}
	if len(rest) == 0 {
		return q.slots.Delete(ctx, Key)
	}
	return q.store(ctx, rest)
}

func (q *Queue) load(ctx context.Context) ([]domain.SyncItem, error) {
	raw, ok, err := q.slots.Get(ctx, Key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", Key, err)
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var items []domain.SyncItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", Key, err)
	}
	return items, nil
}

func (q *Queue) store(ctx context.Context, items []domain.SyncItem) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return q.slots.Set(ctx, Key, string(raw))
}
