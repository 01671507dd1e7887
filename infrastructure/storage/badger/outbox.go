package badger

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/relaysync/conductor/domain/task"
)

// maxAttempts is the retry cap from §4.10: an item that has already been
// retried this many times is discarded rather than retried again.
const maxAttempts = 10

// StatusUpdate is one pending status report the agent owes the coordinator.
type StatusUpdate struct {
	TaskID          string      `json:"taskId"`
	ProjectID       string      `json:"projectId"`
	NodeID          string      `json:"nodeId"`
	Status          task.Status `json:"status"`
	ExpectedVersion int64       `json:"expectedVersion"`
	Iteration       int         `json:"iteration,omitempty"`
	Reason          string      `json:"reason,omitempty"`
	Attempts        int         `json:"attempts"`
	LastAttempt     time.Time   `json:"lastAttempt"`
	QueuedAt        time.Time   `json:"queuedAt"`
}

// Outbox is a BadgerDB-backed, at-least-once delivery queue for terminal
// status updates (§4.10). Entries are keyed by task ID so a later update
// for the same task replaces the one still queued (last-writer-wins).
type Outbox struct {
	db        *badger.DB
	keyPrefix string
}

// NewOutbox creates a new BadgerDB-backed status-sync outbox.
func NewOutbox(cfg Config, opts ...Option) (*Outbox, error) {
	for _, opt := range opts {
		opt(&cfg)
	}
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	return &Outbox{db: db, keyPrefix: cfg.KeyPrefix + "outbox:"}, nil
}

// NewOutboxFromDB creates an outbox backed by an already-open database,
// for sharing one BadgerDB handle across multiple local queues.
func NewOutboxFromDB(db *badger.DB, keyPrefix string) *Outbox {
	return &Outbox{db: db, keyPrefix: keyPrefix + "outbox:"}
}

func (o *Outbox) key(taskID string) []byte {
	return []byte(o.keyPrefix + taskID)
}

// Enqueue queues a status update for delivery, replacing any update
// already queued for the same task (last-writer-wins) and resetting its
// attempt counter since this is a fresh report, not a retry.
func (o *Outbox) Enqueue(ctx context.Context, u StatusUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	u.Attempts = 0
	u.QueuedAt = time.Now().UTC()
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return o.db.Update(func(txn *badger.Txn) error {
		return txn.Set(o.key(u.TaskID), data)
	})
}

// Pending returns every update currently queued, in no particular order.
func (o *Outbox) Pending(ctx context.Context) ([]StatusUpdate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []StatusUpdate
	err := o.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(o.keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var u StatusUpdate
				if err := json.Unmarshal(val, &u); err != nil {
					return nil // skip malformed entries
				}
				out = append(out, u)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

// Deliverer sends one status update to the coordinator. It returns an
// error for any failure that should be retried later.
type Deliverer func(ctx context.Context, u StatusUpdate) error

// Drain attempts delivery of every pending update via deliver. Items that
// succeed are removed. Items that fail have their attempt counter bumped
// and are kept, unless they have already reached maxAttempts, in which
// case they are discarded and reported via onDiscard.
func (o *Outbox) Drain(ctx context.Context, deliver Deliverer, onDiscard func(StatusUpdate)) error {
	pending, err := o.Pending(ctx)
	if err != nil {
		return err
	}
	for _, u := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		if deliver(ctx, u) == nil {
			if err := o.remove(u.TaskID); err != nil {
				return err
			}
			continue
		}
		u.Attempts++
		u.LastAttempt = time.Now().UTC()
		if u.Attempts >= maxAttempts {
			if onDiscard != nil {
				onDiscard(u)
			}
			if err := o.remove(u.TaskID); err != nil {
				return err
			}
			continue
		}
		if err := o.replace(u); err != nil {
			return err
		}
	}
	return nil
}

func (o *Outbox) remove(taskID string) error {
	return o.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(o.key(taskID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

func (o *Outbox) replace(u StatusUpdate) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return o.db.Update(func(txn *badger.Txn) error {
		return txn.Set(o.key(u.TaskID), data)
	})
}

// Len returns the number of updates currently queued.
func (o *Outbox) Len(ctx context.Context) (int, error) {
	pending, err := o.Pending(ctx)
	if err != nil {
		return 0, err
	}
	return len(pending), nil
}

// Close closes the underlying database.
func (o *Outbox) Close() error {
	return o.db.Close()
}
