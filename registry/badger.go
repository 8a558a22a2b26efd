package registry

import (
	"context"
	"encoding/binary"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	badger "github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/trufnetwork/wageproof/canonical"
)

// nullifierPrefix namespaces registry keys inside the badger keyspace.
var nullifierPrefix = []byte("nullifier/")

const (
	defaultConflictRetries = 16
	consumedAtLength       = 8
)

// Badger is a persistent Registry. TryConsume runs as one serializable badger
// transaction: a read of the key followed by a write. Badger aborts the later
// of two overlapping transactions with ErrConflict; the loser is re-run, sees
// the winner's write and reports false.
type Badger struct {
	db              *badger.DB
	logger          *zap.Logger
	now             func() time.Time
	conflictRetries uint64
}

// BadgerOption configures a Badger registry.
type BadgerOption func(*badgerConfig)

type badgerConfig struct {
	dir             string
	logger          *zap.Logger
	now             func() time.Time
	conflictRetries uint64
}

// WithBadgerDir stores the registry on disk under dir. Without it the
// registry lives in memory only.
func WithBadgerDir(dir string) BadgerOption {
	return func(c *badgerConfig) { c.dir = dir }
}

// WithBadgerLogger routes badger's own log output to logger.
func WithBadgerLogger(logger *zap.Logger) BadgerOption {
	return func(c *badgerConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithBadgerClock sets the time source used for consumedAt.
func WithBadgerClock(now func() time.Time) BadgerOption {
	return func(c *badgerConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// WithConflictRetries bounds how often a conflicting transaction is re-run.
func WithConflictRetries(n uint64) BadgerOption {
	return func(c *badgerConfig) { c.conflictRetries = n }
}

// OpenBadger opens (or creates) a badger-backed registry.
func OpenBadger(opts ...BadgerOption) (*Badger, error) {
	cfg := &badgerConfig{
		logger:          zap.NewNop(),
		now:             time.Now,
		conflictRetries: defaultConflictRetries,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	var badgerOpts badger.Options
	if cfg.dir == "" {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "create registry dir %s", cfg.dir)
		}
		badgerOpts = badger.DefaultOptions(cfg.dir)
	}
	badgerOpts = badgerOpts.
		WithLogger(newBadgerLogger(cfg.logger)).
		// badger's INFO output is noisy for a single-keyspace store
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, errors.Wrap(err, "open badger registry")
	}
	return &Badger{
		db:              db,
		logger:          cfg.logger,
		now:             cfg.now,
		conflictRetries: cfg.conflictRetries,
	}, nil
}

// Close releases the underlying database.
func (b *Badger) Close() error {
	return b.db.Close()
}

func (b *Badger) TryConsume(ctx context.Context, nullifier canonical.Digest) (bool, error) {
	key := nullifierKey(nullifier)

	var consumed bool
	op := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		consumed = false
		err := b.db.Update(func(txn *badger.Txn) error {
			_, err := txn.Get(key)
			switch {
			case err == nil:
				return nil
			case !errors.Is(err, badger.ErrKeyNotFound):
				return err
			}
			if err := txn.Set(key, encodeConsumedAt(b.now())); err != nil {
				return err
			}
			consumed = true
			return nil
		})
		if errors.Is(err, badger.ErrConflict) {
			b.logger.Debug("nullifier transaction conflict, re-running", zap.String("nullifier", nullifier.Hex()))
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), b.conflictRetries),
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		return false, errors.Wrapf(err, "consume nullifier %s", nullifier.Hex())
	}
	return consumed, nil
}

func (b *Badger) IsUsed(ctx context.Context, nullifier canonical.Digest) (bool, error) {
	_, used, err := b.ConsumedAt(ctx, nullifier)
	return used, err
}

func (b *Badger) ConsumedAt(ctx context.Context, nullifier canonical.Digest) (time.Time, bool, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, false, err
	}

	var (
		consumedAt time.Time
		found      bool
	)
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(nullifierKey(nullifier))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		consumedAt, err = decodeConsumedAt(raw)
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return time.Time{}, false, errors.Wrapf(err, "look up nullifier %s", nullifier.Hex())
	}
	return consumedAt, found, nil
}

func nullifierKey(d canonical.Digest) []byte {
	key := make([]byte, 0, len(nullifierPrefix)+canonical.DigestLength)
	key = append(key, nullifierPrefix...)
	return append(key, d[:]...)
}

func encodeConsumedAt(t time.Time) []byte {
	out := make([]byte, consumedAtLength)
	binary.BigEndian.PutUint64(out, uint64(t.UnixNano()))
	return out
}

func decodeConsumedAt(raw []byte) (time.Time, error) {
	if len(raw) != consumedAtLength {
		return time.Time{}, errors.Errorf("corrupt consumedAt value of %d bytes", len(raw))
	}
	return time.Unix(0, int64(binary.BigEndian.Uint64(raw))).UTC(), nil
}

// badgerLogger adapts zap to badger.Logger.
type badgerLogger struct {
	s *zap.SugaredLogger
}

func newBadgerLogger(l *zap.Logger) *badgerLogger {
	return &badgerLogger{s: l.Named("badger").WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func (l *badgerLogger) Errorf(format string, args ...any)   { l.s.Errorf(format, args...) }
func (l *badgerLogger) Warningf(format string, args ...any) { l.s.Warnf(format, args...) }
func (l *badgerLogger) Infof(format string, args ...any)    { l.s.Infof(format, args...) }
func (l *badgerLogger) Debugf(format string, args ...any)   { l.s.Debugf(format, args...) }
