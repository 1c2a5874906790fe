package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/rcliao/checkpoint-tracker/internal/model"
	"github.com/rcliao/checkpoint-tracker/internal/scoring"
)

// Key layout. Category and name are separated by a NUL byte so a prefix
// scan over one category never matches another category sharing a prefix.
const (
	catalogPrefix = "catalog/"
	scorePrefix   = "score/"
	metaPrefix    = "meta/"
	patternPrefix = "pattern/"
	keySep        = "\x00"
)

// BadgerConfig configures a BadgerStore.
type BadgerConfig struct {
	// Path is the database directory. Required unless InMemory is set.
	Path string

	// InMemory keeps all data in memory. Used by tests and dry runs.
	InMemory bool

	// Logger receives Badger's internal logs. Nil silences them.
	Logger *slog.Logger
}

// BadgerStore implements Store on an embedded Badger key-value database.
// Updates run in optimistic transactions; a concurrent write to the same
// row fails the later commit with badger.ErrConflict, which IsTransient
// reports as retryable.
type BadgerStore struct {
	db *badger.DB
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// NewBadgerStore opens or creates a Badger database.
func NewBadgerStore(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func rowKey(prefix, category, name string) []byte {
	return []byte(prefix + category + keySep + name)
}

func categoryPrefix(prefix, category string) []byte {
	return []byte(prefix + category + keySep)
}

// categoryOf extracts the category from a row key built by rowKey.
func categoryOf(prefix string, key []byte) string {
	rest := bytes.TrimPrefix(key, []byte(prefix))
	if i := bytes.IndexByte(rest, keySep[0]); i >= 0 {
		return string(rest[:i])
	}
	return string(rest)
}

func getJSON(txn *badger.Txn, key []byte, v interface{}) error {
	item, err := txn.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func setJSON(txn *badger.Txn, key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

// scan calls fn with every value under prefix, in key order.
func scan(txn *badger.Txn, prefix []byte, fn func(key, val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		key := item.KeyCopy(nil)
		if err := item.Value(func(val []byte) error { return fn(key, val) }); err != nil {
			return err
		}
	}
	return nil
}

func (s *BadgerStore) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(fn)
}

func (s *BadgerStore) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(fn)
}

func (s *BadgerStore) CatalogEntries(ctx context.Context, category string) ([]model.CatalogEntry, error) {
	out := []model.CatalogEntry{}
	err := s.view(ctx, func(txn *badger.Txn) error {
		return scan(txn, categoryPrefix(catalogPrefix, category), func(_, val []byte) error {
			var e model.CatalogEntry
			if err := json.Unmarshal(val, &e); err != nil {
				return err
			}
			out = append(out, e)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("scan catalog: %w", err)
	}
	return out, nil
}

func (s *BadgerStore) Scores(ctx context.Context, category string) ([]model.ScoreRecord, error) {
	out := []model.ScoreRecord{}
	err := s.view(ctx, func(txn *badger.Txn) error {
		return scan(txn, categoryPrefix(scorePrefix, category), func(_, val []byte) error {
			var r model.ScoreRecord
			if err := json.Unmarshal(val, &r); err != nil {
				return err
			}
			out = append(out, r)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("scan scores: %w", err)
	}
	return out, nil
}

func (s *BadgerStore) RecordSessionMeta(ctx context.Context, meta model.SessionMeta) error {
	meta.CreatedAt = meta.CreatedAt.UTC()
	err := s.update(ctx, func(txn *badger.Txn) error {
		return setJSON(txn, []byte(metaPrefix+meta.ID), meta)
	})
	if err != nil {
		return fmt.Errorf("put session meta: %w", err)
	}
	return nil
}

func (s *BadgerStore) ObserveCheckpoint(ctx context.Context, p ObserveParams) (bool, error) {
	key := rowKey(catalogPrefix, p.Category, p.Name)
	var created bool
	err := s.update(ctx, func(txn *badger.Txn) error {
		now := time.Now().UTC()
		var e model.CatalogEntry
		switch err := getJSON(txn, key, &e); {
		case errors.Is(err, ErrNotFound):
			created = true
			e = model.CatalogEntry{Category: p.Category, Name: p.Name, CreatedAt: now}
		case err != nil:
			return err
		}
		e.UsageCount++
		if p.DecisionLed {
			e.DecisionCount++
		}
		e.UpdatedAt = now
		return setJSON(txn, key, e)
	})
	if err != nil {
		return false, fmt.Errorf("observe checkpoint %q: %w", p.Name, err)
	}
	return created, nil
}

func (s *BadgerStore) AppendPattern(ctx context.Context, rec model.PatternRecord) error {
	rec.CreatedAt = rec.CreatedAt.UTC()
	err := s.update(ctx, func(txn *badger.Txn) error {
		return setJSON(txn, rowKey(patternPrefix, rec.Category, rec.ID), rec)
	})
	if err != nil {
		return fmt.Errorf("put pattern: %w", err)
	}
	return nil
}

func (s *BadgerStore) ApplyCoverage(ctx context.Context, p CoverageParams) (*model.ScoreRecord, error) {
	key := rowKey(scorePrefix, p.Category, p.Name)
	var next model.ScoreRecord
	err := s.update(ctx, func(txn *badger.Txn) error {
		var prev *model.ScoreRecord
		var r model.ScoreRecord
		switch err := getJSON(txn, key, &r); {
		case errors.Is(err, ErrNotFound):
		case err != nil:
			return err
		default:
			prev = &r
		}
		next = scoring.ApplyCoverage(prev, p.Category, p.Name, p.Position, p.LedToDecision, time.Now().UTC())
		return setJSON(txn, key, next)
	})
	if err != nil {
		return nil, fmt.Errorf("apply coverage %q: %w", p.Name, err)
	}
	return &next, nil
}

func (s *BadgerStore) Categories(ctx context.Context) ([]CategoryStats, error) {
	byName := map[string]*CategoryStats{}
	get := func(cat string) *CategoryStats {
		cs, ok := byName[cat]
		if !ok {
			cs = &CategoryStats{Category: cat}
			byName[cat] = cs
		}
		return cs
	}

	err := s.view(ctx, func(txn *badger.Txn) error {
		if err := scan(txn, []byte(catalogPrefix), func(key, _ []byte) error {
			get(categoryOf(catalogPrefix, key)).Checkpoints++
			return nil
		}); err != nil {
			return err
		}
		if err := scan(txn, []byte(scorePrefix), func(key, _ []byte) error {
			get(categoryOf(scorePrefix, key)).Scored++
			return nil
		}); err != nil {
			return err
		}
		return scan(txn, []byte(metaPrefix), func(_, val []byte) error {
			var m model.SessionMeta
			if err := json.Unmarshal(val, &m); err != nil {
				return err
			}
			get(m.Category).Sessions++
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("scan categories: %w", err)
	}

	out := make([]CategoryStats, 0, len(byName))
	for _, cs := range byName {
		out = append(out, *cs)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sessions != out[j].Sessions {
			return out[i].Sessions > out[j].Sessions
		}
		return out[i].Category < out[j].Category
	})
	return out, nil
}

func (s *BadgerStore) Patterns(ctx context.Context, p PatternParams) ([]model.PatternRecord, error) {
	prefix := []byte(patternPrefix)
	if p.Category != "" {
		prefix = categoryPrefix(patternPrefix, p.Category)
	}

	out := []model.PatternRecord{}
	err := s.view(ctx, func(txn *badger.Txn) error {
		return scan(txn, prefix, func(_, val []byte) error {
			var rec model.PatternRecord
			if err := json.Unmarshal(val, &rec); err != nil {
				return err
			}
			out = append(out, rec)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("scan patterns: %w", err)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if p.Limit > 0 && len(out) > p.Limit {
		out = out[:p.Limit]
	}
	return out, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
