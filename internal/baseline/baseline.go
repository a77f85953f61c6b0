// Package baseline keeps the most recently accepted result per workload in a
// badger store so later runs can be checked for regressions.
package baseline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/mwiater/microbench/internal/benchmark"
	"github.com/mwiater/microbench/internal/logging"
	"github.com/mwiater/microbench/internal/stats"
)

const keyPrefix = "baseline/"

// ErrNotFound is returned when no baseline exists for a workload.
var ErrNotFound = errors.New("baseline not found")

// Entry is a stored result and the time it was accepted.
type Entry struct {
	Result  *benchmark.Result `json:"result"`
	SavedAt time.Time         `json:"savedAt"`
}

// Store wraps a badger database.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) a persistent store at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("baseline path is required")
	}
	if err := os.MkdirAll(path, 0o750); err != nil {
		return nil, fmt.Errorf("create baseline directory %s: %w", path, err)
	}
	return open(badger.DefaultOptions(path).WithSyncWrites(true))
}

// OpenInMemory returns a store that lives only as long as the process.
func OpenInMemory() (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true))
}

func open(opts badger.Options) (*Store, error) {
	db, err := badger.Open(opts.WithNumVersionsToKeep(1).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func key(workload string) []byte {
	return []byte(keyPrefix + workload)
}

// Save stores res as the baseline for its workload.
func (s *Store) Save(ctx context.Context, res *benchmark.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if res == nil || res.Workload == "" {
		return errors.New("baseline requires a result with a workload name")
	}
	data, err := json.Marshal(Entry{Result: res, SavedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encode baseline: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(res.Workload), data)
	})
	if err != nil {
		return fmt.Errorf("save baseline %s: %w", res.Workload, err)
	}
	logging.LogEvent("[BASELINE] saved %s (%s)", res.Workload, res.ID)
	return nil
}

func (s *Store) Get(ctx context.Context, workload string) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var entry Entry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(workload))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, workload)
	}
	if err != nil {
		return nil, fmt.Errorf("load baseline %s: %w", workload, err)
	}
	return &entry, nil
}

// List returns every stored baseline in key order.
func (s *Store) List(ctx context.Context) ([]*Entry, error) {
	var entries []*Entry
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var entry Entry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			}); err != nil {
				return err
			}
			entries = append(entries, &entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list baselines: %w", err)
	}
	return entries, nil
}

func (s *Store) Delete(ctx context.Context, workload string) error {
	if _, err := s.Get(ctx, workload); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(workload))
	})
	if err != nil {
		return fmt.Errorf("delete baseline %s: %w", workload, err)
	}
	return nil
}

// CompareToBaseline compares res against the stored baseline for its workload.
func (s *Store) CompareToBaseline(ctx context.Context, res *benchmark.Result, alpha float64) (stats.Comparison, error) {
	if res == nil {
		return stats.Comparison{}, stats.ErrNoSamples
	}
	entry, err := s.Get(ctx, res.Workload)
	if err != nil {
		return stats.Comparison{}, err
	}
	cmp, err := benchmark.Compare(entry.Result, res, alpha)
	if err != nil {
		return stats.Comparison{}, fmt.Errorf("compare %s to baseline: %w", res.Workload, err)
	}
	if cmp.Verdict == stats.VerdictSlower {
		logging.LogWarning("[BASELINE] %s regressed: median %.6g ms -> %.6g ms (p=%.4f)",
			res.Workload, cmp.Base.Median, cmp.Candidate.Median, cmp.PValue)
	}
	return cmp, nil
}
