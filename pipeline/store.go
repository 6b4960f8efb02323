package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

var ErrRunNotFound = errors.New("run not found")

type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateNotFound  State = "not_found"
)

func (s State) Finished() bool {
	return s == StateCompleted || s == StateFailed
}

// Run is the persisted record of one pipeline execution.
// Outputs holds the result of every finished stage so a resumed run skips it.
type Run struct {
	ID        string            `json:"id"`
	Input     WorkflowInput     `json:"input"`
	State     State             `json:"state"`
	Step      string            `json:"step,omitempty"`
	Outputs   map[string]string `json:"outputs,omitempty"`
	Result    string            `json:"result,omitempty"`
	Error     string            `json:"error,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

const runKeyPrefix = "run/"

type Store struct {
	db *badger.DB
}

// badgerLogger routes badger's chatter through logrus, demoting info to debug.
type badgerLogger struct {
	*logrus.Entry
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.Entry.Debugf(format, args...)
}

func OpenStore(dir string, log *logrus.Entry) (*Store, error) {
	return openStore(badger.DefaultOptions(dir), log)
}

// OpenMemoryStore keeps runs in memory only.
func OpenMemoryStore(log *logrus.Entry) (*Store, error) {
	return openStore(badger.DefaultOptions("").WithInMemory(true), log)
}

func openStore(opts badger.Options, log *logrus.Entry) (*Store, error) {
	db, err := badger.Open(opts.WithLogger(badgerLogger{log.WithField("component", "badger")}))
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Put(run *Run) error {
	run.UpdatedAt = time.Now()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = run.UpdatedAt
	}
	data, err := json.Marshal(run)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(runKeyPrefix+run.ID), data)
	})
}

func (s *Store) Get(id string) (*Run, error) {
	run := &Run{}
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(runKeyPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, run)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// List returns every run, newest first.
func (s *Store) List() ([]*Run, error) {
	runs := make([]*Run, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(runKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			run := &Run{}
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, run)
			})
			if err != nil {
				return err
			}
			runs = append(runs, run)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	return runs, nil
}
