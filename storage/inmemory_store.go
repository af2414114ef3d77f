package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"
)

// UpdateBufferSize is how many updates a listener can fall behind before
// further updates to it are dropped.
const UpdateBufferSize = 255

var (
	ErrClosed      = errors.New("store is closed")
	ErrInvalidJSON = errors.New("not a valid JSON document")
)

type InmemoryStore struct {
	mu          sync.RWMutex
	values      []byte
	updateChans []chan *Update

	// stop will be closed when Close() is called
	stop     chan struct{}
	stopOnce sync.Once

	log *zap.Logger
}

func NewInmemoryStore(log *zap.Logger) *InmemoryStore {
	if log == nil {
		log = zap.NewNop()
	}

	return &InmemoryStore{
		values:      []byte("{}"),
		stop:        make(chan struct{}),
		updateChans: make([]chan *Update, 0),
		log:         log,
	}
}

// Close closes every update channel. Writes after Close fail with
// ErrClosed, reads keep working.
func (i *InmemoryStore) Close() error {
	i.stopOnce.Do(func() {
		close(i.stop)

		i.mu.Lock()
		defer i.mu.Unlock()

		for _, updateChan := range i.updateChans {
			close(updateChan)
		}

		i.updateChans = nil
	})

	return nil
}

func (i *InmemoryStore) Set(ctx context.Context, path string, value interface{}) error {
	return i.SetMany(ctx, map[string]interface{}{path: value})
}

// SetMany writes every value under a single lock, so readers never see a
// half applied change. Listeners get one update per path, in path order.
func (i *InmemoryStore) SetMany(ctx context.Context, values map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	paths := make([]string, 0, len(values))
	for path := range values {
		paths = append(paths, path)
	}

	sort.Strings(paths)

	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.isRunning() {
		return ErrClosed
	}

	doc := i.values
	for _, path := range paths {
		var err error
		if doc, err = sjson.SetBytes(doc, path, values[path]); err != nil {
			return err
		}
	}

	i.values = doc

	for _, path := range paths {
		i.notifyLocked(path)
	}

	return nil
}

// Get returns the raw JSON at path, nil if nothing is there.
func (i *InmemoryStore) Get(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	result := gjson.GetBytes(i.values, path)
	if !result.Exists() {
		return nil, nil
	}

	return []byte(result.Raw), nil
}

// Delete removes path. Listeners get an update with a nil value.
func (i *InmemoryStore) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.isRunning() {
		return ErrClosed
	}

	doc, err := sjson.DeleteBytes(i.values, path)
	if err != nil {
		return err
	}

	i.values = doc
	i.notifyLocked(path)

	return nil
}

func (i *InmemoryStore) ListenToUpdates() <-chan *Update {
	i.mu.Lock()
	defer i.mu.Unlock()

	updateChan := make(chan *Update, UpdateBufferSize)

	if !i.isRunning() {
		close(updateChan)
		return updateChan
	}

	i.updateChans = append(i.updateChans, updateChan)

	return updateChan
}

// Restore replaces the whole document.
func (i *InmemoryStore) Restore(values []byte) error {
	if len(values) == 0 {
		values = []byte("{}")
	}

	if !gjson.ValidBytes(values) {
		return ErrInvalidJSON
	}

	doc := make([]byte, len(values))
	copy(doc, values)

	i.mu.Lock()
	i.values = doc
	i.mu.Unlock()

	return nil
}

// Backup returns a copy of the whole document.
func (i *InmemoryStore) Backup() ([]byte, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	doc := make([]byte, len(i.values))
	copy(doc, i.values)

	return doc, nil
}

func (i *InmemoryStore) notifyLocked(path string) {
	var value []byte
	if result := gjson.GetBytes(i.values, path); result.Exists() {
		value = []byte(result.Raw)
	}

	for _, updateChan := range i.updateChans {
		select {
		case updateChan <- &Update{Path: path, Value: value}:
		default:
			i.log.Warn("Update listener is full, dropping update", zap.String("path", path))
		}
	}
}

// isRunning returns true if Close has not been called
func (i *InmemoryStore) isRunning() bool {
	select {
	case <-i.stop:
		return false

	default:
		return true
	}
}

var _ Store = (*InmemoryStore)(nil)
