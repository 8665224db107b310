package internal

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/juju/errors"
)

type logRecord struct {
	level string
	msg   string
}

// captureLogger records log lines so tests can assert on severity.
type captureLogger struct {
	mu      sync.Mutex
	records []logRecord
}

func (c *captureLogger) add(level, format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, logRecord{level: level, msg: fmt.Sprintf(format, args...)})
}

func (c *captureLogger) Errorf(format string, args ...any)   { c.add("ERROR", format, args...) }
func (c *captureLogger) Warningf(format string, args ...any) { c.add("WARNING", format, args...) }
func (c *captureLogger) Infof(format string, args ...any)    { c.add("INFO", format, args...) }
func (c *captureLogger) Debugf(format string, args ...any)   { c.add("DEBUG", format, args...) }

func (c *captureLogger) has(level, substr string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.records {
		if r.level == level && strings.Contains(r.msg, substr) {
			return true
		}
	}
	return false
}

func (c *captureLogger) count(level string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, r := range c.records {
		if r.level == level {
			n++
		}
	}
	return n
}

// fakeBackend is an in-memory Backend that counts calls.
type fakeBackend struct {
	mu     sync.Mutex
	name   string
	data   map[string]string
	puts   int
	gets   int
	putErr error
	getErr error
	// block makes calls wait for ctx to end.
	block bool
}

func newFakeBackend(name string) *fakeBackend {
	return &fakeBackend{name: name, data: map[string]string{}}
}

func (b *fakeBackend) Name() string { return b.name }

func (b *fakeBackend) Put(ctx context.Context, key, scbBase64 string) error {
	if b.block {
		<-ctx.Done()
		return ctx.Err()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.puts++
	if b.putErr != nil {
		return b.putErr
	}
	b.data[key] = scbBase64
	return nil
}

func (b *fakeBackend) Get(ctx context.Context, key string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gets++
	if b.getErr != nil {
		return "", b.getErr
	}
	v, ok := b.data[key]
	if !ok {
		return "", errors.NotFoundf("item %q", key)
	}
	return v, nil
}

func (b *fakeBackend) counts() (puts, gets int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.puts, b.gets
}

func (b *fakeBackend) snapshot() map[string]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]string, len(b.data))
	for k, v := range b.data {
		out[k] = v
	}
	return out
}

// memStore is an in-memory KeyValueStore.
type memStore struct {
	mu    sync.Mutex
	items map[string]string
	err   error
}

func newMemStore() *memStore { return &memStore{items: map[string]string{}} }

func (m *memStore) SetItem(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.items[key] = value
	return nil
}

func (m *memStore) GetItem(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	v, ok := m.items[key]
	if !ok {
		return "", errors.NotFoundf("item %q", key)
	}
	return v, nil
}

// fakeSource serves scbs in turn, repeating the last one.
type fakeSource struct {
	scbs  []string
	err   error
	calls atomic.Int32
}

func (s *fakeSource) ReadSCB(ctx context.Context) (string, error) {
	n := int(s.calls.Add(1))
	if s.err != nil {
		return "", s.err
	}
	if n > len(s.scbs) {
		n = len(s.scbs)
	}
	return s.scbs[n-1], nil
}

type fakeGate struct {
	granted bool
	calls   atomic.Int32
}

func (g *fakeGate) RequestExternalStoragePermission(ctx context.Context) bool {
	g.calls.Add(1)
	return g.granted
}

// chanTransport hands out a test-controlled stream.
type chanTransport struct {
	ch    chan Event
	names []string
}

func (t *chanTransport) Subscribe(ctx context.Context, eventName string) (<-chan Event, error) {
	t.names = append(t.names, eventName)
	return t.ch, nil
}
