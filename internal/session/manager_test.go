package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/askdata/askdata/internal/dataset"
	"github.com/askdata/askdata/internal/store"
)

func TestManagerCreateGetDelete(t *testing.T) {
	opener := &fakeOpener{}
	m := NewManager(opener.Open, &stubCompleter{}, ManagerOptions{})

	s, err := m.Create(context.Background())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if s.ID() == "" {
		t.Fatal("expected session id")
	}
	got, err := m.Get(s.ID())
	if err != nil || got != s {
		t.Fatalf("Get() = %v, %v", got, err)
	}
	if m.Len() != 1 {
		t.Fatalf("Len() = %d", m.Len())
	}

	if err := m.Delete(s.ID()); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if !opener.stores[0].closed {
		t.Fatal("store was not closed")
	}
	if _, err := m.Get(s.ID()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
	if err := m.Delete(s.ID()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Delete() error = %v, want ErrNotFound", err)
	}
}

func TestManagerEvictsIdleSessions(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	opener := &fakeOpener{}
	m := NewManager(opener.Open, &stubCompleter{}, ManagerOptions{IdleTTL: time.Minute, Now: clock.Now})

	stale, err := m.Create(context.Background())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	clock.advance(30 * time.Second)
	fresh, err := m.Create(context.Background())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	clock.advance(45 * time.Second)

	if _, err := m.Get(stale.ID()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(stale) error = %v, want ErrNotFound", err)
	}
	if !opener.stores[0].closed {
		t.Fatal("expired store was not closed")
	}
	if _, err := m.Get(fresh.ID()); err != nil {
		t.Fatalf("Get(fresh) error = %v", err)
	}
}

func TestManagerSweep(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	m := NewManager((&fakeOpener{}).Open, &stubCompleter{}, ManagerOptions{IdleTTL: time.Minute, Now: clock.Now})
	for i := 0; i < 2; i++ {
		if _, err := m.Create(context.Background()); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	if evicted := m.Sweep(); evicted != 0 {
		t.Fatalf("Sweep() = %d before ttl", evicted)
	}
	clock.advance(2 * time.Minute)
	if evicted := m.Sweep(); evicted != 2 {
		t.Fatalf("Sweep() = %d, want 2", evicted)
	}
	if m.Len() != 0 {
		t.Fatalf("Len() = %d", m.Len())
	}
}

func TestManagerSessionLimit(t *testing.T) {
	m := NewManager((&fakeOpener{}).Open, &stubCompleter{}, ManagerOptions{MaxSessions: 1})
	if _, err := m.Create(context.Background()); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := m.Create(context.Background()); !errors.Is(err, ErrTooManySessions) {
		t.Fatalf("Create() error = %v, want ErrTooManySessions", err)
	}
}

func TestManagerOpenFailure(t *testing.T) {
	m := NewManager(func() (Store, error) { return nil, errors.New("boom") }, &stubCompleter{}, ManagerOptions{})
	if _, err := m.Create(context.Background()); err == nil {
		t.Fatal("expected open error")
	}
	if m.Len() != 0 {
		t.Fatalf("Len() = %d", m.Len())
	}
}

func TestManagerCloseClosesAllStores(t *testing.T) {
	opener := &fakeOpener{}
	m := NewManager(opener.Open, &stubCompleter{}, ManagerOptions{})
	for i := 0; i < 3; i++ {
		if _, err := m.Create(context.Background()); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	for i, st := range opener.stores {
		if !st.closed {
			t.Fatalf("store %d not closed", i)
		}
	}
	if m.Len() != 0 {
		t.Fatalf("Len() = %d", m.Len())
	}
}

func TestOpenerForEngineRejectsUnknown(t *testing.T) {
	if _, err := OpenerForEngine("postgres", nil); err == nil {
		t.Fatal("expected error for unknown engine")
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeOpener struct {
	stores []*fakeStore
}

func (o *fakeOpener) Open() (Store, error) {
	st := &fakeStore{}
	o.stores = append(o.stores, st)
	return st, nil
}

type fakeStore struct {
	closed bool
}

func (f *fakeStore) Ingest(context.Context, []byte, string) (*dataset.Dataset, error) {
	return &dataset.Dataset{}, nil
}

func (f *fakeStore) Schema(context.Context) (dataset.Schema, error) {
	return nil, store.ErrNoDataset
}

func (f *fakeStore) Execute(context.Context, string, int) (store.Rows, error) {
	return store.Rows{}, nil
}

func (f *fakeStore) Preview(context.Context, int) (store.Rows, error) {
	return store.Rows{}, nil
}

func (f *fakeStore) Dialect() string { return "Fake" }

func (f *fakeStore) Close() error {
	f.closed = true
	return nil
}
