package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"regiokaart/internal/apperr"
	"regiokaart/internal/dataset"
	"regiokaart/internal/geobind"
	"regiokaart/internal/table"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) add(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestSessionsAreIsolated(t *testing.T) {
	m := NewManager(time.Hour)
	a, b := m.Create(), m.Create()
	if a.ID == b.ID {
		t.Fatal("duplicate session id")
	}
	err := m.Do(context.Background(), a.ID, func(s *Session) error {
		d, _ := dataset.New("x", table.New("a"), geobind.ModeUnknown)
		return s.Datasets.Put(d)
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	_ = m.Do(context.Background(), b.ID, func(s *Session) error {
		if s.Datasets.Len() != 0 {
			t.Errorf("session b sees %d datasets", s.Datasets.Len())
		}
		return nil
	})
}

func TestDoSerializes(t *testing.T) {
	m := NewManager(time.Hour)
	s := m.Create()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Do(context.Background(), s.ID, func(*Session) error {
				mu.Lock()
				inside++
				maxSeen = max(maxSeen, inside)
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Errorf("%d calls ran at once", maxSeen)
	}
}

func TestDoErrors(t *testing.T) {
	m := NewManager(time.Hour)
	if err := m.Do(context.Background(), "nope", func(*Session) error { return nil }); apperr.KindOf(err) != apperr.NotFound {
		t.Errorf("unknown session: %v", err)
	}
	s := m.Create()
	want := errors.New("boom")
	if err := m.Do(context.Background(), s.ID, func(*Session) error { return want }); !errors.Is(err, want) {
		t.Errorf("fn error not returned: %v", err)
	}

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = m.Do(context.Background(), s.ID, func(*Session) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := m.Do(ctx, s.ID, func(*Session) error { return nil }); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("waiting on busy session: %v", err)
	}
	close(release)
}

func TestReap(t *testing.T) {
	c := &clock{t: time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)}
	m := NewManager(time.Hour, WithClock(c.now))
	old := m.Create()
	c.add(45 * time.Minute)
	fresh := m.Create()
	c.add(30 * time.Minute)

	if n := m.Reap(); n != 1 {
		t.Fatalf("Reap = %d, want 1", n)
	}
	if err := m.Do(context.Background(), old.ID, func(*Session) error { return nil }); apperr.KindOf(err) != apperr.NotFound {
		t.Errorf("old session still there: %v", err)
	}
	if err := m.Do(context.Background(), fresh.ID, func(*Session) error { return nil }); err != nil {
		t.Errorf("fresh session: %v", err)
	}
	if m.Len() != 1 {
		t.Errorf("Len = %d", m.Len())
	}
}

func TestDelete(t *testing.T) {
	m := NewManager(0)
	s := m.Create()
	if err := m.Delete(s.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := m.Delete(s.ID); apperr.KindOf(err) != apperr.NotFound {
		t.Errorf("second Delete: %v", err)
	}
	if m.Reap() != 0 {
		t.Error("Reap with no ttl removed sessions")
	}
}

func TestRemovedSessionRejectsLateCallers(t *testing.T) {
	c := &clock{t: time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)}
	m := NewManager(time.Hour, WithClock(c.now))
	reaped, deleted := m.Create(), m.Create()
	c.add(2 * time.Hour)
	keep := m.Create()

	if n := m.Reap(); n != 2 {
		t.Fatalf("Reap = %d, want 2", n)
	}
	// a caller that looked the session up before the reap must get the turn back, not hang
	if !reaped.turn.TryAcquire(1) {
		t.Fatal("Reap kept the turn of a removed session")
	}
	reaped.turn.Release(1)
	for _, s := range []*Session{reaped, deleted} {
		if m.touch(s) {
			t.Errorf("touch accepted removed session %s", s.ID)
		}
	}
	if !m.touch(keep) {
		t.Error("touch rejected a live session")
	}
}

func TestDoAfterDeleteWhileWaiting(t *testing.T) {
	m := NewManager(time.Hour)
	s := m.Create()
	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = m.Do(context.Background(), s.ID, func(*Session) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	done := make(chan error, 1)
	called := false
	go func() {
		done <- m.Do(context.Background(), s.ID, func(*Session) error {
			called = true
			return nil
		})
	}()
	time.Sleep(10 * time.Millisecond)
	if err := m.Delete(s.ID); err != nil {
		t.Fatal(err)
	}
	close(release)

	select {
	case err := <-done:
		if apperr.KindOf(err) != apperr.NotFound || called {
			t.Errorf("late caller: err = %v, called = %v", err, called)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("late caller still waiting")
	}
}
