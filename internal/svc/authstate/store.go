package authstate

import (
	"context"
	"sync"

	"github.com/mkrupp/portal-session/internal/domain"
	"github.com/mkrupp/portal-session/internal/infra/logging"
)

// Store holds the state and fans out snapshots to subscribers. It is safe
// for concurrent use.
type Store struct {
	mu     sync.Mutex
	state  State
	subs   map[uint64]chan State
	nextID uint64
	log    logging.Logger
}

// New creates an isolated container in its initial state together with the
// capability to mutate it.
func New() (*Store, *Dispatcher) {
	s := &Store{
		state: initialState(),
		subs:  make(map[uint64]chan State),
		log:   logging.GetLogger("svc.authstate"),
	}

	return s, &Dispatcher{store: s}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return clone(s.state)
}

// Session returns a copy of the current session.
func (s *Store) Session() domain.Session {
	return s.Snapshot().Auth
}

// IsAuthenticated reports whether the session holds a token.
func (s *Store) IsAuthenticated() bool {
	return s.Session().IsAuthenticated
}

// Subscribe returns a channel that receives the current state immediately
// and then every later state. A slow reader only sees the latest state;
// intermediate states are dropped. The channel is closed by cancel or when
// ctx is done.
func (s *Store) Subscribe(ctx context.Context) (<-chan State, func()) {
	ch := make(chan State, 1)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	ch <- clone(s.state)
	s.mu.Unlock()

	var (
		once sync.Once
		stop = make(chan struct{})
	)

	cancel := func() {
		once.Do(func() {
			close(stop)

			s.mu.Lock()
			defer s.mu.Unlock()

			delete(s.subs, id)
			close(ch)
		})
	}

	if done := ctx.Done(); done != nil {
		go func() {
			select {
			case <-done:
				cancel()
			case <-stop:
			}
		}()
	}

	return ch, cancel
}

func (s *Store) apply(ctx context.Context, action string, reducers ...reducer) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range reducers {
		r(&s.state)
	}

	s.state.Version++

	snapshot := clone(s.state)

	for _, ch := range s.subs {
		publish(ch, clone(snapshot))
	}

	s.log.DebugContext(ctx, "state transition",
		"action", action,
		"version", snapshot.Version,
		"authenticated", snapshot.Auth.IsAuthenticated,
		"loading", snapshot.Auth.IsLoading,
		"unlocked", snapshot.Auth.Unlocked,
	)

	return snapshot
}

// publish replaces a pending unread state with the newer one. Callers hold
// s.mu, so there is a single writer per channel.
func publish(ch chan State, state State) {
	select {
	case ch <- state:
		return
	default:
	}

	select {
	case <-ch:
	default:
	}

	ch <- state
}
