// Package browser owns the single automated browsing session shared by every request.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

// State is the lifecycle state of a Session.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "uninitialized"
	}
}

// Launcher starts a new browsing context.
type Launcher func(ctx context.Context) (Driver, error)

// Session lazily creates one browsing context and hands the same Handle to every caller.
type Session struct {
	launch   Launcher
	entryURL string

	group singleflight.Group

	mu      sync.RWMutex
	state   State
	handle  *Handle
	lastErr error
	// epoch advances on Close; an initialization that started in an
	// earlier epoch must not publish its handle.
	epoch uint64
}

// NewSession creates a session that opens entryURL on first use.
func NewSession(launch Launcher, entryURL string) *Session {
	return &Session{
		launch:   launch,
		entryURL: entryURL,
	}
}

// EnsureReady returns the session handle, initializing the session if needed.
// Concurrent callers share a single initialization attempt and its outcome.
func (s *Session) EnsureReady(ctx context.Context) (*Handle, error) {
	if h := s.current(); h != nil {
		return h, nil
	}

	v, err, shared := s.group.Do("init", func() (any, error) {
		if h := s.current(); h != nil {
			return h, nil
		}
		return s.initialize(ctx)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		slog.Debug("Joined in-flight browser initialization")
	}
	return v.(*Handle), nil
}

func (s *Session) current() *Handle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == StateReady {
		return s.handle
	}
	return nil
}

func (s *Session) initialize(ctx context.Context) (*Handle, error) {
	slog.Info("Initializing browser session", "url", s.entryURL)

	s.mu.RLock()
	epoch := s.epoch
	s.mu.RUnlock()

	driver, err := s.launch(ctx)
	if err != nil {
		return nil, s.fail(fmt.Errorf("launching browser: %w", err))
	}

	if err := driver.Navigate(ctx, s.entryURL); err != nil {
		if closeErr := driver.Close(); closeErr != nil {
			slog.Warn("Failed to close browser after navigation error", "error", closeErr)
		}
		return nil, s.fail(fmt.Errorf("opening %s: %w", s.entryURL, err))
	}

	h := NewHandle(driver)

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		slog.Info("Browser session closed during initialization")
		if err := h.close(); err != nil {
			slog.Warn("Failed to close browser opened during shutdown", "error", err)
		}
		return nil, fmt.Errorf("%w: %w", ErrSessionUnavailable, ErrSessionClosed)
	}
	s.state = StateReady
	s.handle = h
	s.lastErr = nil
	s.mu.Unlock()

	slog.Info("Browser session initialized", "url", s.entryURL)
	return h, nil
}

func (s *Session) fail(err error) error {
	s.mu.Lock()
	s.state = StateFailed
	s.handle = nil
	s.lastErr = err
	s.mu.Unlock()

	slog.Error("Browser session initialization failed", "error", err)
	return fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// LastError returns the error of the last failed initialization, if any.
func (s *Session) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Reset discards h if it is still the current handle, so the next caller
// starts a fresh browsing context.
func (s *Session) Reset(h *Handle) {
	s.mu.Lock()
	if h == nil || s.handle != h {
		s.mu.Unlock()
		return
	}
	s.handle = nil
	s.state = StateUninitialized
	s.mu.Unlock()

	slog.Warn("Discarding browser session")
	go func() {
		if err := h.close(); err != nil {
			slog.Warn("Failed to close discarded browser session", "error", err)
		}
	}()
}

// Close shuts the browsing context down, including one still being
// initialized. A later EnsureReady starts a new one.
func (s *Session) Close() error {
	s.mu.Lock()
	s.epoch++
	h := s.handle
	s.handle = nil
	s.state = StateUninitialized
	s.mu.Unlock()

	if h == nil {
		return nil
	}
	slog.Info("Closing browser session")
	return h.close()
}
