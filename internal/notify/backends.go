// Package notify implements the notification dispatcher: an ordered
// backend chain (Clippy, Freedesktop, LogOnly) that delivers a
// rendered message and reports the id the backend assigned it.
package notify

import (
	"fmt"
	"sync"

	"github.com/aaronsb/screentimed/internal/domain"
	"github.com/aaronsb/screentimed/pkg/logger"
)

// Rendered is a fully rendered notification ready to hand to a backend.
type Rendered struct {
	User    string
	Title   string
	Body    string
	Icon    string
	Urgency domain.Urgency
}

// Backend is one notification delivery channel in the dispatch chain.
type Backend interface {
	Name() string
	IsAvailable(user string) bool
	Send(r Rendered) (notificationID string, err error)
}

// ClippyBackend is the personality-driven first-choice backend: a
// lightweight local agent (e.g. a desktop mascot/toast process) this
// daemon shells out to or pings over a local socket. Its transport is
// intentionally abstracted behind sendFunc so the concrete IPC detail
// can be swapped without touching the dispatch chain.
type ClippyBackend struct {
	sendFunc func(Rendered) (string, error)
	probe    func(user string) bool
}

// NewClippyBackend constructs a ClippyBackend. A nil probe defaults to
// "never available", which degrades gracefully to Freedesktop/LogOnly.
func NewClippyBackend(sendFunc func(Rendered) (string, error), probe func(user string) bool) *ClippyBackend {
	if probe == nil {
		probe = func(string) bool { return false }
	}
	return &ClippyBackend{sendFunc: sendFunc, probe: probe}
}

func (c *ClippyBackend) Name() string                  { return "clippy" }
func (c *ClippyBackend) IsAvailable(user string) bool   { return c.probe(user) }
func (c *ClippyBackend) Send(r Rendered) (string, error) {
	if c.sendFunc == nil {
		return "", fmt.Errorf("clippy backend has no transport configured")
	}
	return c.sendFunc(r)
}

// FreedesktopBackend delivers via the target user's session notification
// bus. Per-user connection handles are cached and invalidated on
// logout/login detection or send failure (spec §4.8). No freedesktop
// D-Bus client library exists anywhere in the reference set, so
// busDial is left pluggable; the default here always reports
// unavailable, which is itself the documented contract-only stance for
// notification rendering (spec §1 non-goals).
type FreedesktopBackend struct {
	busDial func(user string) (busHandle, error)

	mu     sync.Mutex
	handles map[string]busHandle
}

// busHandle is the minimal operation a session bus connection must
// support for this backend.
type busHandle interface {
	Notify(r Rendered) (string, error)
	Close() error
}

// NewFreedesktopBackend constructs a FreedesktopBackend. busDial may be
// nil, in which case the backend always reports unavailable.
func NewFreedesktopBackend(busDial func(user string) (busHandle, error)) *FreedesktopBackend {
	return &FreedesktopBackend{busDial: busDial, handles: make(map[string]busHandle)}
}

func (f *FreedesktopBackend) Name() string { return "freedesktop" }

func (f *FreedesktopBackend) IsAvailable(user string) bool {
	return f.busDial != nil
}

func (f *FreedesktopBackend) Send(r Rendered) (string, error) {
	f.mu.Lock()
	h, ok := f.handles[r.User]
	f.mu.Unlock()

	if !ok {
		conn, err := f.busDial(r.User)
		if err != nil {
			return "", fmt.Errorf("dial session bus for %s: %w", r.User, err)
		}
		h = conn
		f.mu.Lock()
		f.handles[r.User] = h
		f.mu.Unlock()
	}

	id, err := h.Notify(r)
	if err != nil {
		f.invalidate(r.User)
		return "", fmt.Errorf("notify %s: %w", r.User, err)
	}
	return id, nil
}

// invalidate drops and closes a cached bus handle, forcing the next
// Send to redial (spec §4.8: "cache is invalidated and reconnected on
// logout/login detection or on send failure").
func (f *FreedesktopBackend) invalidate(user string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if h, ok := f.handles[user]; ok {
		h.Close()
		delete(f.handles, user)
	}
}

// LogOnlyBackend always succeeds, writing the notification to the
// structured log instead of delivering it anywhere. It is the terminal
// fallback in the chain (spec §4.8).
type LogOnlyBackend struct {
	log     logger.Logger
	counter int
	mu      sync.Mutex
}

func NewLogOnlyBackend(log logger.Logger) *LogOnlyBackend {
	return &LogOnlyBackend{log: log}
}

func (l *LogOnlyBackend) Name() string                { return "log_only" }
func (l *LogOnlyBackend) IsAvailable(string) bool      { return true }

func (l *LogOnlyBackend) Send(r Rendered) (string, error) {
	l.mu.Lock()
	l.counter++
	id := fmt.Sprintf("log-%d", l.counter)
	l.mu.Unlock()

	l.log.Info("notification (log_only)", "user", r.User, "title", r.Title, "body", r.Body, "urgency", r.Urgency)
	return id, nil
}
