package notify

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Permission is the notification gate. Granted is cheap and re-read on every
// reconcile; Request is the one-shot prompt.
type Permission interface {
	Granted() bool
	Request(ctx context.Context) (bool, error)
}

// StaticPermission is a fixed gate for headless use and tests.
type StaticPermission struct {
	mu      sync.Mutex
	granted bool
}

func NewStaticPermission(granted bool) *StaticPermission {
	return &StaticPermission{granted: granted}
}

func (p *StaticPermission) Granted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.granted
}

func (p *StaticPermission) Set(granted bool) {
	p.mu.Lock()
	p.granted = granted
	p.mu.Unlock()
}

func (p *StaticPermission) Request(context.Context) (bool, error) {
	return p.Granted(), nil
}

type permissionState struct {
	NotificationsGranted bool      `json:"notifications_granted"`
	GrantedAt            time.Time `json:"granted_at,omitempty"`
}

// FilePermission persists the grant in a small JSON state file so it
// survives restarts. Requests are refused when desktop notifications are
// disabled in config or no backend is available.
type FilePermission struct {
	mu        sync.Mutex
	path      string
	enabled   bool
	available func() bool
	now       func() time.Time
	state     permissionState
}

func NewFilePermission(path string, enabled bool, available func() bool) (*FilePermission, error) {
	p := &FilePermission{
		path:      strings.TrimSpace(path),
		enabled:   enabled,
		available: available,
		now:       time.Now,
	}
	if p.available == nil {
		p.available = func() bool { return true }
	}
	state, err := loadPermissionState(p.path)
	if err != nil {
		return nil, err
	}
	p.state = state
	return p, nil
}

func (p *FilePermission) Granted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled && p.state.NotificationsGranted
}

func (p *FilePermission) Request(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.enabled && p.state.NotificationsGranted {
		return true, nil
	}
	if !p.enabled || !p.available() {
		return false, nil
	}
	p.state = permissionState{NotificationsGranted: true, GrantedAt: p.now().UTC()}
	if err := p.persist(); err != nil {
		p.state = permissionState{}
		return false, err
	}
	return true, nil
}

// Revoke clears a stored grant.
func (p *FilePermission) Revoke() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = permissionState{}
	return p.persist()
}

func (p *FilePermission) persist() error {
	if p.path == "" {
		return nil
	}
	dir := filepath.Dir(p.path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	payload, err := json.MarshalIndent(p.state, "", "  ")
	if err != nil {
		return err
	}
	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, append(payload, '\n'), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, p.path)
}

func loadPermissionState(path string) (permissionState, error) {
	var state permissionState
	if path == "" {
		return state, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return state, nil
		}
		return state, err
	}
	if strings.TrimSpace(string(raw)) == "" {
		return state, nil
	}
	if err := json.Unmarshal(raw, &state); err != nil {
		return permissionState{}, err
	}
	return state, nil
}
