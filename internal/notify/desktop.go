// Package notify provides the platform pieces reminders depend on: a way to
// show a notification and a persisted permission gate.
package notify

import (
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"sync"
)

var ErrUnsupportedPlatform = errors.New("notify: desktop notifications unsupported on this platform")

// Displayer shows a reminder. Implementations may fail; callers treat a
// failure as non-fatal.
type Displayer interface {
	Display(title, body, dedupeKey string) error
}

type DisplayFunc func(title, body, dedupeKey string) error

func (f DisplayFunc) Display(title, body, dedupeKey string) error { return f(title, body, dedupeKey) }

type runner func(name string, args ...string) error

func execRun(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

// Desktop sends notifications through notify-send on linux and osascript on
// darwin. A dedupe key replaces an earlier notification with the same key
// where the backend supports it.
type Desktop struct {
	goos string
	run  runner
}

func NewDesktop() Desktop {
	return Desktop{goos: runtime.GOOS, run: execRun}
}

func (d Desktop) Display(title, body, dedupeKey string) error {
	switch d.goos {
	case "linux":
		args := []string{"--app-name=mellow"}
		if dedupeKey != "" {
			args = append(args, "--hint=string:x-canonical-private-synchronous:"+dedupeKey)
		}
		args = append(args, title, body)
		return d.run("notify-send", args...)
	case "darwin":
		script := fmt.Sprintf(`display notification "%s" with title "%s"`, escapeAppleScript(body), escapeAppleScript(title))
		return d.run("osascript", "-e", script)
	default:
		return ErrUnsupportedPlatform
	}
}

// Available reports whether the notification backend binary can be found.
func (d Desktop) Available() bool {
	var bin string
	switch d.goos {
	case "linux":
		bin = "notify-send"
	case "darwin":
		bin = "osascript"
	default:
		return false
	}
	_, err := exec.LookPath(bin)
	return err == nil
}

func escapeAppleScript(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `"`, `\"`)
}

// Multi fans a reminder out to several displayers. Every displayer is
// tried; the joined error reports the ones that failed.
type Multi []Displayer

func (m Multi) Display(title, body, dedupeKey string) error {
	var errs []error
	for _, d := range m {
		if d == nil {
			continue
		}
		if err := d.Display(title, body, dedupeKey); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps displayed reminders in memory. It backs the in-app
// notification log and the tests.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
	Err   error
}

type Notification struct {
	Title     string
	Body      string
	DedupeKey string
}

func (r *Recorder) Display(title, body, dedupeKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.items = append(r.items, Notification{Title: title, Body: body, DedupeKey: dedupeKey})
	return nil
}

func (r *Recorder) Items() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.items))
	copy(out, r.items)
	return out
}
