package browser

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

// StartFunc launches a detached process
type StartFunc func(name string, args ...string) error

// Launcher opens links in the desktop's default browser
type Launcher struct {
	start StartFunc
	goos  string
}

// New returns a Launcher for the running platform
func New() *Launcher {
	return &Launcher{start: startProcess, goos: runtime.GOOS}
}

// NewWithStart returns a Launcher using start for the given platform (for testing)
func NewWithStart(start StartFunc, goos string) *Launcher {
	return &Launcher{start: start, goos: goos}
}

func startProcess(name string, args ...string) error {
	return exec.Command(name, args...).Start()
}

// Open opens an http(s) link. Other schemes are refused so a crafted base
// URL cannot launch arbitrary handlers.
func (l *Launcher) Open(link string) error {
	u, err := url.Parse(link)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("refusing to open %q: unsupported scheme", link)
	}

	name, args, err := command(l.goos, u.String())
	if err != nil {
		return err
	}
	return l.start(name, args...)
}

func command(goos, link string) (string, []string, error) {
	switch goos {
	case "linux", "freebsd", "openbsd", "netbsd":
		return "xdg-open", []string{link}, nil
	case "darwin":
		return "open", []string{link}, nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", link}, nil
	default:
		return "", nil, fmt.Errorf("unsupported platform: %s", goos)
	}
}
