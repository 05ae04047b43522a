package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/abrezinsky/planningpoker/internal/app"
	"github.com/abrezinsky/planningpoker/internal/browser"
	"github.com/abrezinsky/planningpoker/internal/logger"
)

var errNotTerminal = errors.New("stdin is not a terminal")

// keyboard maps single key presses to operator actions
type keyboard struct {
	app      *app.App
	log      *logger.SlogLogger
	launcher *browser.Launcher
	out      io.Writer
	quit     func()
}

// start puts stdin into raw mode and handles key presses in the background.
// The returned function restores the terminal.
func (k *keyboard) start(out *crlfWriter) (func(), error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, errNotTerminal
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("raw mode: %w", err)
	}
	out.setRaw(true)

	go func() {
		buf := make([]byte, 1)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				return
			}
			if n == 1 {
				k.handle(buf[0])
			}
		}
	}()

	return func() {
		out.setRaw(false)
		term.Restore(fd, oldState)
	}, nil
}

// handle performs the action bound to key and reports whether it was known
func (k *keyboard) handle(key byte) bool {
	switch strings.ToLower(string(key)) {
	case "o":
		fmt.Fprintf(k.out, "%sOpening %s in browser...%s\n", cyan, k.app.PublicURL(), reset)
		if err := k.launcher.Open(k.app.PublicURL()); err != nil {
			fmt.Fprintf(k.out, "%sError opening browser: %v%s\n", red, err, reset)
		}
	case "h":
		if k.log.IsHTTPLoggingEnabled() {
			k.log.DisableHTTPLogging()
			fmt.Fprintf(k.out, "%sHTTP logging disabled%s\n", yellow, reset)
		} else {
			k.log.EnableHTTPLogging()
			fmt.Fprintf(k.out, "%sHTTP logging enabled%s\n", green, reset)
		}
	case "l":
		next := logger.NextLevel(k.log.GetLevel())
		k.log.SetLevel(next)
		fmt.Fprintf(k.out, "%sLog level: %s%s%s\n", green, yellow, strings.ToLower(next.String()), reset)
	case "s":
		s := k.app.Stats(context.Background())
		fmt.Fprintf(k.out, "%sSessions:%s %d (%d active, %d users)  %sLive:%s %d sessions, %d connections\n",
			bold, reset, s.Sessions, s.ActiveSessions, s.Users, bold, reset, s.LiveSessions, s.Connections)
	case "q", "\x03":
		fmt.Fprintf(k.out, "%sShutting down server...%s\n", yellow, reset)
		k.quit()
	case "?":
		k.printHelp()
	default:
		return false
	}
	return true
}

// printHelp displays all available keyboard shortcuts
func (k *keyboard) printHelp() {
	fmt.Fprintf(k.out, "\n%s%s  Keyboard Shortcuts:%s\n", bold, green, reset)
	fmt.Fprintf(k.out, "    %so%s      - Open the server in a browser\n", cyan, reset)
	fmt.Fprintf(k.out, "    %sh%s      - Toggle HTTP request logging\n", cyan, reset)
	fmt.Fprintf(k.out, "    %sl%s      - Cycle log level (debug → info → warn → error)\n", cyan, reset)
	fmt.Fprintf(k.out, "    %ss%s      - Show session stats\n", cyan, reset)
	fmt.Fprintf(k.out, "    %sq%s      - Quit server\n", cyan, reset)
	fmt.Fprintf(k.out, "    %s?%s      - Show this help\n\n", cyan, reset)
}
