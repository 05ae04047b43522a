package main

import (
	"bytes"
	"io"
	"sync/atomic"
)

// ANSI escape codes
const (
	reset  = "\033[0m"
	yellow = "\033[33m"
	red    = "\033[31m"
	green  = "\033[32m"
	cyan   = "\033[36m"
	bold   = "\033[1m"
)

// crlfWriter turns \n into \r\n while the terminal is in raw mode, which
// disables the tty's own output translation
type crlfWriter struct {
	w   io.Writer
	raw atomic.Bool
}

func (c *crlfWriter) Write(p []byte) (int, error) {
	if !c.raw.Load() {
		return c.w.Write(p)
	}
	if _, err := c.w.Write(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *crlfWriter) setRaw(raw bool) {
	c.raw.Store(raw)
}

func printBanner(w io.Writer, version string) {
	logo := []string{
		` ___  _                _                ___      _             `,
		`| _ \| | __ _  _ _   _ | |_  _ _   __ _ | _ \ ___ | |__ ___  _ _ `,
		`|  _/| |/ _' || ' \ | ||  _|| ' \ / _' ||  _// _ \| / // -_)| '_|`,
		`|_|  |_|\__,_||_||_||_| \__||_||_|\__, ||_|  \___/|_\_\\___||_|  `,
		`                                  |___/                          `,
	}
	width := 0
	for _, line := range logo {
		if len(line) > width {
			width = len(line)
		}
	}
	width += 2

	border := bytes.Repeat([]byte("═"), width)
	io.WriteString(w, "\n  "+cyan+"╔"+string(border)+"╗"+reset+"\n")
	for _, line := range logo {
		pad := string(bytes.Repeat([]byte(" "), width-len(line)-1))
		io.WriteString(w, "  "+cyan+"║ "+yellow+line+pad+cyan+"║"+reset+"\n")
	}
	cards := " 0  1  2  3  5  8  13  21  " + version
	pad := string(bytes.Repeat([]byte(" "), max(width-len(cards)-1, 0)))
	io.WriteString(w, "  "+cyan+"║ "+green+cards+pad+cyan+"║"+reset+"\n")
	io.WriteString(w, "  "+cyan+"╚"+string(border)+"╝"+reset+"\n\n")
}
