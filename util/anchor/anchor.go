// Package anchor prints user-facing progress: plain lines scroll,
// lots are single status lines that get rewritten in place.
package anchor

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"atomicgo.dev/cursor"
	"github.com/fatih/color"
)

const Red = color.FgRed

type Window struct {
	lock        sync.Mutex
	out         io.Writer
	accent      *color.Color
	dim         *color.Color
	interactive bool
	active      string // lot currently owning the status line
}

type Lot struct {
	window *Window
	name   string
}

func New(accent color.Attribute) *Window {
	window := NewWriter(os.Stdout, accent)
	window.interactive = !color.NoColor
	return window
}

func NewWriter(out io.Writer, accent color.Attribute) *Window {
	return &Window{
		out:    out,
		accent: color.New(accent, color.Bold),
		dim:    color.New(color.Faint),
	}
}

func (window *Window) Printf(format string, args ...interface{}) {
	window.lock.Lock()
	defer window.lock.Unlock()
	window.release()
	fmt.Fprintf(window.out, format+"\n", args...)
}

// AnchorPrintf prints an highlighted line, used for failures
// the user should not miss among the regular output
func (window *Window) AnchorPrintf(format string, args ...interface{}) {
	window.lock.Lock()
	defer window.lock.Unlock()
	window.release()
	fmt.Fprintln(window.out, window.accent.Sprintf(format, args...))
}

func (window *Window) Lot(name string) *Lot {
	return &Lot{window, name}
}

// release terminates the status line, if any, so that
// the next output does not overwrite it
func (window *Window) release() {
	if window.active == "" {
		return
	}
	if window.interactive {
		cursor.ClearLine()
		cursor.StartOfLine()
	} else {
		fmt.Fprintln(window.out)
	}
	window.active = ""
}

func (lot *Lot) Print(message string) {
	lot.Printf("%s", message)
}

func (lot *Lot) Printf(format string, args ...interface{}) {
	window := lot.window
	window.lock.Lock()
	defer window.lock.Unlock()
	if window.interactive {
		cursor.ClearLine()
		cursor.StartOfLine()
	} else if window.active != "" {
		fmt.Fprintln(window.out)
	}
	fmt.Fprintf(window.out, "%s %s", window.accent.Sprint(lot.name), window.dim.Sprintf(format, args...))
	window.active = lot.name
}

// Wipe clears the lot status line
func (lot *Lot) Wipe() {
	window := lot.window
	window.lock.Lock()
	defer window.lock.Unlock()
	if window.active != lot.name {
		return
	}
	window.release()
}

// Close prints the final lot status, which stays on screen
func (lot *Lot) Close(messages ...string) {
	window := lot.window
	window.lock.Lock()
	defer window.lock.Unlock()
	if window.active == lot.name && window.interactive {
		cursor.ClearLine()
		cursor.StartOfLine()
	} else {
		window.release()
	}
	message := "done"
	if len(messages) > 0 {
		message = strings.Join(messages, " ")
	}
	fmt.Fprintf(window.out, "%s %s\n", window.accent.Sprint(lot.name), message)
	window.active = ""
}
