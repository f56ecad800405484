package progress

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

const defaultTermWidth = 80

// Bar renders a single-line progress bar for a counted pass over the corpus.
type Bar struct {
	mu sync.Mutex
	w  io.Writer

	message  string
	maxValue int64
	current  int64
	started  time.Time
	rendered time.Time
}

func NewBar(w io.Writer, message string, maxValue int64) *Bar {
	return &Bar{w: w, message: message, maxValue: maxValue, started: time.Now()}
}

// formatDuration limits the rendering of a time.Duration to 2 units
func formatDuration(d time.Duration) string {
	if d >= 100*time.Hour {
		return "99h+"
	}

	if d >= time.Hour {
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}

	return d.Round(time.Second).String()
}

func (b *Bar) percent() float64 {
	if b.maxValue > 0 {
		return math.Min(100, float64(b.current)/float64(b.maxValue)*100)
	}
	return 0
}

func termWidth() int {
	fd := int(os.Stderr.Fd())
	if term.IsTerminal(fd) {
		if w, _, err := term.GetSize(fd); err == nil && w > 0 {
			return w
		}
	}
	return defaultTermWidth
}

func (b *Bar) string(width int) string {
	var pre, suf strings.Builder

	if b.message != "" {
		fmt.Fprintf(&pre, "%s ", strings.TrimSpace(b.message))
	}
	fmt.Fprintf(&pre, "%3.0f%% ", math.Floor(b.percent()))

	fmt.Fprintf(&suf, " %d/%d", b.current, b.maxValue)
	elapsed := time.Since(b.started)
	if b.current >= b.maxValue {
		fmt.Fprintf(&suf, " %s", formatDuration(elapsed))
	} else if b.current > 0 {
		remaining := time.Duration(float64(elapsed) / float64(b.current) * float64(b.maxValue-b.current))
		fmt.Fprintf(&suf, " %s left", formatDuration(remaining))
	}

	barWidth := width - pre.Len() - suf.Len() - 2
	if barWidth < 1 {
		return pre.String() + suf.String()
	}
	filled := int(float64(barWidth) * b.percent() / 100)
	return pre.String() + "▕" + strings.Repeat("█", filled) + strings.Repeat(" ", barWidth-filled) + "▏" + suf.String()
}

func (b *Bar) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.string(termWidth())
}

// Set records progress and redraws at most every 100ms, and always on completion.
func (b *Bar) Set(value int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.current = value
	if value < b.maxValue && time.Since(b.rendered) < 100*time.Millisecond {
		return
	}
	b.rendered = time.Now()
	fmt.Fprintf(b.w, "\r%s\033[K", b.string(termWidth()))
	if value >= b.maxValue {
		fmt.Fprintln(b.w)
	}
}
