package ui

import (
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/term"
)

// flushStdin discards any pending input from stdin to prevent terminal
// response sequences (cursor position reports, focus events) from
// corrupting the output.
func flushStdin() {
	FlushStdinWithTimeout(30 * time.Millisecond)
}

// Spinner is a tiny terminal spinner helper.
type Spinner struct {
	frames []rune
	idx    int
	out    io.Writer
	colors *ColorConfig
	prefix string
	delay  time.Duration
}

func NewSpinner(out io.Writer, prefix string) *Spinner {
	if out == nil {
		out = io.Discard
	}
	return &Spinner{
		frames: []rune{'⠋', '⠙', '⠹', '⠸', '⠼', '⠴', '⠦', '⠧', '⠇', '⠏'},
		out:    out,
		colors: NewColorConfigFromGlobal(),
		prefix: prefix,
		delay:  120 * time.Millisecond,
	}
}

func (s *Spinner) SetDelay(d time.Duration) {
	if d > 0 {
		s.delay = d
	}
}

// Tick renders the next frame with prefix. Caller controls timing via time.Ticker.
func (s *Spinner) Tick() {
	if s.out == nil {
		return
	}
	frame := s.frames[s.idx%len(s.frames)]
	s.idx++
	if s.colors.Enabled {
		fmt.Fprintf(s.out, "\r%s %c", s.prefix, frame)
	} else {
		fmt.Fprintf(s.out, "\r%s", s.prefix)
	}
}

// ProgressBar renders a terminal progress bar with transfer statistics.
// It is fed either bytes (Update) or percent values (UpdatePercent), which
// matches how the install pipeline reports progress per phase.
type ProgressBar struct {
	out        io.Writer
	label      string
	total      int64
	current    int64
	percent    float64
	startTime  time.Time
	lastUpdate time.Time
	isTTY      bool
	lastPct    float64 // for non-TTY threshold updates
	indent     string
}

// NewProgressBar creates a progress bar. If total is <= 0, Update shows
// bytes transferred without a percentage; UpdatePercent always works.
func NewProgressBar(out io.Writer, label string, total int64) *ProgressBar {
	if out == nil {
		out = os.Stdout
	}

	isTTY := false
	if f, ok := out.(*os.File); ok {
		isTTY = term.IsTerminal(int(f.Fd()))
	}

	// Disable terminal focus reporting so ^[[I/^[[O sequences don't land
	// in the middle of the bar, then drain any pending responses.
	if isTTY {
		fmt.Fprint(out, "\033[?1004l")
		time.Sleep(10 * time.Millisecond)
		flushStdin()
	}

	if label == "" {
		label = "Downloading"
	}
	return &ProgressBar{
		out:       out,
		label:     label,
		total:     total,
		startTime: time.Now(),
		isTTY:     isTTY,
		lastPct:   -1,
		indent:    "  ",
	}
}

// SetIndent sets the indentation prefix for the progress bar output.
func (p *ProgressBar) SetIndent(indent string) {
	p.indent = indent
}

// Update advances the bar by byte count.
func (p *ProgressBar) Update(current int64) {
	p.current = current

	// Rate limit updates to avoid flicker (max 10/sec for TTY)
	now := time.Now()
	if p.isTTY && now.Sub(p.lastUpdate) < 100*time.Millisecond {
		return
	}
	p.lastUpdate = now

	if p.total <= 0 {
		fmt.Fprintf(p.out, "\r%s%s... %s", p.indent, p.label, FormatBytes(current))
		return
	}
	p.render(float64(current) / float64(p.total) * 100)
}

// UpdatePercent advances the bar by overall percent (0-100).
func (p *ProgressBar) UpdatePercent(pct int) {
	p.percent = float64(pct)

	now := time.Now()
	if p.isTTY && pct < 100 && now.Sub(p.lastUpdate) < 100*time.Millisecond {
		return
	}
	p.lastUpdate = now
	p.render(p.percent)
}

func (p *ProgressBar) render(pct float64) {
	if !p.isTTY {
		// Non-TTY: print at 10% intervals
		threshold := float64(int(pct/10) * 10)
		if threshold > p.lastPct {
			p.lastPct = threshold
			fmt.Fprintf(p.out, "%s%s... %.0f%%\n", p.indent, p.label, threshold)
		}
		return
	}
	p.renderTTY(pct)
}

// renderTTY renders the progress bar for TTY output.
func (p *ProgressBar) renderTTY(pct float64) {
	stats := ""
	if p.total > 0 {
		elapsed := time.Since(p.startTime).Seconds()
		var speed float64
		if elapsed > 0 {
			speed = float64(p.current) / elapsed
		}
		eta := "0s"
		if speed > 0 && p.current < p.total {
			eta = formatDuration(float64(p.total-p.current) / speed)
		}
		stats = fmt.Sprintf("   %s/%s   %s   ETA %s",
			FormatBytes(p.current), FormatBytes(p.total), FormatSpeed(speed), eta)
	}

	width := 80
	if f, ok := p.out.(*os.File); ok {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			width = w
		}
	}

	barWidth := width - 56 - len(p.indent)
	if barWidth < 10 {
		barWidth = 10
	}
	if barWidth > 40 {
		barWidth = 40
	}

	filled := int(pct / 100 * float64(barWidth))
	if filled > barWidth {
		filled = barWidth
	}
	if filled < 0 {
		filled = 0
	}

	var bar string
	for i := 0; i < barWidth; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}

	// \033[K clears to end of line so a shrinking stats block leaves no tail
	fmt.Fprintf(p.out, "\r%s[%s] %5.1f%%%s\033[K", p.indent, bar, pct, stats)
}

// formatDuration formats seconds into a human-readable duration string.
func formatDuration(seconds float64) string {
	if seconds < 0 {
		return "--"
	}
	if seconds < 60 {
		return fmt.Sprintf("%.0fs", seconds)
	}
	if seconds < 3600 {
		return fmt.Sprintf("%dm%ds", int(seconds)/60, int(seconds)%60)
	}
	return fmt.Sprintf("%dh%dm", int(seconds)/3600, (int(seconds)%3600)/60)
}

// Finish completes the progress bar and moves to the next line.
func (p *ProgressBar) Finish() {
	if p.isTTY {
		p.renderTTY(100)
		fmt.Fprintln(p.out)
		flushStdin()
	} else if p.lastPct < 100 {
		fmt.Fprintf(p.out, "%s%s... 100%%\n", p.indent, p.label)
	}
}
