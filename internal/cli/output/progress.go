package output

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

const (
	barWidth       = 30
	renderInterval = 100 * time.Millisecond
)

// ProgressBar renders transfer progress on one terminal line. Update has
// the transport.ProgressFunc signature and is safe for concurrent use.
type ProgressBar struct {
	w     io.Writer
	title string
	start time.Time

	mu       sync.Mutex
	done     int64
	total    int64
	lastDraw time.Time
	finished bool
	now      func() time.Time
}

// NewProgressBar creates a progress bar titled title.
func NewProgressBar(w io.Writer, title string) *ProgressBar {
	return &ProgressBar{
		w:     w,
		title: title,
		start: time.Now(),
		total: -1,
		now:   time.Now,
	}
}

// Update records done of total bytes. A negative total is unknown.
// Redraws are throttled except for the final byte.
func (p *ProgressBar) Update(done, total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished {
		return
	}
	p.done = done
	p.total = total

	now := p.now()
	if now.Sub(p.lastDraw) < renderInterval && (total < 0 || done < total) {
		return
	}
	p.lastDraw = now
	p.render(now)
}

// Finish draws the final state and ends the line.
func (p *ProgressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished {
		return
	}
	p.finished = true
	p.render(p.now())
	fmt.Fprintln(p.w)
}

func (p *ProgressBar) render(now time.Time) {
	rate := ""
	if elapsed := now.Sub(p.start).Seconds(); elapsed > 0 {
		rate = fmt.Sprintf(" %s/s", FormatBytes(int64(float64(p.done)/elapsed)))
	}

	if p.total <= 0 {
		fmt.Fprintf(p.w, "\r%s %s%s", p.title, FormatBytes(p.done), rate)
		return
	}

	frac := float64(p.done) / float64(p.total)
	frac = min(max(frac, 0), 1)
	filled := int(frac * barWidth)
	bar := strings.Repeat("=", filled) + strings.Repeat(" ", barWidth-filled)
	fmt.Fprintf(p.w, "\r%s [%s] %3.0f%% %s/%s%s",
		p.title, bar, frac*100, FormatBytes(p.done), FormatBytes(p.total), rate)
}

// FormatBytes formats a byte count with binary units.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
