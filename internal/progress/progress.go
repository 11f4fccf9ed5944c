package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	accent = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4655")).Bold(true)
	muted  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// Printer writes the timestamped lines a player watches while the tool runs.
// It is safe for concurrent use.
type Printer struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

func New(out io.Writer) *Printer {
	return &Printer{out: out, now: time.Now}
}

func (p *Printer) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	stamp := muted.Render(p.now().Format("15:04:05"))
	fmt.Fprintf(p.out, "%s - %s\n", stamp, fmt.Sprintf(format, args...))
}

func (p *Printer) EnteredPregame(mapName string) {
	p.printf("Entered Pregame for %s", accent.Render(mapName))
}

func (p *Printer) MapFallback(mapName string, err error) {
	p.printf("Could not fetch the current map (%v), assuming %s", err, mapName)
}

func (p *Printer) Locked(agent string, elapsed time.Duration, failed int) {
	line := fmt.Sprintf("Instalocked %s after %dms", accent.Render(agent), elapsed.Milliseconds())
	if failed > 0 {
		line += fmt.Sprintf(" after %d failed attempts", failed)
	}
	p.printf("%s", line)
}

func (p *Printer) MatchStarted() {
	p.printf("Match started")
}

func (p *Printer) MatchEnded() {
	p.printf("Match ended")
}
