package loader

import (
	"strings"
	"sync"
	"time"

	"github.com/Wa4h1h/go-tftp-loader/pkg/client"
	"github.com/pterm/pterm"
)

// Reporter receives the progress of a load for display.
type Reporter interface {
	Info(format string, args ...any)
	Script(script string)
	LoadStarted(remote string, size int)
	Progress(p client.Progress)
	LoadFinished(size int, elapsed time.Duration, err error)
}

type nopReporter struct{}

func (nopReporter) Info(string, ...any) {}
func (nopReporter) Script(string) {}
func (nopReporter) LoadStarted(string, int) {}
func (nopReporter) Progress(client.Progress) {}
func (nopReporter) LoadFinished(int, time.Duration, error) {}

// TermReporter prints steps with pterm and shows a progress bar while the
// image is uploaded. Progress for other files is ignored.
type TermReporter struct {
	mu     sync.Mutex
	bar    *pterm.ProgressbarPrinter
	remote string
	sent   int
}

func NewTermReporter() *TermReporter {
	return &TermReporter{}
}

func (r *TermReporter) Info(format string, args ...any) {
	pterm.Info.Printfln(format, args...)
}

func (r *TermReporter) Script(script string) {
	for _, line := range strings.Split(strings.TrimRight(script, "\n"), "\n") {
		pterm.Printfln("   %s", line)
	}
}

func (r *TermReporter) LoadStarted(remote string, size int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	total := size
	if total == 0 {
		total = 1
	}

	bar, err := pterm.DefaultProgressbar.
		WithTitle(remote).
		WithTotal(total).
		WithShowCount(false).
		WithRemoveWhenDone(true).
		Start()
	if err != nil {
		return
	}

	r.bar = bar
	r.remote = remote
	r.sent = 0
}

func (r *TermReporter) Progress(p client.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.bar == nil || p.Filename != r.remote {
		return
	}

	if n := p.BytesSent - r.sent; n > 0 {
		r.bar.Add(n)
	}

	r.sent = p.BytesSent
}

func (r *TermReporter) LoadFinished(size int, elapsed time.Duration, err error) {
	r.mu.Lock()
	bar := r.bar
	r.bar = nil
	r.mu.Unlock()

	if bar != nil {
		_, _ = bar.Stop()
	}

	if err != nil {
		pterm.Error.Printfln("load failed after %s", elapsed.Round(time.Millisecond))

		return
	}

	pterm.Success.Println(Throughput(size, elapsed))
}
