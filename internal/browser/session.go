package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

type captureSession struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	page     *rod.Page

	done      chan struct{}
	doneOnce  sync.Once
	stop      chan struct{}
	closeOnce sync.Once
}

const probeJS = `() => JSON.stringify({
	userAgent: navigator.userAgent,
	language: navigator.language || "",
	timezone: Intl.DateTimeFormat().resolvedOptions().timeZone || "",
	platform: navigator.platform || ""
})`

func (s *captureSession) Probe(ctx context.Context) (Probe, error) {
	var p Probe
	res, err := s.page.Context(ctx).Eval(probeJS)
	if err != nil {
		return p, fmt.Errorf("browser: probe page: %w", err)
	}
	if err := json.Unmarshal([]byte(res.Value.Str()), &p); err != nil {
		return p, fmt.Errorf("browser: decode probe: %w", err)
	}
	return p, nil
}

func (s *captureSession) Done() <-chan struct{} {
	return s.done
}

// watch closes done once the browser has no page targets or stops answering.
func (s *captureSession) watch(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			pages, err := s.browser.Pages()
			if err != nil || len(pages) == 0 {
				s.finish()
				return
			}
		case <-s.stop:
			s.finish()
			return
		}
	}
}

func (s *captureSession) finish() {
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *captureSession) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
		s.browser.Close()
		// Kill, not Cleanup: Cleanup deletes the user data dir.
		s.launcher.Kill()
	})
	return nil
}
