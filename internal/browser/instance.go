package browser

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/Hommy-master/browserbox/internal/core/domain"
)

type instance struct {
	engine   *Engine
	browser  *rod.Browser
	launcher *launcher.Launcher
	desc     domain.FingerprintDescriptor
	workDir  string

	closeOnce sync.Once
	closeErr  error
}

// RunTask opens an emulated page, performs the task and closes the page.
func (i *instance) RunTask(ctx context.Context, prompt string) (string, error) {
	page, err := i.engine.newPage(i.browser)
	if err != nil {
		return "", fmt.Errorf("browser: open page: %w", err)
	}
	defer page.Close()

	page = page.Context(ctx)
	if err := i.emulate(page); err != nil {
		return "", err
	}
	if err := page.Navigate("about:blank"); err != nil {
		return "", fmt.Errorf("browser: navigate: %w", err)
	}

	if prompt == "" {
		return "Executed default task", nil
	}
	return "Executed task with prompt: " + prompt, nil
}

// emulate applies the descriptor to page.
func (i *instance) emulate(page *rod.Page) error {
	d := i.desc
	if d.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      d.UserAgent,
			AcceptLanguage: d.Language,
			Platform:       d.Platform,
		}); err != nil {
			return fmt.Errorf("browser: user agent override: %w", err)
		}
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             d.Viewport.Width,
		Height:            d.Viewport.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		return fmt.Errorf("browser: viewport override: %w", err)
	}
	if d.Language != "" {
		if err := (proto.EmulationSetLocaleOverride{Locale: d.Language}).Call(page); err != nil {
			return fmt.Errorf("browser: locale override: %w", err)
		}
	}
	if d.Timezone != "" {
		if err := (proto.EmulationSetTimezoneOverride{TimezoneID: d.Timezone}).Call(page); err != nil {
			return fmt.Errorf("browser: timezone override: %w", err)
		}
	}
	return nil
}

func (i *instance) Close() error {
	i.closeOnce.Do(func() {
		i.browser.Close()
		i.launcher.Kill()
		if i.workDir != "" {
			if err := os.RemoveAll(i.workDir); err != nil {
				i.closeErr = fmt.Errorf("browser: remove work dir: %w", err)
			}
		}
		i.engine.cfg.Logger.Info("browser: instance closed", "work_dir", i.workDir)
	})
	return i.closeErr
}
