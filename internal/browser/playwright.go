package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
)

// playwrightEngine drives a headless Chromium through Playwright.
type playwrightEngine struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	opts    Options
}

func newPlaywrightEngine(opts Options) (*playwrightEngine, error) {
	if opts.InstallBrowsers {
		opts.Logger.Info("installing playwright driver and chromium")
		if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
			return nil, fmt.Errorf("failed to install playwright: %w", err)
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	})
	if err != nil {
		_ = pw.Stop() //nolint:errcheck
		return nil, fmt.Errorf("failed to launch chromium: %w", err)
	}

	return &playwrightEngine{pw: pw, browser: browser, opts: opts}, nil
}

func (e *playwrightEngine) Name() string {
	return EnginePlaywright
}

// NewSession opens an isolated browser context with a single page.
func (e *playwrightEngine) NewSession(ctx context.Context, opts SessionOptions) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	contextOpts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: e.opts.ViewportWidth, Height: e.opts.ViewportHeight},
	}
	if headers := mergeHeaders(e.opts.Headers, opts.Headers); headers != nil {
		contextOpts.ExtraHttpHeaders = headers
	}
	if e.opts.UserAgent != "" {
		contextOpts.UserAgent = playwright.String(e.opts.UserAgent)
	}

	bctx, err := e.browser.NewContext(contextOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close() //nolint:errcheck
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	return &playwrightSession{bctx: bctx, page: page}, nil
}

func (e *playwrightEngine) Close() error {
	var errs []error
	if err := e.browser.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
	}
	if err := e.pw.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
	}
	return errors.Join(errs...)
}

// playwrightSession is one page of its own browser context.
type playwrightSession struct {
	bctx playwright.BrowserContext
	page playwright.Page
}

func (s *playwrightSession) Goto(ctx context.Context, url string, policy ReadyPolicy) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// Playwright calls are not context aware; closing the page aborts a
	// pending navigation.
	stop := context.AfterFunc(ctx, func() {
		_ = s.page.Close() //nolint:errcheck
	})
	defer stop()

	resp, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwrightWaitUntil(policy.WaitUntil),
		Timeout:   playwright.Float(float64(policy.Timeout / time.Millisecond)),
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(err, playwright.ErrTimeout) {
			return fmt.Errorf("%w: %w", ErrLoadTimeout, err)
		}
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	if resp != nil && !resp.Ok() {
		return fmt.Errorf("%w: %d", ErrBadStatus, resp.Status())
	}
	return nil
}

func (s *playwrightSession) URL() string {
	return s.page.URL()
}

func (s *playwrightSession) QueryImages(ctx context.Context) ([]ImageObservation, error) {
	raw, err := s.evaluate(ctx, imagesScript)
	if err != nil {
		return nil, err
	}
	return decodeImages(raw)
}

func (s *playwrightSession) ComputedBackgroundColors(ctx context.Context, selector string) ([]string, error) {
	raw, err := s.evaluate(ctx, backgroundsScript(selector))
	if err != nil {
		return nil, err
	}
	return decodeColors(raw)
}

// evaluate runs a script returning a JSON string.
func (s *playwrightSession) evaluate(ctx context.Context, script string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	result, err := s.page.Evaluate(script)
	if err != nil {
		return "", fmt.Errorf("script evaluation failed: %w", err)
	}
	raw, ok := result.(string)
	if !ok {
		return "", fmt.Errorf("script evaluation returned %T, want string", result)
	}
	return raw, nil
}

func (s *playwrightSession) Close() error {
	return s.bctx.Close()
}

func playwrightWaitUntil(w WaitUntil) *playwright.WaitUntilState {
	switch w {
	case WaitLoad:
		return playwright.WaitUntilStateLoad
	case WaitDOMContentLoaded:
		return playwright.WaitUntilStateDomcontentloaded
	default:
		return playwright.WaitUntilStateNetworkidle
	}
}
