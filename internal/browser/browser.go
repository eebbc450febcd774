// Package browser loads pages and queries the rendered DOM.
//
// An Engine opens one Session per page. Three engines are available:
// playwright (the default, a headless Chromium driven by Playwright),
// chromedp (a headless Chrome driven over the DevTools protocol) and static
// (no browser: the document, its stylesheets and its images are fetched
// over HTTP and evaluated in Go).
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
)

// Engine names.
const (
	EnginePlaywright = "playwright"
	EngineChromedp   = "chromedp"
	EngineStatic     = "static"
)

// Engines lists the supported engine names.
var Engines = []string{EnginePlaywright, EngineChromedp, EngineStatic}

// DefaultEngine is used when no engine is configured.
const DefaultEngine = EnginePlaywright

// Errors returned by engines and sessions.
var (
	// ErrUnknownEngine is returned by New for an unsupported engine name.
	ErrUnknownEngine = errors.New("unknown browser engine")

	// ErrLoadTimeout is wrapped by Goto when the ready condition is not met in time.
	ErrLoadTimeout = errors.New("page load timed out")

	// ErrBadStatus is wrapped by Goto when the document response is not 2xx.
	ErrBadStatus = errors.New("unexpected document status")

	// ErrNotLoaded is returned by queries issued before a successful Goto.
	ErrNotLoaded = errors.New("no page loaded")

	// ErrInvalidWaitUntil is returned by ParseWaitUntil.
	ErrInvalidWaitUntil = errors.New("invalid wait-until condition")
)

// WaitUntil is the condition that ends a navigation.
type WaitUntil string

// Ready conditions.
const (
	// WaitNetworkIdle waits until no request has been in flight for 500ms.
	WaitNetworkIdle WaitUntil = "networkidle"

	// WaitLoad waits for the load event.
	WaitLoad WaitUntil = "load"

	// WaitDOMContentLoaded waits for the DOMContentLoaded event.
	WaitDOMContentLoaded WaitUntil = "domcontentloaded"
)

// idleQuietPeriod is how long the network must stay quiet for WaitNetworkIdle.
const idleQuietPeriod = 500 * time.Millisecond

// ParseWaitUntil parses a ready condition name. An empty name yields
// WaitNetworkIdle.
func ParseWaitUntil(s string) (WaitUntil, error) {
	switch w := WaitUntil(strings.ToLower(strings.TrimSpace(s))); w {
	case "":
		return WaitNetworkIdle, nil
	case WaitNetworkIdle, WaitLoad, WaitDOMContentLoaded:
		return w, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidWaitUntil, s)
	}
}

// ReadyPolicy is the condition and time budget for a navigation.
type ReadyPolicy struct {
	WaitUntil WaitUntil
	Timeout   time.Duration
}

// ImageObservation describes one img element as seen after a page load.
type ImageObservation struct {
	// Src is the raw src attribute, empty when absent.
	Src string `json:"src"`

	// Complete mirrors HTMLImageElement.complete.
	Complete bool `json:"complete"`

	// NaturalWidth mirrors HTMLImageElement.naturalWidth.
	NaturalWidth int `json:"naturalWidth"`
}

// Session is one browser tab bound to one page.
type Session interface {
	// Goto navigates to url and waits for the ready condition.
	Goto(ctx context.Context, url string, policy ReadyPolicy) error

	// URL returns the current document URL after redirects.
	URL() string

	// QueryImages returns every img element in document order.
	QueryImages(ctx context.Context) ([]ImageObservation, error)

	// ComputedBackgroundColors returns the computed background-color of
	// every element matching selector, in document order.
	ComputedBackgroundColors(ctx context.Context, selector string) ([]string, error)

	// Close releases the tab.
	Close() error
}

// SessionOptions configures a single session.
type SessionOptions struct {
	// Headers are extra HTTP headers sent with every request of the page.
	// They are merged over the engine headers.
	Headers map[string]string
}

// Engine opens sessions on a shared browser.
type Engine interface {
	Name() string
	NewSession(ctx context.Context, opts SessionOptions) (Session, error)
	Close() error
}

// Options configures an Engine.
type Options struct {
	// Headless runs the browser without a window.
	Headless bool

	// Headers are extra HTTP headers sent with every request.
	Headers map[string]string

	// UserAgent overrides the browser user agent when set.
	UserAgent string

	// ViewportWidth and ViewportHeight size the window.
	ViewportWidth  int
	ViewportHeight int

	// FetchTimeout bounds subresource requests of the static engine.
	FetchTimeout time.Duration

	// InstallBrowsers downloads the Playwright driver and Chromium first.
	InstallBrowsers bool

	// Logger receives engine diagnostics.
	Logger *slog.Logger
}

// Default viewport, matching a headless Chromium window.
const (
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 720
)

func (o Options) withDefaults() Options {
	if o.ViewportWidth <= 0 {
		o.ViewportWidth = DefaultViewportWidth
	}
	if o.ViewportHeight <= 0 {
		o.ViewportHeight = DefaultViewportHeight
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// New starts the named engine.
func New(ctx context.Context, name string, opts Options) (Engine, error) {
	opts = opts.withDefaults()
	switch strings.ToLower(name) {
	case "", EnginePlaywright:
		return newPlaywrightEngine(opts)
	case EngineChromedp:
		return newChromedpEngine(ctx, opts)
	case EngineStatic:
		return newStaticEngine(opts), nil
	default:
		return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnknownEngine, name, strings.Join(Engines, ", "))
	}
}

// ValidEngine reports whether name is a supported engine.
func ValidEngine(name string) bool {
	return slices.Contains(Engines, strings.ToLower(name))
}

// mergeHeaders returns base overlaid with extra.
func mergeHeaders(base, extra map[string]string) map[string]string {
	if len(base) == 0 && len(extra) == 0 {
		return nil
	}
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// skipNetworkScheme reports whether a URL never reaches the network.
func skipNetworkScheme(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	return strings.HasPrefix(lower, "data:") || strings.HasPrefix(lower, "blob:")
}
