package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// chromedpEngine drives a headless Chrome over the DevTools protocol.
// Every session is a new tab of the same browser process.
type chromedpEngine struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	opts          Options
}

func newChromedpEngine(ctx context.Context, opts Options) (*chromedpEngine, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.WindowSize(opts.ViewportWidth, opts.ViewportHeight),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	// The browser outlives individual calls, so it is detached from ctx's
	// cancellation and stopped by Close.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// The first Run starts the browser.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	return &chromedpEngine{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		opts:          opts,
	}, nil
}

func (e *chromedpEngine) Name() string {
	return EngineChromedp
}

// NewSession opens a new tab with network tracking enabled.
func (e *chromedpEngine) NewSession(ctx context.Context, opts SessionOptions) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tabCtx, cancel := chromedp.NewContext(e.browserCtx)
	tracker := newIdleTracker()
	chromedp.ListenTarget(tabCtx, tracker.handle)

	actions := []chromedp.Action{network.Enable()}
	if headers := mergeHeaders(e.opts.Headers, opts.Headers); headers != nil {
		h := make(network.Headers, len(headers))
		for k, v := range headers {
			h[k] = v
		}
		actions = append(actions, network.SetExtraHTTPHeaders(h))
	}

	// The first Run attaches the tab and its event loop lives as long as
	// the context it is given, so it must be tabCtx itself. Cancelling ctx
	// meanwhile closes the tab.
	stop := context.AfterFunc(ctx, cancel)
	err := chromedp.Run(tabCtx, actions...)
	if !stop() {
		cancel()
		return nil, ctx.Err()
	}
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}
	return &chromedpSession{tabCtx: tabCtx, cancel: cancel, tracker: tracker}, nil
}

func (e *chromedpEngine) Close() error {
	e.browserCancel()
	e.allocCancel()
	return nil
}

// chromedpSession is a single tab.
type chromedpSession struct {
	tabCtx  context.Context
	cancel  context.CancelFunc
	tracker *idleTracker

	mu  sync.Mutex
	url string
}

// bind derives a context from the tab that is also cancelled with ctx and,
// when timeout is positive, after timeout.
func (s *chromedpSession) bind(ctx context.Context, timeout time.Duration) (context.Context, func()) {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(s.tabCtx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(s.tabCtx)
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (s *chromedpSession) Goto(ctx context.Context, url string, policy ReadyPolicy) error {
	runCtx, done := s.bind(ctx, policy.Timeout)
	defer done()

	s.tracker.reset()
	var status int64
	var err error
	if policy.WaitUntil == WaitDOMContentLoaded {
		// chromedp.Navigate always waits for the load event.
		err = chromedp.Run(runCtx, navigate(url))
		if err == nil {
			status, err = s.tracker.waitDOMContent(runCtx)
		}
	} else {
		var resp *network.Response
		resp, err = chromedp.RunResponse(runCtx, chromedp.Navigate(url))
		if resp != nil {
			status = resp.Status
		}
		if err == nil && policy.WaitUntil == WaitNetworkIdle {
			err = s.tracker.wait(runCtx, idleQuietPeriod)
		}
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s after %s", ErrLoadTimeout, policy.WaitUntil, policy.Timeout)
		}
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	if status != 0 && (status < 200 || status > 299) {
		return fmt.Errorf("%w: %d", ErrBadStatus, status)
	}

	var location string
	if err := chromedp.Run(runCtx, chromedp.Location(&location)); err != nil {
		location = url
	}
	s.mu.Lock()
	s.url = location
	s.mu.Unlock()
	return nil
}

// navigate issues Page.navigate without waiting for any lifecycle event.
func navigate(url string) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		var res page.NavigateReturns
		if err := cdp.Execute(ctx, page.CommandNavigate, page.Navigate(url), &res); err != nil {
			return err
		}
		if res.ErrorText != "" {
			return errors.New(res.ErrorText)
		}
		return nil
	}
}

func (s *chromedpSession) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

func (s *chromedpSession) QueryImages(ctx context.Context) ([]ImageObservation, error) {
	raw, err := s.evaluate(ctx, imagesScript)
	if err != nil {
		return nil, err
	}
	return decodeImages(raw)
}

func (s *chromedpSession) ComputedBackgroundColors(ctx context.Context, selector string) ([]string, error) {
	raw, err := s.evaluate(ctx, backgroundsScript(selector))
	if err != nil {
		return nil, err
	}
	return decodeColors(raw)
}

func (s *chromedpSession) evaluate(ctx context.Context, script string) (string, error) {
	runCtx, done := s.bind(ctx, 0)
	defer done()

	var raw string
	if err := chromedp.Run(runCtx, chromedp.Evaluate(script, &raw)); err != nil {
		return "", fmt.Errorf("script evaluation failed: %w", err)
	}
	return raw, nil
}

func (s *chromedpSession) Close() error {
	s.cancel()
	return nil
}

// idleTracker counts in-flight network requests of a tab and records the
// DOMContentLoaded event and document status of the current navigation.
type idleTracker struct {
	mu        sync.Mutex
	inflight  map[network.RequestID]struct{}
	last      time.Time
	domReady  chan struct{}
	domFired  bool
	docStatus int64
}

func newIdleTracker() *idleTracker {
	return &idleTracker{
		inflight: make(map[network.RequestID]struct{}),
		last:     time.Now(),
		domReady: make(chan struct{}),
	}
}

// handle is a chromedp target listener.
func (t *idleTracker) handle(ev any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch e := ev.(type) {
	case *page.EventDomContentEventFired:
		if !t.domFired {
			t.domFired = true
			close(t.domReady)
		}
		return
	case *network.EventResponseReceived:
		if e.Type == network.ResourceTypeDocument && t.docStatus == 0 && e.Response != nil {
			t.docStatus = e.Response.Status
		}
		return
	case *network.EventRequestWillBeSent:
		if e.Request != nil && skipNetworkScheme(e.Request.URL) {
			return
		}
		t.inflight[e.RequestID] = struct{}{}
	case *network.EventLoadingFinished:
		delete(t.inflight, e.RequestID)
	case *network.EventLoadingFailed:
		delete(t.inflight, e.RequestID)
	default:
		return
	}
	t.last = time.Now()
}

func (t *idleTracker) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.inflight)
	t.last = time.Now()
	t.domReady = make(chan struct{})
	t.domFired = false
	t.docStatus = 0
}

// waitDOMContent blocks until DOMContentLoaded fired and returns the status
// of the document response, zero when none was seen.
func (t *idleTracker) waitDOMContent(ctx context.Context) (int64, error) {
	t.mu.Lock()
	ready := t.domReady
	t.mu.Unlock()

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-ready:
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.docStatus, nil
}

// idle reports whether nothing has been in flight for quiet.
func (t *idleTracker) idle(quiet time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight) == 0 && time.Since(t.last) >= quiet
}

// wait blocks until the tab has been idle for quiet or ctx is done.
func (t *idleTracker) wait(ctx context.Context, quiet time.Duration) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if t.idle(quiet) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
