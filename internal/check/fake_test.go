package check

import (
	"context"
	"errors"
	"sync"

	"github.com/nao1215/sitecheck/internal/browser"
)

// fakeSession is a browser.Session with canned observations.
type fakeSession struct {
	url       string
	images    []browser.ImageObservation
	colors    []string
	queryErr  error
	selectors []string
}

func (s *fakeSession) Goto(context.Context, string, browser.ReadyPolicy) error { return nil }

func (s *fakeSession) URL() string { return s.url }

func (s *fakeSession) Close() error { return nil }

func (s *fakeSession) QueryImages(context.Context) ([]browser.ImageObservation, error) {
	return s.images, s.queryErr
}

func (s *fakeSession) ComputedBackgroundColors(_ context.Context, selector string) ([]string, error) {
	s.selectors = append(s.selectors, selector)
	return s.colors, s.queryErr
}

// fakeFetcher answers with fixed statuses and records requested URLs.
type fakeFetcher struct {
	mu       sync.Mutex
	statuses map[string]int
	errs     map[string]error
	calls    []string
	headers  []map[string]string
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string, headers map[string]string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, rawURL)
	f.headers = append(f.headers, headers)
	if err, ok := f.errs[rawURL]; ok {
		return 0, err
	}
	if status, ok := f.statuses[rawURL]; ok {
		return status, nil
	}
	return 0, errors.New("connection refused")
}
