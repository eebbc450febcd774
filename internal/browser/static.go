package browser

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/webp" // register WebP decoder
	"golang.org/x/net/html"

	"github.com/nao1215/sitecheck/internal/fetch"
	"github.com/nao1215/sitecheck/internal/style"
)

// defaultObjectWidth is the width of a replaced element without intrinsic
// dimensions, used for SVG images that declare neither width nor viewBox.
const defaultObjectWidth = 300

// Accept headers sent by the static engine.
const (
	acceptDocument   = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	acceptStylesheet = "text/css,*/*;q=0.1"
	acceptImage      = "image/avif,image/webp,image/png,image/svg+xml,image/*;q=0.8,*/*;q=0.5"
)

// staticEngine evaluates pages without a browser.
type staticEngine struct {
	opts Options
}

func newStaticEngine(opts Options) *staticEngine {
	return &staticEngine{opts: opts}
}

func (e *staticEngine) Name() string {
	return EngineStatic
}

func (e *staticEngine) NewSession(ctx context.Context, opts SessionOptions) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clientOpts := []fetch.Option{
		fetch.WithHeaders(mergeHeaders(e.opts.Headers, opts.Headers)),
		fetch.WithLogger(e.opts.Logger),
		fetch.WithUserAgent(e.opts.UserAgent),
	}
	if e.opts.FetchTimeout > 0 {
		clientOpts = append(clientOpts, fetch.WithTimeout(e.opts.FetchTimeout))
	}
	return &staticSession{
		client:   fetch.New(clientOpts...),
		viewport: e.opts.ViewportWidth,
	}, nil
}

func (e *staticEngine) Close() error {
	return nil
}

// staticSession holds one fetched document and the results of loading its
// stylesheets and images.
type staticSession struct {
	client   *fetch.Client
	viewport int

	mu      sync.Mutex
	url     *url.URL
	doc     *goquery.Document
	cascade *style.Cascade
	images  []ImageObservation
}

// Goto fetches the document, its stylesheets and every image, which is the
// static equivalent of waiting for network idle. The ready condition only
// matters to real browsers.
func (s *staticSession) Goto(ctx context.Context, rawURL string, policy ReadyPolicy) error {
	if policy.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, policy.Timeout)
		defer cancel()
	}

	resp, err := s.client.Get(ctx, rawURL, acceptDocument)
	if err != nil {
		return loadError(ctx, rawURL, policy, err)
	}
	if !resp.OK() {
		return fmt.Errorf("%w: %d", ErrBadStatus, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", rawURL, err)
	}
	base := documentBase(doc, resp.URL)

	cascade, err := s.loadStylesheets(ctx, doc, base)
	if err != nil {
		return loadError(ctx, rawURL, policy, err)
	}
	images, err := s.loadImages(ctx, doc, base)
	if err != nil {
		return loadError(ctx, rawURL, policy, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.url = resp.URL
	s.doc = doc
	s.cascade = cascade
	s.images = images
	return nil
}

// loadError classifies a failure during Goto.
func loadError(ctx context.Context, rawURL string, policy ReadyPolicy, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s after %s", ErrLoadTimeout, policy.WaitUntil, policy.Timeout)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrLoadTimeout, err)
	}
	return fmt.Errorf("navigation to %s failed: %w", rawURL, err)
}

// documentBase honors a <base href> element.
func documentBase(doc *goquery.Document, docURL *url.URL) *url.URL {
	href, ok := doc.Find("base[href]").First().Attr("href")
	if !ok {
		return docURL
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return docURL
	}
	return docURL.ResolveReference(ref)
}

// loadStylesheets builds the cascade from <style> elements and linked
// stylesheets in document order. A stylesheet that fails to load is
// skipped, as a browser would.
func (s *staticSession) loadStylesheets(ctx context.Context, doc *goquery.Document, base *url.URL) (*style.Cascade, error) {
	cascade := style.NewCascade(s.viewport)

	var err error
	doc.Find("style, link").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if media, ok := sel.Attr("media"); ok && !mediaApplies(media) {
			return true
		}

		switch goquery.NodeName(sel) {
		case "style":
			// A parse error keeps the rules read so far.
			_ = cascade.AddStylesheet(strings.NewReader(sel.Text())) //nolint:errcheck
		case "link":
			if !isStylesheetLink(sel) {
				return true
			}
			href, _ := sel.Attr("href")
			target, parseErr := resolve(base, href)
			if parseErr != nil {
				return true
			}
			resp, getErr := s.client.Get(ctx, target.String(), acceptStylesheet)
			if getErr != nil {
				if ctx.Err() != nil {
					err = getErr
					return false
				}
				return true
			}
			if resp.OK() {
				_ = cascade.AddStylesheet(bytes.NewReader(resp.Body)) //nolint:errcheck
			}
		}
		return true
	})
	return cascade, err
}

// isStylesheetLink reports whether a link element loads a stylesheet.
func isStylesheetLink(sel *goquery.Selection) bool {
	rel, _ := sel.Attr("rel")
	for _, token := range strings.Fields(strings.ToLower(rel)) {
		if token == "stylesheet" {
			href, ok := sel.Attr("href")
			return ok && strings.TrimSpace(href) != ""
		}
	}
	return false
}

// mediaApplies evaluates the media attribute of a style or link element.
func mediaApplies(media string) bool {
	m := strings.ToLower(media)
	return !strings.Contains(m, "print") || strings.Contains(m, "screen") || strings.Contains(m, "all")
}

// loadImages fetches every img element once per distinct URL.
func (s *staticSession) loadImages(ctx context.Context, doc *goquery.Document, base *url.URL) ([]ImageObservation, error) {
	type loaded struct {
		complete bool
		width    int
	}
	cache := make(map[string]loaded)

	var (
		images []ImageObservation
		err    error
	)
	doc.Find("img").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		src := sel.AttrOr("src", "")
		obs := ImageObservation{Src: src}

		trimmed := strings.TrimSpace(src)
		switch {
		case trimmed == "":
			// No request is made; the element is complete with no image.
			obs.Complete = true
		case strings.HasPrefix(strings.ToLower(trimmed), "data:"):
			obs.NaturalWidth, obs.Complete = decodeDataURL(trimmed)
		case strings.HasPrefix(strings.ToLower(trimmed), "blob:"):
			// Object URLs only exist inside a running document.
		default:
			target, parseErr := resolve(base, trimmed)
			if parseErr != nil {
				break
			}
			key := target.String()
			l, ok := cache[key]
			if !ok {
				width, complete, fetchErr := s.loadImage(ctx, key)
				if fetchErr != nil && ctx.Err() != nil {
					err = fetchErr
					return false
				}
				l = loaded{complete: complete, width: width}
				cache[key] = l
			}
			obs.Complete = l.complete
			obs.NaturalWidth = l.width
		}

		images = append(images, obs)
		return true
	})
	return images, err
}

// loadImage downloads and measures one image. A failed download leaves the
// image incomplete; an undecodable body is complete with zero width.
func (s *staticSession) loadImage(ctx context.Context, rawURL string) (int, bool, error) {
	resp, err := s.client.Get(ctx, rawURL, acceptImage)
	if err != nil {
		return 0, false, err
	}
	if !resp.OK() {
		return 0, false, nil
	}
	return imageWidth(resp.Body, resp.Header.Get("Content-Type")), true, nil
}

// imageWidth returns the natural width of an encoded image, or 0.
func imageWidth(data []byte, contentType string) int {
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		return cfg.Width
	}
	if strings.Contains(contentType, "svg") || looksLikeSVG(data) {
		return svgWidth(data)
	}
	return 0
}

// decodeDataURL measures an inline image.
func decodeDataURL(src string) (int, bool) {
	header, payload, ok := strings.Cut(src[len("data:"):], ",")
	if !ok {
		return 0, true
	}
	var data []byte
	if strings.HasSuffix(strings.ToLower(header), ";base64") {
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
		if err != nil {
			return 0, true
		}
		data = decoded
	} else {
		unescaped, err := url.PathUnescape(payload)
		if err != nil {
			return 0, true
		}
		data = []byte(unescaped)
	}
	mediaType, _, _ := strings.Cut(header, ";")
	return imageWidth(data, mediaType), true
}

func looksLikeSVG(data []byte) bool {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	return bytes.Contains(bytes.ToLower(head), []byte("<svg"))
}

// svgWidth reads the intrinsic width of an SVG document from its root
// element: the width attribute in absolute units, otherwise the viewBox.
func svgWidth(data []byte) int {
	z := html.NewTokenizer(bytes.NewReader(data))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return 0
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if !strings.EqualFold(string(name), "svg") {
				continue
			}
			var width, viewBox string
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				switch strings.ToLower(string(key)) {
				case "width":
					width = string(val)
				case "viewbox":
					viewBox = string(val)
				}
			}
			if w, ok := svgLength(width); ok {
				return w
			}
			if fields := strings.Fields(strings.ReplaceAll(viewBox, ",", " ")); len(fields) == 4 {
				if w, err := strconv.ParseFloat(fields[2], 64); err == nil && w > 0 {
					return int(w)
				}
			}
			return defaultObjectWidth
		}
	}
}

// svgLength parses a width in px or unitless user units.
func svgLength(v string) (int, bool) {
	v = strings.TrimSuffix(strings.TrimSpace(v), "px")
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return 0, false
	}
	return int(f), true
}

// resolve resolves a reference against base.
func resolve(base *url.URL, ref string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return nil, err
	}
	return base.ResolveReference(u), nil
}

func (s *staticSession) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.url == nil {
		return ""
	}
	return s.url.String()
}

func (s *staticSession) QueryImages(ctx context.Context) ([]ImageObservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return nil, ErrNotLoaded
	}
	out := make([]ImageObservation, len(s.images))
	copy(out, s.images)
	return out, nil
}

func (s *staticSession) ComputedBackgroundColors(ctx context.Context, selector string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return nil, ErrNotLoaded
	}

	matcher, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	colors := []string{}
	s.doc.FindMatcher(matcher).Each(func(_ int, el *goquery.Selection) {
		colors = append(colors, s.cascade.BackgroundColor(el.Nodes[0]))
	})
	return colors, nil
}

func (s *staticSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = nil
	s.cascade = nil
	s.images = nil
	return nil
}
