package check

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/nao1215/sitecheck/internal/browser"
	"github.com/nao1215/sitecheck/internal/fetch"
	"github.com/nao1215/sitecheck/internal/locale"
	"github.com/nao1215/sitecheck/internal/model"
)

// ResourceResult is the outcome of the resource check of one page.
type ResourceResult struct {
	Images     []model.ImageRecord
	Resources  []model.ResourceCheckResult
	Violations []model.Violation
}

// ResourceChecker checks image loading and reachability.
type ResourceChecker struct {
	fetcher  fetch.Fetcher
	printer  *locale.Printer
	settings settings
}

// NewResourceChecker creates a ResourceChecker probing sources with fetcher.
func NewResourceChecker(fetcher fetch.Fetcher, printer *locale.Printer, opts ...Option) *ResourceChecker {
	return &ResourceChecker{
		fetcher:  fetcher,
		printer:  printer,
		settings: newSettings(opts),
	}
}

// CheckPage inspects every img element of the page, then fetches each
// distinct fetchable source once. All failures are collected.
// An error is returned only when the page cannot be queried or ctx ends.
func (c *ResourceChecker) CheckPage(ctx context.Context, page LoadedPage) (*ResourceResult, error) {
	images, err := page.Session.QueryImages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query images on %s: %w", page.Name, err)
	}

	result := &ResourceResult{
		Images: make([]model.ImageRecord, 0, len(images)),
	}
	for i, img := range images {
		ordinal := i + 1
		result.Images = append(result.Images, model.ImageRecord{
			Ordinal:      ordinal,
			Src:          img.Src,
			Complete:     img.Complete,
			NaturalWidth: img.NaturalWidth,
		})

		if !img.Complete {
			result.Violations = append(result.Violations, model.Violation{
				Kind:     model.KindImageLoad,
				Page:     page.Name,
				Ordinal:  ordinal,
				Resource: img.Src,
				Observed: "complete=false",
				Message:  c.printer.Sprintf(locale.MsgImageIncomplete, page.Name, ordinal),
			})
		}
		if img.NaturalWidth <= 0 {
			result.Violations = append(result.Violations, model.Violation{
				Kind:     model.KindImageLoad,
				Page:     page.Name,
				Ordinal:  ordinal,
				Resource: img.Src,
				Observed: "naturalWidth=0",
				Message:  c.printer.Sprintf(locale.MsgImageZeroWidth, page.Name, ordinal),
			})
		}
	}

	base, baseErr := url.Parse(page.Session.URL())
	if baseErr != nil {
		c.settings.logger.WarnContext(ctx, "page URL is not parsable", "page", page.Name, "error", baseErr)
		base = &url.URL{}
	}

	for _, src := range FetchableSources(images) {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		res := c.checkSource(ctx, base, src, page.Headers)
		result.Resources = append(result.Resources, res)
		if res.Reachable {
			continue
		}

		v := model.Violation{
			Kind:     model.KindResourceUnreachable,
			Page:     page.Name,
			Resource: src,
			URL:      res.URL,
			Status:   res.Status,
		}
		if res.Error != "" {
			v.Observed = res.Error
			v.Message = c.printer.Sprintf(locale.MsgResourceError, page.Name, src, res.Error)
		} else {
			v.Observed = fmt.Sprintf("status %d", res.Status)
			v.Message = c.printer.Sprintf(locale.MsgResourceStatus, page.Name, src, res.Status)
		}
		result.Violations = append(result.Violations, v)
	}

	return result, nil
}

// checkSource resolves src against base and fetches it.
func (c *ResourceChecker) checkSource(ctx context.Context, base *url.URL, src string, headers map[string]string) model.ResourceCheckResult {
	res := model.ResourceCheckResult{Src: src}

	ref, err := url.Parse(strings.TrimSpace(src))
	if err != nil {
		res.Error = fmt.Sprintf("invalid URL: %v", err)
		return res
	}
	target := base.ResolveReference(ref)
	target.Fragment = ""
	res.URL = target.String()

	status, err := c.fetcher.Fetch(ctx, res.URL, headers)
	if err != nil {
		c.settings.logger.DebugContext(ctx, "image resource fetch failed", "url", res.URL, "error", err)
		res.Error = err.Error()
		return res
	}
	res.Status = status
	res.Reachable = fetch.OK(status)
	return res
}

// FetchableSources returns the distinct non-empty src values in first-seen
// order, leaving out data: and blob: URLs.
func FetchableSources(images []browser.ImageObservation) []string {
	seen := make(map[string]struct{}, len(images))
	sources := make([]string, 0, len(images))
	for _, img := range images {
		if img.Src == "" {
			continue
		}
		if _, dup := seen[img.Src]; dup {
			continue
		}
		seen[img.Src] = struct{}{}
		if isInlineSource(img.Src) {
			continue
		}
		sources = append(sources, img.Src)
	}
	return sources
}

func isInlineSource(src string) bool {
	s := strings.ToLower(strings.TrimSpace(src))
	return strings.HasPrefix(s, "data:") || strings.HasPrefix(s, "blob:")
}
