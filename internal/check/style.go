package check

import (
	"context"
	"fmt"

	"github.com/nao1215/sitecheck/internal/locale"
	"github.com/nao1215/sitecheck/internal/model"
	"github.com/nao1215/sitecheck/internal/style"
)

// StyleResult is the outcome of the style audit of one module page.
type StyleResult struct {
	Styles     []model.StyleObservation
	Violations []model.Violation
}

// StyleAuditor checks module image backgrounds.
type StyleAuditor struct {
	printer  *locale.Printer
	settings settings
}

// NewStyleAuditor creates a StyleAuditor.
func NewStyleAuditor(printer *locale.Printer, opts ...Option) *StyleAuditor {
	return &StyleAuditor{
		printer:  printer,
		settings: newSettings(opts),
	}
}

// Selector returns the selector of audited images.
func (a *StyleAuditor) Selector() string {
	return "." + a.settings.moduleClass + " img"
}

// AppliesTo reports whether the page is audited.
func (a *StyleAuditor) AppliesTo(name string) bool {
	return a.settings.isModule(name)
}

// AuditModulePage reports every module image whose computed background is
// not opaque white. Pages that are not module pages yield a nil result.
func (a *StyleAuditor) AuditModulePage(ctx context.Context, page LoadedPage) (*StyleResult, error) {
	if !a.AppliesTo(page.Name) {
		return nil, nil
	}

	colors, err := page.Session.ComputedBackgroundColors(ctx, a.Selector())
	if err != nil {
		return nil, fmt.Errorf("failed to read backgrounds on %s: %w", page.Name, err)
	}

	result := &StyleResult{
		Styles: make([]model.StyleObservation, 0, len(colors)),
	}
	for i, raw := range colors {
		ordinal := i + 1
		observed := style.Normalize(raw)
		white := style.IsOpaqueWhite(observed)
		result.Styles = append(result.Styles, model.StyleObservation{
			Ordinal:         ordinal,
			BackgroundColor: observed,
			White:           white,
		})
		if white {
			continue
		}
		result.Violations = append(result.Violations, model.Violation{
			Kind:     model.KindStyle,
			Page:     page.Name,
			Ordinal:  ordinal,
			Observed: observed,
			Message:  a.printer.Sprintf(locale.MsgNonWhiteBackground, page.Name, ordinal, observed),
		})
	}
	return result, nil
}
