package check

import (
	"log/slog"

	"github.com/nao1215/sitecheck/internal/browser"
	"github.com/nao1215/sitecheck/internal/catalog"
)

// DefaultModuleClass is the class of module image containers.
const DefaultModuleClass = "module-image"

// LoadedPage is a page whose session has completed navigation.
type LoadedPage struct {
	// Name is the page file name, e.g. "module-1.html".
	Name string

	// Session is the browser session showing the page.
	Session browser.Session

	// Headers are the page's own request headers, sent with every
	// reachability fetch of its images.
	Headers map[string]string
}

// settings holds the options shared by the checkers.
type settings struct {
	logger      *slog.Logger
	moduleClass string
	isModule    func(string) bool
}

// Option configures a checker.
type Option func(*settings)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithModuleClass sets the class of module image containers.
func WithModuleClass(class string) Option {
	return func(s *settings) {
		if class != "" {
			s.moduleClass = class
		}
	}
}

// WithModulePredicate replaces catalog.IsModulePage.
func WithModulePredicate(isModule func(string) bool) Option {
	return func(s *settings) {
		if isModule != nil {
			s.isModule = isModule
		}
	}
}

func newSettings(opts []Option) settings {
	s := settings{
		logger:      slog.Default(),
		moduleClass: DefaultModuleClass,
		isModule:    catalog.IsModulePage,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}
