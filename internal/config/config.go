package config

import (
	"net/url"
	"path/filepath"
	"regexp"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/sitecheck/internal/browser"
	"github.com/nao1215/sitecheck/internal/locale"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "sitecheck"

	// DefaultOutputDir is the build output directory of most static site
	// generators.
	DefaultOutputDir = "dist"

	// DefaultBaseURL is the address of a local preview server.
	DefaultBaseURL = "http://127.0.0.1:4173"

	// DefaultEngine drives a real Chromium through Playwright.
	DefaultEngine = browser.DefaultEngine

	// DefaultTimeout bounds how long a page may take to become ready.
	DefaultTimeout = 60 * time.Second

	// DefaultFetchTimeout bounds a single independent resource fetch.
	DefaultFetchTimeout = 10 * time.Second

	// DefaultWaitUntil is the readiness condition of a page.
	DefaultWaitUntil = string(browser.WaitNetworkIdle)

	// DefaultLocale is the language of violation messages.
	DefaultLocale = locale.DefaultLocale

	// DefaultModuleClass is the class of the containers whose images must
	// have a white background.
	DefaultModuleClass = "module-image"

	// DefaultServeTimeout bounds how long --serve waits for the server.
	DefaultServeTimeout = 120 * time.Second

	// DefaultMaxBodySize limits the body read by a resource fetch.
	DefaultMaxBodySize = 20 * 1024 * 1024 // 20MB
)

// Config holds all configuration options of a run.
// It is populated from defaults, the config file and CLI flags, in that
// order, and passed down explicitly.
type Config struct {
	// OutputDir is the directory holding the built pages.
	OutputDir string

	// BaseURL is the origin pages are loaded from.
	BaseURL string

	// Engine is the browser engine name (playwright, chromedp or static).
	Engine string

	// Timeout bounds how long each page may take to become ready.
	Timeout time.Duration

	// FetchTimeout bounds each independent image fetch.
	FetchTimeout time.Duration

	// WaitUntil is the readiness condition (networkidle, load, domcontentloaded).
	WaitUntil string

	// Locale selects the language of violation messages.
	Locale string

	// ModuleClass is the class of module image containers.
	ModuleClass string

	// ModulePattern overrides the module page file name pattern when set.
	ModulePattern string

	// Headers are sent with every page load and resource fetch.
	Headers map[string]string

	// UserAgent overrides the browser and fetcher User-Agent when set.
	UserAgent string

	// Headful shows the browser window instead of running headless.
	Headful bool

	// InstallBrowsers downloads the Playwright driver and browsers first.
	InstallBrowsers bool

	// Serve starts a static server over OutputDir on the base URL's address.
	Serve bool

	// ServeTimeout bounds how long to wait for that server to answer.
	ServeTimeout time.Duration

	// MaxBodySize is the maximum response body size read per fetch.
	MaxBodySize int64

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the configuration file given with --config.
	ConfigFilePath string

	// Pages holds per-page overrides from the config file.
	Pages map[string]PageConfig

	// JSONReport selects JSON output. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects Markdown output. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the report; stdout when empty.
	ReportFile string

	// DBDir is the directory of the run history database.
	// Defaults to the XDG data directory (~/.local/share/sitecheck on Linux).
	DBDir string

	// SaveToDB stores the run in the history database.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		OutputDir:    DefaultOutputDir,
		BaseURL:      DefaultBaseURL,
		Engine:       DefaultEngine,
		Timeout:      DefaultTimeout,
		FetchTimeout: DefaultFetchTimeout,
		WaitUntil:    DefaultWaitUntil,
		Locale:       DefaultLocale,
		ModuleClass:  DefaultModuleClass,
		ServeTimeout: DefaultServeTimeout,
		MaxBodySize:  DefaultMaxBodySize,
		Headers:      make(map[string]string),
		Pages:        make(map[string]PageConfig),
		DBDir:        XDGDataDir(),
		SaveToDB:     true,
	}
}

// XDGDataDir returns the XDG data directory for sitecheck.
// On Linux: ~/.local/share/sitecheck
// On macOS: ~/Library/Application Support/sitecheck
// On Windows: %LOCALAPPDATA%\sitecheck
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for sitecheck.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for sitecheck.
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found.
func (c *Config) Validate() error {
	if c.OutputDir == "" {
		return ErrNoOutputDir
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidBaseURL
	}

	if !browser.ValidEngine(c.Engine) {
		return ErrUnknownEngine
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.FetchTimeout <= 0 {
		return ErrInvalidFetchTimeout
	}

	if _, err := browser.ParseWaitUntil(c.WaitUntil); err != nil {
		return ErrInvalidWaitUntil
	}

	if c.ModuleClass == "" {
		return ErrInvalidModuleClass
	}

	if c.ModulePattern != "" {
		if _, err := regexp.Compile(c.ModulePattern); err != nil {
			return ErrInvalidModulePattern
		}
	}

	if c.Serve && c.ServeTimeout <= 0 {
		return ErrInvalidServeTimeout
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	for name, page := range c.Pages {
		if page.Timeout < 0 {
			return &PageConfigError{Page: name, Err: ErrInvalidTimeout}
		}
	}

	return nil
}
