package config

import "time"

// PageConfig holds overrides for a single page.
type PageConfig struct {
	// Headers are added to the global headers for this page.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Timeout replaces the global page timeout when positive.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// File represents the structure of the .sitecheck configuration file.
// Zero values leave the corresponding default untouched.
type File struct {
	OutputDir     string            `yaml:"outputDir,omitempty"`
	BaseURL       string            `yaml:"baseURL,omitempty"`
	Engine        string            `yaml:"engine,omitempty"`
	Timeout       time.Duration     `yaml:"timeout,omitempty"`
	FetchTimeout  time.Duration     `yaml:"fetchTimeout,omitempty"`
	WaitUntil     string            `yaml:"waitUntil,omitempty"`
	Locale        string            `yaml:"locale,omitempty"`
	ModuleClass   string            `yaml:"moduleClass,omitempty"`
	ModulePattern string            `yaml:"modulePattern,omitempty"`
	UserAgent     string            `yaml:"userAgent,omitempty"`
	Headers       map[string]string `yaml:"headers,omitempty"`
	Serve         bool              `yaml:"serve,omitempty"`
	ServeTimeout  time.Duration     `yaml:"serveTimeout,omitempty"`

	// Pages maps page file names (e.g. "module-03.html") to overrides.
	Pages map[string]PageConfig `yaml:"pages,omitempty"`
}

// Apply copies the values set in the file onto cfg.
func (cf *File) Apply(cfg *Config) {
	if cf == nil {
		return
	}
	setString(&cfg.OutputDir, cf.OutputDir)
	setString(&cfg.BaseURL, cf.BaseURL)
	setString(&cfg.Engine, cf.Engine)
	setString(&cfg.WaitUntil, cf.WaitUntil)
	setString(&cfg.Locale, cf.Locale)
	setString(&cfg.ModuleClass, cf.ModuleClass)
	setString(&cfg.ModulePattern, cf.ModulePattern)
	setString(&cfg.UserAgent, cf.UserAgent)
	setDuration(&cfg.Timeout, cf.Timeout)
	setDuration(&cfg.FetchTimeout, cf.FetchTimeout)
	setDuration(&cfg.ServeTimeout, cf.ServeTimeout)
	if cf.Serve {
		cfg.Serve = true
	}

	if len(cf.Headers) > 0 {
		if cfg.Headers == nil {
			cfg.Headers = make(map[string]string, len(cf.Headers))
		}
		for k, v := range cf.Headers {
			cfg.Headers[k] = v
		}
	}
	if len(cf.Pages) > 0 {
		if cfg.Pages == nil {
			cfg.Pages = make(map[string]PageConfig, len(cf.Pages))
		}
		for name, page := range cf.Pages {
			cfg.Pages[name] = page
		}
	}
}

// PageConfig returns the overrides for a page merged over the global
// headers. Page headers win on conflict.
func (c *Config) PageConfig(name string) PageConfig {
	page := c.Pages[name]
	merged := PageConfig{
		Headers: make(map[string]string, len(c.Headers)+len(page.Headers)),
		Timeout: page.Timeout,
	}
	for k, v := range c.Headers {
		merged.Headers[k] = v
	}
	for k, v := range page.Headers {
		merged.Headers[k] = v
	}
	return merged
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}
