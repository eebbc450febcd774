package config

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nao1215/sitecheck/internal/catalog"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".sitecheck"

// xdgConfigFile is the file name looked up in the XDG config directory.
const xdgConfigFile = "config.yaml"

var (
	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrInvalidPageName is returned for a pages: key that is not a page
	// file name of the output directory.
	ErrInvalidPageName = errors.New("invalid page name: must be a file name ending in " + catalog.DefaultExtension)
)

// LoadConfigFile reads a .sitecheck file. Unknown keys are rejected, so a
// misspelled setting fails instead of being ignored, and every pages: key
// must name a page file of the output directory root.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // the path is chosen by the user
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cf); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	if cf.Pages == nil {
		cf.Pages = make(map[string]PageConfig)
	}
	for name := range cf.Pages {
		if err := checkPageName(name); err != nil {
			return nil, &PageConfigError{Page: name, Err: err}
		}
	}

	return &cf, nil
}

// checkPageName accepts bare page file names such as "module-03.html".
func checkPageName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) {
		return ErrInvalidPageName
	}
	if !strings.EqualFold(filepath.Ext(name), catalog.DefaultExtension) {
		return ErrInvalidPageName
	}
	return nil
}

// FindConfigFile returns the configuration file to load, or "" when there
// is none. An explicit configPath wins when it exists. Otherwise the
// lookup order is ./.sitecheck, $XDG_CONFIG_HOME/sitecheck/config.yaml,
// then ~/.sitecheck.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if fileExists(configPath) {
			return configPath
		}
		return ""
	}

	var candidates []string
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, DefaultConfigFile))
	}
	candidates = append(candidates, filepath.Join(XDGConfigDir(), xdgConfigFile))
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, DefaultConfigFile))
	}

	for _, c := range candidates {
		if fileExists(c) {
			return c
		}
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
