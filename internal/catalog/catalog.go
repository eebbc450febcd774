// Package catalog enumerates the publishable pages of a build output directory.
package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/nao1215/sitecheck/internal/model"
)

// DefaultExtension is the recognized page-file extension.
const DefaultExtension = ".html"

// modulePagePattern matches module page names: a literal prefix, a purely
// numeric identifier, then the page extension.
var modulePagePattern = regexp.MustCompile(`^module-\d+\.html$`)

// IsModulePage reports whether name follows the module page naming
// convention (module-<digits>.html).
func IsModulePage(name string) bool {
	return modulePagePattern.MatchString(name)
}

// ModulePredicate compiles a module page pattern into a predicate.
// An empty pattern yields IsModulePage.
func ModulePredicate(pattern string) (func(string) bool, error) {
	if pattern == "" {
		return IsModulePage, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid module page pattern %q: %w", pattern, err)
	}
	return re.MatchString, nil
}

// ListPages returns the names of the regular page files directly inside dir,
// sorted lexicographically. It returns a *model.CatalogError if dir is
// missing, unreadable or contains no page.
func ListPages(dir string) ([]string, error) {
	return New(dir).Pages()
}

// ListModulePages returns the module pages among pages, sorted
// lexicographically whatever the input order.
func ListModulePages(pages []string) []string {
	return filterSorted(pages, IsModulePage)
}

// Catalog lists pages of one output directory.
type Catalog struct {
	// dir is the build output directory.
	dir string

	// extension is the page-file extension, including the dot.
	extension string

	// isModule is the module page predicate.
	isModule func(string) bool
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithExtension sets the recognized page-file extension (e.g. ".htm").
func WithExtension(ext string) Option {
	return func(c *Catalog) {
		if ext == "" {
			return
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.extension = ext
	}
}

// WithModulePredicate replaces the module page predicate.
func WithModulePredicate(isModule func(string) bool) Option {
	return func(c *Catalog) {
		if isModule != nil {
			c.isModule = isModule
		}
	}
}

// New creates a Catalog for dir.
func New(dir string, opts ...Option) *Catalog {
	c := &Catalog{
		dir:       dir,
		extension: DefaultExtension,
		isModule:  IsModulePage,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dir returns the output directory of the catalog.
func (c *Catalog) Dir() string {
	return c.dir
}

// IsModulePage applies the catalog's module predicate.
func (c *Catalog) IsModulePage(name string) bool {
	return c.isModule(name)
}

// Pages reads the flat contents of the output directory and returns the
// regular files with the page extension in lexicographic order.
// Symbolic links are followed; subdirectories are not descended into.
func (c *Catalog) Pages() ([]string, error) {
	info, err := os.Stat(c.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &model.CatalogError{Dir: c.dir, Err: model.ErrOutputDirMissing}
		}
		return nil, &model.CatalogError{Dir: c.dir, Err: fmt.Errorf("%w: %w", model.ErrOutputDirUnreadable, err)}
	}
	if !info.IsDir() {
		return nil, &model.CatalogError{Dir: c.dir, Err: fmt.Errorf("%w: not a directory", model.ErrOutputDirUnreadable)}
	}

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, &model.CatalogError{Dir: c.dir, Err: fmt.Errorf("%w: %w", model.ErrOutputDirUnreadable, err)}
	}

	pages := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), c.extension) {
			continue
		}
		if !c.isRegular(entry) {
			continue
		}
		pages = append(pages, entry.Name())
	}

	if len(pages) == 0 {
		return nil, &model.CatalogError{Dir: c.dir, Err: model.ErrNoPages}
	}

	slices.Sort(pages)
	return slices.Compact(pages), nil
}

// ModulePages returns the module subset of pages using the catalog predicate.
func (c *Catalog) ModulePages(pages []string) []string {
	return filterSorted(pages, c.isModule)
}

// isRegular reports whether entry is a regular file, resolving symlinks.
func (c *Catalog) isRegular(entry fs.DirEntry) bool {
	if entry.Type().IsRegular() {
		return true
	}
	if entry.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(filepath.Join(c.dir, entry.Name()))
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// filterSorted keeps the names accepted by keep, sorted and deduplicated.
func filterSorted(names []string, keep func(string) bool) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		if keep(name) {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
