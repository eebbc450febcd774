package model

// Kind identifies the class of a violation.
// The string values are stable: they are stored in the history database and
// used as keys when comparing runs.
type Kind string

const (
	// KindCatalog marks problems with the set of pages itself,
	// such as a site without any module page.
	KindCatalog Kind = "catalog"

	// KindLoadTimeout marks a page that did not become ready in time.
	// The remaining checks of that page are skipped.
	KindLoadTimeout Kind = "load_timeout"

	// KindImageLoad marks an image the browser did not finish loading
	// or that has a zero natural width.
	KindImageLoad Kind = "image_load"

	// KindResourceUnreachable marks an image source that failed an
	// independent HTTP fetch.
	KindResourceUnreachable Kind = "resource_unreachable"

	// KindStyle marks a module image rendered without an opaque white background.
	KindStyle Kind = "style"
)

// Kinds lists every kind in report order.
var Kinds = []Kind{
	KindCatalog,
	KindLoadTimeout,
	KindImageLoad,
	KindResourceUnreachable,
	KindStyle,
}

// String returns the kind identifier.
func (k Kind) String() string {
	return string(k)
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// KindInfo contains display metadata about a violation kind.
type KindInfo struct {
	Title          string
	Impact         string
	Recommendation string
}

// kindInfoMapping holds the display metadata shown in reports.
var kindInfoMapping = map[Kind]KindInfo{
	KindCatalog: {
		Title:          "Catalog problem",
		Impact:         "The published page set does not match the expected layout, so part of the audit could not run.",
		Recommendation: "Check the build output directory and the module page naming (module-<digits>.html).",
	},
	KindLoadTimeout: {
		Title:          "Page not ready",
		Impact:         "The page never reached network idle, so none of its images could be verified.",
		Recommendation: "Make sure the server is running and the page does not keep long-lived requests open.",
	},
	KindImageLoad: {
		Title:          "Broken image",
		Impact:         "The browser could not render the image; visitors see an empty box or alt text.",
		Recommendation: "Verify the image path and file format in the build output.",
	},
	KindResourceUnreachable: {
		Title:          "Unreachable image resource",
		Impact:         "A fresh request for the image fails, so it only works from cache or not at all.",
		Recommendation: "Publish the referenced file or fix the src attribute.",
	},
	KindStyle: {
		Title:          "Module image without white background",
		Impact:         "Transparent regions of the image show the page background through.",
		Recommendation: "Give `.module-image img` an explicit opaque white background.",
	},
}

// Info returns display metadata for the kind.
// Unknown kinds get a generic entry.
func (k Kind) Info() KindInfo {
	if info, ok := kindInfoMapping[k]; ok {
		return info
	}
	return KindInfo{Title: string(k)}
}
