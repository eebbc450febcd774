package browser

import (
	"encoding/json"
	"fmt"
)

// imagesScript collects every img element. The result is a JSON string so
// both drivers decode it the same way.
const imagesScript = `(() => JSON.stringify(
  Array.from(document.querySelectorAll('img')).map((img) => ({
    src: img.getAttribute('src') || '',
    complete: img.complete,
    naturalWidth: img.naturalWidth
  }))
))()`

// backgroundsScript returns a script collecting the computed
// background-color of every element matching selector.
func backgroundsScript(selector string) string {
	quoted, _ := json.Marshal(selector) //nolint:errcheck // a string always marshals
	return fmt.Sprintf(`(() => JSON.stringify(
  Array.from(document.querySelectorAll(%s)).map((el) => window.getComputedStyle(el).backgroundColor)
))()`, quoted)
}

// decodeImages decodes the result of imagesScript.
func decodeImages(raw string) ([]ImageObservation, error) {
	var images []ImageObservation
	if err := json.Unmarshal([]byte(raw), &images); err != nil {
		return nil, fmt.Errorf("failed to decode image observations: %w", err)
	}
	return images, nil
}

// decodeColors decodes the result of backgroundsScript.
func decodeColors(raw string) ([]string, error) {
	var colors []string
	if err := json.Unmarshal([]byte(raw), &colors); err != nil {
		return nil, fmt.Errorf("failed to decode background colors: %w", err)
	}
	return colors, nil
}
