package sanitizer

import "strings"

// NormalizeImages trims each reference and keeps order, count and content,
// so a bad entry still reaches validation at its original index.
func NormalizeImages(images []string) []string {
	result := make([]string, len(images))
	for i, image := range images {
		result[i] = strings.TrimSpace(image)
	}
	return result
}
