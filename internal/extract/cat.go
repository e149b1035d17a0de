package extract

import "github.com/lu4p/cat"

// extractWithCat reads OpenDocument text and RTF files.
func extractWithCat(path string) (string, error) {
	return cat.File(path)
}
