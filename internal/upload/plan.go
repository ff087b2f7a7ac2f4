package upload

import (
	"fmt"
	"path"
	"path/filepath"
)

// Planned describes where one accepted upload will live on disk and in the
// database.
type Planned struct {
	Position     int
	RelativePath string
	AbsolutePath string
}

// ExtensionFor maps a sniffed MIME type to a safe file extension. The
// declared filename's extension is never trusted.
func ExtensionFor(mime string) string {
	switch mime {
	case "image/jpeg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	default:
		return "bin"
	}
}

// ItemDir returns the absolute image directory for an item code.
func ItemDir(uploadsRoot, code string) string {
	return filepath.Join(uploadsRoot, "items", code)
}

// Plan computes, for each upload in submission order, its position and the
// relative and absolute paths of filename {CODE}-{NN}.{ext}. Positions start
// at startPos and increase by one per upload; as long as positions are never
// reused, filenames cannot collide.
func Plan(uploadsRoot, code string, startPos int, uploads []Upload) []Planned {
	planned := make([]Planned, 0, len(uploads))
	pos := startPos
	for _, up := range uploads {
		basename := fmt.Sprintf("%s-%02d.%s", code, pos, ExtensionFor(up.MIME))
		planned = append(planned, Planned{
			Position:     pos,
			RelativePath: path.Join("items", code, basename),
			AbsolutePath: filepath.Join(ItemDir(uploadsRoot, code), basename),
		})
		pos++
	}
	return planned
}
