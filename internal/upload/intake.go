package upload

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// MaxFileSize is the per-file upload limit.
const MaxFileSize = 10 << 20 // 10 MiB

// allowedMIME lists the accepted sniffed content types.
var allowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// Upload is one accepted file, spooled to a temp path and ready to be moved
// into an item's image directory.
type Upload struct {
	TempPath     string
	OriginalName string
	MIME         string
	Size         int64
}

// Intake filters a batch of uploaded files. Files are rejected per-file by
// size and by sniffed content type (never by the declared name or declared
// content type); rejections accumulate as messages instead of failing the
// batch. Accepted files are spooled into tempDir under unique names.
func Intake(files []*multipart.FileHeader, tempDir string) ([]Upload, []string) {
	var accepted []Upload
	var errs []string

	for _, fh := range files {
		// An empty optional slot, not an error.
		if fh.Filename == "" && fh.Size == 0 {
			continue
		}

		if fh.Size > MaxFileSize {
			errs = append(errs, fmt.Sprintf("File exceeds 10MB: %s", fh.Filename))
			continue
		}

		up, err := spool(fh, tempDir)
		if err != nil {
			errs = append(errs, fmt.Sprintf("Upload failed: %s", fh.Filename))
			continue
		}
		if !allowedMIME[up.MIME] {
			os.Remove(up.TempPath)
			errs = append(errs, fmt.Sprintf("Type not allowed: %s (detected: %s)", fh.Filename, up.MIME))
			continue
		}

		accepted = append(accepted, up)
	}

	return accepted, errs
}

// spool copies an uploaded part to a uniquely named temp file, sniffing the
// content type from the first bytes on the way through.
func spool(fh *multipart.FileHeader, tempDir string) (Upload, error) {
	src, err := fh.Open()
	if err != nil {
		return Upload{}, fmt.Errorf("opening upload: %w", err)
	}
	defer src.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(src, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return Upload{}, fmt.Errorf("reading upload: %w", err)
	}
	head = head[:n]
	mime := http.DetectContentType(head)

	tempPath := filepath.Join(tempDir, uuid.NewString()+".upload")
	dst, err := os.Create(tempPath)
	if err != nil {
		return Upload{}, fmt.Errorf("creating temp file: %w", err)
	}

	size := int64(n)
	_, err = dst.Write(head)
	if err == nil {
		var rest int64
		rest, err = io.Copy(dst, src)
		size += rest
	}
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tempPath)
		return Upload{}, fmt.Errorf("spooling upload: %w", err)
	}

	return Upload{
		TempPath:     tempPath,
		OriginalName: fh.Filename,
		MIME:         mime,
		Size:         size,
	}, nil
}
