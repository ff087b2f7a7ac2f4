package model

// Image is one photo belonging to exactly one item. The image with the
// lowest position (tie-break: lowest id) is the item's cover image.
type Image struct {
	ID               int64  `json:"id"`
	ItemID           int64  `json:"item_id"`
	RelativePath     string `json:"relative_path"`
	OriginalFilename string `json:"original_filename"`
	MIMEType         string `json:"mime_type"`
	SizeBytes        int64  `json:"size_bytes"`
	SHA256Checksum   string `json:"sha256_checksum"`
	Position         int    `json:"position"`
}
