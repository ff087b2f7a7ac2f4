package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/nmoret/inventario/internal/model"
)

// ListImages returns all images of an item ordered by position, then id.
func ListImages(ctx context.Context, q DBTX, itemID int64) ([]model.Image, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, item_id, relative_path, original_filename, mime_type, size_bytes,
		        sha256_checksum, position
		 FROM images WHERE item_id = ?
		 ORDER BY position ASC, id ASC`, itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing images: %w", err)
	}
	defer rows.Close()

	return scanImages(rows)
}

// GetCoverImage returns the item's cover image (lowest position, tie-break
// lowest id), or nil if the item has no images.
func GetCoverImage(ctx context.Context, q DBTX, itemID int64) (*model.Image, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, item_id, relative_path, original_filename, mime_type, size_bytes,
		        sha256_checksum, position
		 FROM images WHERE item_id = ?
		 ORDER BY position ASC, id ASC LIMIT 1`, itemID,
	)

	img := model.Image{}
	err := row.Scan(&img.ID, &img.ItemID, &img.RelativePath, &img.OriginalFilename,
		&img.MIMEType, &img.SizeBytes, &img.SHA256Checksum, &img.Position)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting cover image: %w", err)
	}
	return &img, nil
}

// FindImages returns the images matching ids that belong to itemID. IDs of
// other items' images are silently excluded, which is what prevents
// cross-item deletion by id guessing.
func FindImages(ctx context.Context, q DBTX, itemID int64, ids []int64) ([]model.Image, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(
		`SELECT id, item_id, relative_path, original_filename, mime_type, size_bytes,
		        sha256_checksum, position
		 FROM images WHERE item_id = ? AND id IN (%s)
		 ORDER BY position ASC, id ASC`, placeholders(len(ids)))

	args := make([]any, 0, len(ids)+1)
	args = append(args, itemID)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("finding images: %w", err)
	}
	defer rows.Close()

	return scanImages(rows)
}

// InsertImage inserts one image row and returns its generated ID.
func InsertImage(ctx context.Context, q DBTX, img *model.Image) (int64, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO images
		   (item_id, relative_path, original_filename, mime_type, size_bytes, sha256_checksum, position)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		img.ItemID, img.RelativePath, img.OriginalFilename, img.MIMEType,
		img.SizeBytes, img.SHA256Checksum, img.Position,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting image: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting image id: %w", err)
	}
	return id, nil
}

// DeleteImages removes the image rows matching ids, restricted to itemID.
func DeleteImages(ctx context.Context, q DBTX, itemID int64, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	query := fmt.Sprintf(`DELETE FROM images WHERE item_id = ? AND id IN (%s)`, placeholders(len(ids)))
	args := make([]any, 0, len(ids)+1)
	args = append(args, itemID)
	for _, id := range ids {
		args = append(args, id)
	}

	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting images: %w", err)
	}
	return nil
}

// DeleteItemImages removes every image row of an item.
func DeleteItemImages(ctx context.Context, q DBTX, itemID int64) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM images WHERE item_id = ?`, itemID); err != nil {
		return fmt.Errorf("deleting item images: %w", err)
	}
	return nil
}

// MaxImagePosition returns the highest position among an item's images,
// or 0 when the item has none.
func MaxImagePosition(ctx context.Context, q DBTX, itemID int64) (int, error) {
	var max int
	err := q.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), 0) FROM images WHERE item_id = ?`, itemID,
	).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("getting max image position: %w", err)
	}
	return max, nil
}

// RewriteImagePaths replaces oldPrefix with newPrefix at the start of every
// image path of an item. Used after a code change renames the item's
// directory.
func RewriteImagePaths(ctx context.Context, q DBTX, itemID int64, oldPrefix, newPrefix string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE images SET relative_path = REPLACE(relative_path, ?, ?) WHERE item_id = ?`,
		oldPrefix, newPrefix, itemID,
	)
	if err != nil {
		return fmt.Errorf("rewriting image paths: %w", err)
	}
	return nil
}

func scanImages(rows *sql.Rows) ([]model.Image, error) {
	var images []model.Image
	for rows.Next() {
		var img model.Image
		if err := rows.Scan(&img.ID, &img.ItemID, &img.RelativePath, &img.OriginalFilename,
			&img.MIMEType, &img.SizeBytes, &img.SHA256Checksum, &img.Position); err != nil {
			return nil, fmt.Errorf("scanning image: %w", err)
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
