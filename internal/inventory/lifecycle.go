// Package inventory coordinates the item lifecycle: every operation keeps
// the items table, its image rows and the on-disk upload tree consistent,
// or fails as a whole.
package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nmoret/inventario/internal/form"
	"github.com/nmoret/inventario/internal/model"
	"github.com/nmoret/inventario/internal/store"
	"github.com/nmoret/inventario/internal/upload"
)

var (
	// ErrNotFound means the requested item does not exist (or is
	// soft-deleted, for operations that exclude those).
	ErrNotFound = errors.New("item not found")

	// ErrNotConfirmed means a purge was requested without the explicit
	// confirmation flag.
	ErrNotConfirmed = errors.New("purge requires explicit confirmation")

	// ErrConcurrentDelete means a row expected to exist was already gone,
	// signaling a race with another request rather than a bad id.
	ErrConcurrentDelete = errors.New("item was already removed by another request")
)

// CodeInUseError reports a duplicate item code.
type CodeInUseError struct {
	Code string
}

func (e *CodeInUseError) Error() string {
	return fmt.Sprintf("an item with code %q already exists", e.Code)
}

// PurgeBlockedError reports filesystem problems that block a purge. The
// database record is never deleted while files might still exist on disk.
type PurgeBlockedError struct {
	Problems []string
}

func (e *PurgeBlockedError) Error() string {
	return fmt.Sprintf("purge blocked by %d filesystem problem(s)", len(e.Problems))
}

// Service executes item lifecycle operations against one database and one
// uploads directory tree.
type Service struct {
	DB          *sql.DB
	UploadsRoot string
}

// Result is the refreshed state returned by a successful update.
type Result struct {
	Item   *model.Item   `json:"item"`
	Images []model.Image `json:"images"`
}

// Create inserts a new item and its accepted images as one unit. A failed
// file move aborts everything, including the item row: a partially created
// item with missing image files is worse than no item at all.
func (s *Service) Create(ctx context.Context, draft *form.Draft, uploads []upload.Upload) (int64, error) {
	if conflict, err := store.FindItemIDByCode(ctx, s.DB, draft.Code, 0); err != nil {
		return 0, err
	} else if conflict != 0 {
		return 0, &CodeInUseError{Code: draft.Code}
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	id, err := store.InsertItem(ctx, tx, draftToItem(draft))
	if err != nil {
		return 0, err
	}

	if err := s.placeImages(ctx, tx, id, draft.Code, 1, uploads); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing item creation: %w", err)
	}
	return id, nil
}

// Update applies a merged draft to an existing item, renaming its image
// directory on a code change, removing the selected images and adding the
// accepted new ones, all inside one transaction.
func (s *Service) Update(ctx context.Context, id int64, draft *form.Draft, uploads []upload.Upload, deleteImageIDs []int64) (*Result, error) {
	current, err := store.GetItem(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrNotFound
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	codeChanged := draft.Code != current.Code
	if codeChanged {
		if conflict, err := store.FindItemIDByCode(ctx, tx, draft.Code, id); err != nil {
			return nil, err
		} else if conflict != 0 {
			return nil, &CodeInUseError{Code: draft.Code}
		}
	}

	if err := store.UpdateItem(ctx, tx, id, draftToItem(draft)); err != nil {
		return nil, err
	}

	// The directory must be renamed before image paths are rewritten, so a
	// failed rename leaves the rows still pointing at the old directory.
	if codeChanged {
		oldDir := upload.ItemDir(s.UploadsRoot, current.Code)
		newDir := upload.ItemDir(s.UploadsRoot, draft.Code)
		if err := upload.RenameDir(oldDir, newDir); err != nil {
			return nil, err
		}
		oldPrefix := "items/" + current.Code + "/"
		newPrefix := "items/" + draft.Code + "/"
		if err := store.RewriteImagePaths(ctx, tx, id, oldPrefix, newPrefix); err != nil {
			return nil, err
		}
	}

	if len(deleteImageIDs) > 0 {
		if err := s.removeImages(ctx, tx, id, deleteImageIDs); err != nil {
			return nil, err
		}
	}

	if len(uploads) > 0 {
		maxPos, err := store.MaxImagePosition(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		if err := s.placeImages(ctx, tx, id, draft.Code, maxPos+1, uploads); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing item update: %w", err)
	}

	item, err := store.GetItem(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	images, err := store.ListImages(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	return &Result{Item: item, Images: images}, nil
}

// Purge permanently destroys an item, its image rows and their files.
// Files are removed first; any filesystem failure or path-safety rejection
// blocks the database deletion entirely, so a record never disappears while
// orphaned files might remain.
func (s *Service) Purge(ctx context.Context, id int64, confirmed bool) error {
	if !confirmed {
		return ErrNotConfirmed
	}

	// Soft-deleted items are still purgeable.
	item, err := store.GetItemAnyState(ctx, s.DB, id)
	if err != nil {
		return err
	}
	if item == nil {
		return ErrNotFound
	}

	images, err := store.ListImages(ctx, s.DB, id)
	if err != nil {
		return err
	}

	var problems []string
	for _, img := range images {
		abs, err := upload.Resolve(s.UploadsRoot, img.RelativePath)
		if err != nil {
			// A stored path escaping the root is never touched.
			problems = append(problems, fmt.Sprintf("unsafe path: %s", img.RelativePath))
			continue
		}
		if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
			problems = append(problems, fmt.Sprintf("could not delete file: %s", img.RelativePath))
		}
	}

	itemDir := upload.ItemDir(s.UploadsRoot, item.Code)
	upload.RemoveDirIfEmpty(itemDir)
	upload.RemoveDirIfEmpty(filepath.Dir(itemDir))

	if len(problems) > 0 {
		return &PurgeBlockedError{Problems: problems}
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := store.DeleteItemImages(ctx, tx, id); err != nil {
		return err
	}
	affected, err := store.HardDeleteItem(ctx, tx, id)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrConcurrentDelete
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing purge: %w", err)
	}

	slog.Info("item purged", "id", id, "code", item.Code, "images", len(images))
	return nil
}

// placeImages moves each accepted upload into the item's directory and
// inserts its row, in submission order. A failed move aborts the operation;
// files moved before the failure stay on disk (the filesystem cannot join
// the transaction) and are logged so the inconsistency is visible.
func (s *Service) placeImages(ctx context.Context, tx store.DBTX, itemID int64, code string, startPos int, uploads []upload.Upload) error {
	if len(uploads) == 0 {
		return nil
	}

	if err := upload.EnsureDir(upload.ItemDir(s.UploadsRoot, code)); err != nil {
		return err
	}

	planned := upload.Plan(s.UploadsRoot, code, startPos, uploads)
	var moved []string

	for i, up := range uploads {
		p := planned[i]
		if err := upload.MoveFile(up.TempPath, p.AbsolutePath); err != nil {
			logResiduals(moved)
			return fmt.Errorf("storing %s: %w", up.OriginalName, err)
		}
		moved = append(moved, p.AbsolutePath)

		checksum, err := upload.ChecksumFile(p.AbsolutePath)
		if err != nil {
			logResiduals(moved)
			return err
		}

		_, err = store.InsertImage(ctx, tx, &model.Image{
			ItemID:           itemID,
			RelativePath:     p.RelativePath,
			OriginalFilename: up.OriginalName,
			MIMEType:         up.MIME,
			SizeBytes:        up.Size,
			SHA256Checksum:   checksum,
			Position:         p.Position,
		})
		if err != nil {
			logResiduals(moved)
			return err
		}
	}

	return nil
}

// removeImages deletes the selected images' files and rows. The lookup is
// scoped to the item, so ids belonging to another item have no effect. A
// missing file is tolerated; other unlink failures are logged but don't
// abort the removal of the row.
func (s *Service) removeImages(ctx context.Context, tx store.DBTX, itemID int64, ids []int64) error {
	images, err := store.FindImages(ctx, tx, itemID, ids)
	if err != nil {
		return err
	}

	for _, img := range images {
		abs, err := upload.Resolve(s.UploadsRoot, img.RelativePath)
		if err != nil {
			return err
		}
		if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
			slog.Warn("could not delete image file", "path", img.RelativePath, "error", err)
		}
	}

	return store.DeleteImages(ctx, tx, itemID, ids)
}

func logResiduals(moved []string) {
	if len(moved) == 0 {
		return
	}
	slog.Warn("operation rolled back with files already moved to disk", "files", moved)
}

func draftToItem(d *form.Draft) *model.Item {
	return &model.Item{
		Code:         d.Code,
		Name:         d.Name,
		Description:  d.Description,
		CategoryID:   d.CategoryID,
		BrandID:      d.BrandID,
		Model:        d.Model,
		SerialNumber: d.SerialNumber,
		Location:     d.Location,
		Department:   d.Department,
		Status:       d.Status,
		Quantity:     d.Quantity,
		UnitPrice:    d.UnitPrice,
		RegisteredAt: d.RegisteredAt,
	}
}
