package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/nmoret/inventario/internal/db"
	"github.com/nmoret/inventario/internal/model"
)

func mustInsertImage(t *testing.T, database *sql.DB, itemID int64, pos int, rel string) int64 {
	t.Helper()
	id, err := InsertImage(context.Background(), database, &model.Image{
		ItemID:           itemID,
		RelativePath:     rel,
		OriginalFilename: "orig.jpg",
		MIMEType:         "image/jpeg",
		SizeBytes:        123,
		SHA256Checksum:   "deadbeef",
		Position:         pos,
	})
	if err != nil {
		t.Fatalf("InsertImage: %v", err)
	}
	return id
}

func TestListImagesOrdered(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	itemID := mustInsertItem(t, database, testItem("PC-001", "Laptop"))
	mustInsertImage(t, database, itemID, 2, "items/PC-001/PC-001-02.jpg")
	mustInsertImage(t, database, itemID, 1, "items/PC-001/PC-001-01.jpg")
	mustInsertImage(t, database, itemID, 3, "items/PC-001/PC-001-03.jpg")

	images, err := ListImages(ctx, database, itemID)
	if err != nil {
		t.Fatalf("ListImages: %v", err)
	}
	if len(images) != 3 {
		t.Fatalf("expected 3 images, got %d", len(images))
	}
	for i, img := range images {
		if img.Position != i+1 {
			t.Errorf("expected position %d at index %d, got %d", i+1, i, img.Position)
		}
	}
}

func TestFindImagesScopedToItem(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	itemA := mustInsertItem(t, database, testItem("A-1", "First"))
	itemB := mustInsertItem(t, database, testItem("B-1", "Second"))
	imgA := mustInsertImage(t, database, itemA, 1, "items/A-1/A-1-01.jpg")
	imgB := mustInsertImage(t, database, itemB, 1, "items/B-1/B-1-01.jpg")

	// Asking for both ids in item A's scope must only yield A's image.
	found, err := FindImages(ctx, database, itemA, []int64{imgA, imgB})
	if err != nil {
		t.Fatalf("FindImages: %v", err)
	}
	if len(found) != 1 || found[0].ID != imgA {
		t.Errorf("expected only item A's image, got %v", found)
	}
}

func TestDeleteImagesScopedToItem(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	itemA := mustInsertItem(t, database, testItem("A-1", "First"))
	itemB := mustInsertItem(t, database, testItem("B-1", "Second"))
	imgA := mustInsertImage(t, database, itemA, 1, "items/A-1/A-1-01.jpg")
	imgB := mustInsertImage(t, database, itemB, 1, "items/B-1/B-1-01.jpg")

	// Deleting B's id in A's scope must leave B untouched.
	if err := DeleteImages(ctx, database, itemA, []int64{imgA, imgB}); err != nil {
		t.Fatalf("DeleteImages: %v", err)
	}

	remainingA, _ := ListImages(ctx, database, itemA)
	remainingB, _ := ListImages(ctx, database, itemB)
	if len(remainingA) != 0 {
		t.Errorf("expected item A's image deleted, got %d", len(remainingA))
	}
	if len(remainingB) != 1 {
		t.Errorf("expected item B's image untouched, got %d", len(remainingB))
	}
}

func TestMaxImagePosition(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	itemID := mustInsertItem(t, database, testItem("PC-001", "Laptop"))

	max, err := MaxImagePosition(ctx, database, itemID)
	if err != nil {
		t.Fatalf("MaxImagePosition: %v", err)
	}
	if max != 0 {
		t.Errorf("expected 0 for item without images, got %d", max)
	}

	mustInsertImage(t, database, itemID, 3, "items/PC-001/PC-001-03.jpg")
	max, _ = MaxImagePosition(ctx, database, itemID)
	if max != 3 {
		t.Errorf("expected 3, got %d", max)
	}
}

func TestRewriteImagePaths(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	itemID := mustInsertItem(t, database, testItem("OLD-1", "Renamed"))
	mustInsertImage(t, database, itemID, 1, "items/OLD-1/OLD-1-01.jpg")
	mustInsertImage(t, database, itemID, 2, "items/OLD-1/OLD-1-02.png")

	if err := RewriteImagePaths(ctx, database, itemID, "items/OLD-1/", "items/NEW-1/"); err != nil {
		t.Fatalf("RewriteImagePaths: %v", err)
	}

	images, _ := ListImages(ctx, database, itemID)
	if images[0].RelativePath != "items/NEW-1/OLD-1-01.jpg" {
		t.Errorf("expected rewritten prefix, got %q", images[0].RelativePath)
	}
}

func TestGetCoverImage(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	itemID := mustInsertItem(t, database, testItem("PC-001", "Laptop"))

	cover, err := GetCoverImage(ctx, database, itemID)
	if err != nil {
		t.Fatalf("GetCoverImage: %v", err)
	}
	if cover != nil {
		t.Error("expected nil cover for item without images")
	}

	mustInsertImage(t, database, itemID, 2, "items/PC-001/PC-001-02.jpg")
	first := mustInsertImage(t, database, itemID, 1, "items/PC-001/PC-001-01.jpg")

	cover, _ = GetCoverImage(ctx, database, itemID)
	if cover == nil || cover.ID != first {
		t.Errorf("expected lowest-position image as cover, got %v", cover)
	}
}
