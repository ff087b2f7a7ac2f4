package inventory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmoret/inventario/internal/db"
	"github.com/nmoret/inventario/internal/form"
	"github.com/nmoret/inventario/internal/model"
	"github.com/nmoret/inventario/internal/store"
	"github.com/nmoret/inventario/internal/upload"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return &Service{
		DB:          db.NewTestDB(t),
		UploadsRoot: t.TempDir(),
	}
}

func testDraft(t *testing.T, code, name string) *form.Draft {
	t.Helper()
	d, errs := form.ParseDraft(url.Values{
		"code":   {code},
		"name":   {name},
		"status": {model.StatusOperational},
	})
	require.Empty(t, errs)
	return d
}

// testUpload fakes an already-spooled accepted upload.
func testUpload(t *testing.T, name, mime, content string) upload.Upload {
	t.Helper()
	tempPath := filepath.Join(t.TempDir(), "spooled.upload")
	require.NoError(t, os.WriteFile(tempPath, []byte(content), 0o644))
	return upload.Upload{
		TempPath:     tempPath,
		OriginalName: name,
		MIME:         mime,
		Size:         int64(len(content)),
	}
}

func TestCreateEndToEnd(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	content := "jpeg bytes"
	id, err := s.Create(ctx, testDraft(t, "PC-001", "Laptop"),
		[]upload.Upload{testUpload(t, "photo.jpg", "image/jpeg", content)})
	require.NoError(t, err)

	item, err := store.GetItem(ctx, s.DB, id)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "PC-001", item.Code)

	images, err := store.ListImages(ctx, s.DB, id)
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, "items/PC-001/PC-001-01.jpg", images[0].RelativePath)
	assert.Equal(t, 1, images[0].Position)
	assert.Equal(t, "photo.jpg", images[0].OriginalFilename)

	abs := filepath.Join(s.UploadsRoot, "items", "PC-001", "PC-001-01.jpg")
	data, err := os.ReadFile(abs)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))

	sum := sha256.Sum256(data)
	assert.Equal(t, hex.EncodeToString(sum[:]), images[0].SHA256Checksum)
}

func TestCreateDuplicateCodeMakesNoChange(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.Create(ctx, testDraft(t, "PC-001", "Laptop"), nil)
	require.NoError(t, err)

	_, err = s.Create(ctx, testDraft(t, "PC-001", "Another laptop"),
		[]upload.Upload{testUpload(t, "p.jpg", "image/jpeg", "x")})

	var codeErr *CodeInUseError
	require.ErrorAs(t, err, &codeErr)
	assert.Equal(t, "PC-001", codeErr.Code)

	// Exactly the first item exists, and no stray files were written.
	items, _ := store.ListItems(ctx, s.DB, "", "", 0)
	require.Len(t, items, 1)
	assert.Equal(t, "Laptop", items[0].Name)
	assert.NoFileExists(t, filepath.Join(s.UploadsRoot, "items", "PC-001", "PC-001-01.jpg"))
}

func TestCreateRejectsSoftDeletedItemCode(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	id, err := s.Create(ctx, testDraft(t, "PC-1", "Old laptop"),
		[]upload.Upload{testUpload(t, "old.jpg", "image/jpeg", "old bytes")})
	require.NoError(t, err)
	require.NoError(t, store.SoftDeleteItem(ctx, s.DB, id))

	// The soft-deleted item still owns items/PC-1/; a new item with the
	// same code would write into it and clobber PC-1-01.jpg.
	_, err = s.Create(ctx, testDraft(t, "PC-1", "New laptop"),
		[]upload.Upload{testUpload(t, "new.jpg", "image/jpeg", "new bytes")})
	var codeErr *CodeInUseError
	require.ErrorAs(t, err, &codeErr)

	stored := filepath.Join(s.UploadsRoot, "items", "PC-1", "PC-1-01.jpg")
	data, err := os.ReadFile(stored)
	require.NoError(t, err)
	assert.Equal(t, "old bytes", string(data))

	// Purging the soft-deleted item releases the code.
	require.NoError(t, s.Purge(ctx, id, true))
	newID, err := s.Create(ctx, testDraft(t, "PC-1", "New laptop"),
		[]upload.Upload{testUpload(t, "new.jpg", "image/jpeg", "new bytes")})
	require.NoError(t, err)

	images, err := store.ListImages(ctx, s.DB, newID)
	require.NoError(t, err)
	require.Len(t, images, 1)
	data, err = os.ReadFile(stored)
	require.NoError(t, err)
	assert.Equal(t, "new bytes", string(data))
}

func TestCreateAtomicityOnMoveFailure(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	// A vanished temp file makes the move fail mid-operation.
	bad := upload.Upload{TempPath: filepath.Join(t.TempDir(), "gone.upload"), OriginalName: "gone.jpg", MIME: "image/jpeg", Size: 5}

	_, err := s.Create(ctx, testDraft(t, "PC-001", "Laptop"), []upload.Upload{bad})
	require.Error(t, err)

	// The transaction rolled back: no item row exists for that code.
	conflict, err := store.FindItemIDByCode(ctx, s.DB, "PC-001", 0)
	require.NoError(t, err)
	assert.Zero(t, conflict)
}

func TestUpdateCodeChangeRenamesDirAndRewritesPaths(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	id, err := s.Create(ctx, testDraft(t, "A-1", "Scanner"), []upload.Upload{
		testUpload(t, "one.jpg", "image/jpeg", "first"),
		testUpload(t, "two.png", "image/png", "second"),
	})
	require.NoError(t, err)

	res, err := s.Update(ctx, id, testDraft(t, "B-2", "Scanner"), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "B-2", res.Item.Code)
	require.Len(t, res.Images, 2)
	for _, img := range res.Images {
		assert.Contains(t, img.RelativePath, "items/B-2/")
		abs, err := upload.Resolve(s.UploadsRoot, img.RelativePath)
		require.NoError(t, err)
		assert.FileExists(t, abs)
	}
	assert.NoDirExists(t, filepath.Join(s.UploadsRoot, "items", "A-1"))
}

func TestUpdateCodeConflictAborts(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.Create(ctx, testDraft(t, "A-1", "First"), nil)
	require.NoError(t, err)
	id, err := s.Create(ctx, testDraft(t, "B-2", "Second"), nil)
	require.NoError(t, err)

	_, err = s.Update(ctx, id, testDraft(t, "A-1", "Second renamed"), nil, nil)

	var codeErr *CodeInUseError
	require.ErrorAs(t, err, &codeErr)

	item, _ := store.GetItem(ctx, s.DB, id)
	assert.Equal(t, "B-2", item.Code)
	assert.Equal(t, "Second", item.Name)
}

func TestUpdatePositionMonotonicity(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	id, err := s.Create(ctx, testDraft(t, "CAM-1", "Camera"), []upload.Upload{
		testUpload(t, "a.jpg", "image/jpeg", "a"),
		testUpload(t, "b.jpg", "image/jpeg", "b"),
		testUpload(t, "c.jpg", "image/jpeg", "c"),
	})
	require.NoError(t, err)

	res, err := s.Update(ctx, id, testDraft(t, "CAM-1", "Camera"), []upload.Upload{
		testUpload(t, "d.jpg", "image/jpeg", "d"),
		testUpload(t, "e.png", "image/png", "e"),
	}, nil)
	require.NoError(t, err)

	require.Len(t, res.Images, 5)
	assert.Equal(t, 4, res.Images[3].Position)
	assert.Equal(t, "d.jpg", res.Images[3].OriginalFilename)
	assert.Equal(t, 5, res.Images[4].Position)
	assert.Equal(t, "items/CAM-1/CAM-1-05.png", res.Images[4].RelativePath)
}

func TestUpdateSelectiveDelete(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	id, err := s.Create(ctx, testDraft(t, "PC-9", "Tower"), []upload.Upload{
		testUpload(t, "a.jpg", "image/jpeg", "a"),
		testUpload(t, "b.jpg", "image/jpeg", "b"),
		testUpload(t, "c.jpg", "image/jpeg", "c"),
	})
	require.NoError(t, err)

	images, err := store.ListImages(ctx, s.DB, id)
	require.NoError(t, err)
	require.Len(t, images, 3)

	res, err := s.Update(ctx, id, testDraft(t, "PC-9", "Tower"), nil,
		[]int64{images[0].ID, images[2].ID})
	require.NoError(t, err)

	require.Len(t, res.Images, 1)
	assert.Equal(t, images[1].ID, res.Images[0].ID)

	keptAbs, _ := upload.Resolve(s.UploadsRoot, images[1].RelativePath)
	assert.FileExists(t, keptAbs)
	for _, removed := range []model.Image{images[0], images[2]} {
		abs, _ := upload.Resolve(s.UploadsRoot, removed.RelativePath)
		assert.NoFileExists(t, abs)
	}
}

func TestUpdateCrossItemDeleteGuard(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	idA, err := s.Create(ctx, testDraft(t, "A-1", "First"),
		[]upload.Upload{testUpload(t, "a.jpg", "image/jpeg", "a")})
	require.NoError(t, err)
	idB, err := s.Create(ctx, testDraft(t, "B-1", "Second"),
		[]upload.Upload{testUpload(t, "b.jpg", "image/jpeg", "b")})
	require.NoError(t, err)

	imagesB, err := store.ListImages(ctx, s.DB, idB)
	require.NoError(t, err)

	// Editing item A while naming B's image id must not touch B.
	_, err = s.Update(ctx, idA, testDraft(t, "A-1", "First"), nil, []int64{imagesB[0].ID})
	require.NoError(t, err)

	remaining, _ := store.ListImages(ctx, s.DB, idB)
	require.Len(t, remaining, 1)
	abs, _ := upload.Resolve(s.UploadsRoot, remaining[0].RelativePath)
	assert.FileExists(t, abs)
}

func TestUpdateMissingFileTolerated(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	id, err := s.Create(ctx, testDraft(t, "PC-1", "Laptop"),
		[]upload.Upload{testUpload(t, "a.jpg", "image/jpeg", "a")})
	require.NoError(t, err)

	images, _ := store.ListImages(ctx, s.DB, id)
	abs, _ := upload.Resolve(s.UploadsRoot, images[0].RelativePath)
	require.NoError(t, os.Remove(abs))

	res, err := s.Update(ctx, id, testDraft(t, "PC-1", "Laptop"), nil, []int64{images[0].ID})
	require.NoError(t, err)
	assert.Empty(t, res.Images)
}

func TestUpdateNotFound(t *testing.T) {
	s := newTestService(t)

	_, err := s.Update(context.Background(), 42, testDraft(t, "X-1", "Ghost"), nil, nil)
	assert.ErrorIs(t, err, ErrNotFound)

	id, err := s.Create(context.Background(), testDraft(t, "X-1", "Soft"), nil)
	require.NoError(t, err)
	require.NoError(t, store.SoftDeleteItem(context.Background(), s.DB, id))

	_, err = s.Update(context.Background(), id, testDraft(t, "X-1", "Soft"), nil, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPurgeRemovesEverything(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	id, err := s.Create(ctx, testDraft(t, "PC-1", "Laptop"), []upload.Upload{
		testUpload(t, "a.jpg", "image/jpeg", "a"),
		testUpload(t, "b.jpg", "image/jpeg", "b"),
	})
	require.NoError(t, err)

	require.NoError(t, s.Purge(ctx, id, true))

	item, _ := store.GetItemAnyState(ctx, s.DB, id)
	assert.Nil(t, item)
	images, _ := store.ListImages(ctx, s.DB, id)
	assert.Empty(t, images)
	assert.NoDirExists(t, filepath.Join(s.UploadsRoot, "items", "PC-1"))
}

func TestPurgeSoftDeletedItem(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	id, err := s.Create(ctx, testDraft(t, "PC-1", "Laptop"), nil)
	require.NoError(t, err)
	require.NoError(t, store.SoftDeleteItem(ctx, s.DB, id))

	require.NoError(t, s.Purge(ctx, id, true))

	item, _ := store.GetItemAnyState(ctx, s.DB, id)
	assert.Nil(t, item)
}

func TestPurgeRequiresConfirmation(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	id, err := s.Create(ctx, testDraft(t, "PC-1", "Laptop"), nil)
	require.NoError(t, err)

	err = s.Purge(ctx, id, false)
	assert.ErrorIs(t, err, ErrNotConfirmed)

	item, _ := store.GetItem(ctx, s.DB, id)
	assert.NotNil(t, item)
}

func TestPurgePathTraversalBlocksDatabaseDeletion(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	id, err := s.Create(ctx, testDraft(t, "EVIL-1", "Crafted"), nil)
	require.NoError(t, err)

	outside := filepath.Join(filepath.Dir(s.UploadsRoot), "victim.jpg")
	require.NoError(t, os.WriteFile(outside, []byte("do not touch"), 0o644))
	t.Cleanup(func() { os.Remove(outside) })

	_, err = store.InsertImage(ctx, s.DB, &model.Image{
		ItemID:           id,
		RelativePath:     "../" + filepath.Base(outside),
		OriginalFilename: "victim.jpg",
		MIMEType:         "image/jpeg",
		SizeBytes:        12,
		SHA256Checksum:   "x",
		Position:         1,
	})
	require.NoError(t, err)

	err = s.Purge(ctx, id, true)
	var blocked *PurgeBlockedError
	require.ErrorAs(t, err, &blocked)
	require.Len(t, blocked.Problems, 1)

	// The out-of-root file was not touched and the item row survived.
	assert.FileExists(t, outside)
	item, _ := store.GetItemAnyState(ctx, s.DB, id)
	assert.NotNil(t, item)
}

func TestCreateMergesIntoLeftoverDirectory(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	// A leftover directory from a purged item with the same code.
	leftover := filepath.Join(s.UploadsRoot, "items", "PC-1")
	require.NoError(t, upload.EnsureDir(leftover))

	_, err := s.Create(ctx, testDraft(t, "PC-1", "Laptop"),
		[]upload.Upload{testUpload(t, "a.jpg", "image/jpeg", "a")})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(leftover, "PC-1-01.jpg"))
}
