package api

import (
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/nmoret/inventario/internal/form"
	"github.com/nmoret/inventario/internal/imaging"
	"github.com/nmoret/inventario/internal/inventory"
	"github.com/nmoret/inventario/internal/model"
	"github.com/nmoret/inventario/internal/store"
	"github.com/nmoret/inventario/internal/upload"
)

// maxFormMemory caps the total multipart submission (form fields plus files).
const maxFormMemory = 64 << 20

// ItemsHandler handles item CRUD and image endpoints.
type ItemsHandler struct {
	DB        *sql.DB
	Inventory *inventory.Service
	TempDir   string
}

type itemResponse struct {
	Item   *model.Item   `json:"item"`
	Images []model.Image `json:"images"`
}

// List handles GET /api/items with optional q, status, and category filters.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var categoryID int64
	if v := query.Get("category"); v != "" {
		categoryID, _ = strconv.ParseInt(v, 10, 64)
	}

	items, err := store.ListItems(r.Context(), h.DB, query.Get("q"), query.Get("status"), categoryID)
	if err != nil {
		slog.Error("failed to list items", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	if items == nil {
		items = []store.ItemSummary{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Create handles POST /api/items. The body is a multipart form carrying the
// item fields plus zero or more files under the "images" field.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormMemory)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	draft, errs := form.ParseDraft(r.MultipartForm.Value)
	uploads, uploadErrs := upload.Intake(r.MultipartForm.File["images"], h.TempDir)
	errs = append(errs, uploadErrs...)
	if len(errs) > 0 {
		discardUploads(uploads)
		jsonResponse(w, http.StatusUnprocessableEntity, map[string]any{"errors": errs})
		return
	}

	id, err := h.Inventory.Create(r.Context(), draft, uploads)
	if err != nil {
		h.writeLifecycleError(w, err, "failed to create item")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("item created", "user", claims.Username, "code", draft.Code, "images", len(uploads))
	h.writeItem(w, r, http.StatusCreated, id)
}

// Get handles GET /api/items/{id}, returning the item with its images.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	images, err := store.ListImages(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get item images")
		return
	}
	if images == nil {
		images = []model.Image{}
	}

	jsonResponse(w, http.StatusOK, itemResponse{Item: item, Images: images})
}

// Update handles PUT /api/items/{id}. Fields absent from the multipart form
// keep their stored values; image ids listed under "delete_images" are
// removed and new files under "images" are appended.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxFormMemory)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	current, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	if current == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	draft, errs := form.MergeDraft(r.MultipartForm.Value, current)
	uploads, uploadErrs := upload.Intake(r.MultipartForm.File["images"], h.TempDir)
	errs = append(errs, uploadErrs...)
	if len(errs) > 0 {
		discardUploads(uploads)
		jsonResponse(w, http.StatusUnprocessableEntity, map[string]any{"errors": errs})
		return
	}

	var deleteIDs []int64
	for _, v := range r.MultipartForm.Value["delete_images"] {
		imgID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			discardUploads(uploads)
			jsonError(w, http.StatusBadRequest, "invalid image id in delete_images")
			return
		}
		deleteIDs = append(deleteIDs, imgID)
	}

	res, err := h.Inventory.Update(r.Context(), id, draft, uploads, deleteIDs)
	if err != nil {
		h.writeLifecycleError(w, err, "failed to update item")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("item updated", "user", claims.Username, "code", res.Item.Code,
		"added", len(uploads), "removed", len(deleteIDs))
	jsonResponse(w, http.StatusOK, itemResponse{Item: res.Item, Images: res.Images})
}

// Delete handles DELETE /api/items/{id}. The item is soft-deleted; its rows
// and files survive until an explicit purge.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	if err := store.SoftDeleteItem(r.Context(), h.DB, id); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to delete item")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("item deleted", "user", claims.Username, "code", item.Code)
	jsonMessage(w, http.StatusOK, "item deleted")
}

// Purge handles DELETE /api/items/{id}/purge. Requires confirm=true and
// removes the item, its image rows, and its files permanently.
func (h *ItemsHandler) Purge(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	confirmed := r.URL.Query().Get("confirm") == "true"
	if err := h.Inventory.Purge(r.Context(), id, confirmed); err != nil {
		h.writeLifecycleError(w, err, "failed to purge item")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("item purged", "user", claims.Username, "id", id)
	jsonMessage(w, http.StatusOK, "item purged")
}

// GetCover handles GET /api/items/{id}/cover, serving a JPEG thumbnail of
// the item's first image.
func (h *ItemsHandler) GetCover(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	cover, err := store.GetCoverImage(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get cover image")
		return
	}
	if cover == nil {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}

	abs, err := upload.Resolve(h.Inventory.UploadsRoot, cover.RelativePath)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to resolve image path")
		return
	}

	f, err := os.Open(abs)
	if err != nil {
		jsonError(w, http.StatusNotFound, "image file missing")
		return
	}
	defer f.Close()

	thumb, err := imaging.Thumbnail(f, imaging.ThumbMaxDimension)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to generate thumbnail")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(thumb)
}

// GetImage handles GET /api/items/{id}/images/{imageID}, serving the stored
// file as-is.
func (h *ItemsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}
	imageID, err := strconv.ParseInt(r.PathValue("imageID"), 10, 64)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid image id")
		return
	}

	images, err := store.FindImages(r.Context(), h.DB, itemID, []int64{imageID})
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get image")
		return
	}
	if len(images) == 0 {
		jsonError(w, http.StatusNotFound, "image not found")
		return
	}
	img := images[0]

	abs, err := upload.Resolve(h.Inventory.UploadsRoot, img.RelativePath)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to resolve image path")
		return
	}

	f, err := os.Open(abs)
	if err != nil {
		jsonError(w, http.StatusNotFound, "image file missing")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", img.MIMEType)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	io.Copy(w, f)
}

// writeItem reloads an item with its images and writes it as the response.
func (h *ItemsHandler) writeItem(w http.ResponseWriter, r *http.Request, status int, id int64) {
	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil || item == nil {
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	images, err := store.ListImages(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get item images")
		return
	}
	if images == nil {
		images = []model.Image{}
	}
	jsonResponse(w, status, itemResponse{Item: item, Images: images})
}

// writeLifecycleError maps orchestrator errors to HTTP responses.
func (h *ItemsHandler) writeLifecycleError(w http.ResponseWriter, err error, fallback string) {
	var codeErr *inventory.CodeInUseError
	var blocked *inventory.PurgeBlockedError
	switch {
	case errors.Is(err, inventory.ErrNotFound):
		jsonError(w, http.StatusNotFound, "item not found")
	case errors.Is(err, inventory.ErrNotConfirmed):
		jsonError(w, http.StatusBadRequest, "confirmation required")
	case errors.Is(err, inventory.ErrConcurrentDelete):
		jsonError(w, http.StatusConflict, "item was deleted by another request")
	case errors.As(err, &codeErr):
		jsonError(w, http.StatusConflict, codeErr.Error())
	case errors.As(err, &blocked):
		jsonResponse(w, http.StatusConflict, map[string]any{
			"error":    "purge blocked",
			"problems": blocked.Problems,
		})
	default:
		slog.Error(fallback, "error", err)
		jsonError(w, http.StatusInternalServerError, fallback)
	}
}

// discardUploads deletes spooled temp files for a rejected submission.
func discardUploads(uploads []upload.Upload) {
	for _, u := range uploads {
		os.Remove(u.TempPath)
	}
}
