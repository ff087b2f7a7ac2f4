package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nmoret/inventario/internal/model"
)

// GetItem returns a non-deleted item by ID, or nil if absent.
func GetItem(ctx context.Context, q DBTX, id int64) (*model.Item, error) {
	return getItem(ctx, q, id, false)
}

// GetItemAnyState returns an item by ID regardless of soft-delete state.
// The purge path needs to reach soft-deleted items.
func GetItemAnyState(ctx context.Context, q DBTX, id int64) (*model.Item, error) {
	return getItem(ctx, q, id, true)
}

func getItem(ctx context.Context, q DBTX, id int64, includeDeleted bool) (*model.Item, error) {
	query := `SELECT id, code, name, description, category_id, brand_id, model, serial_number,
	                 location, department, status, quantity, unit_price, registered_at,
	                 created_at, updated_at, deleted_at
	          FROM items WHERE id = ?`
	if !includeDeleted {
		query += ` AND deleted_at IS NULL`
	}

	item, err := scanItem(q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// rowScanner lets scanItem work for both QueryRow and Query results.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*model.Item, error) {
	item := &model.Item{}
	var description, mdl, serial, location, department, price, registered sql.NullString
	var categoryID, brandID sql.NullInt64
	err := row.Scan(&item.ID, &item.Code, &item.Name, &description, &categoryID, &brandID,
		&mdl, &serial, &location, &department, &item.Status, &item.Quantity,
		&price, &registered, &item.CreatedAt, &item.UpdatedAt, &item.DeletedAt)
	if err != nil {
		return nil, err
	}
	item.Description = description.String
	item.Model = mdl.String
	item.SerialNumber = serial.String
	item.Location = location.String
	item.Department = department.String
	item.RegisteredAt = registered.String
	if categoryID.Valid {
		item.CategoryID = &categoryID.Int64
	}
	if brandID.Valid {
		item.BrandID = &brandID.Int64
	}
	if price.Valid {
		item.UnitPrice = &price.String
	}
	return item, nil
}

// FindItemIDByCode returns the ID of any item using the given code,
// excluding excludeID (so an update doesn't conflict with its own row).
// Returns 0 when the code is free. Soft-deleted items count: the code
// names the item's image directory, and a soft-deleted item still owns
// its files until purged.
func FindItemIDByCode(ctx context.Context, q DBTX, code string, excludeID int64) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx,
		`SELECT id FROM items WHERE code = ? AND id <> ? LIMIT 1`,
		code, excludeID,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("checking code uniqueness: %w", err)
	}
	return id, nil
}

// InsertItem inserts a new item row and returns the generated ID.
func InsertItem(ctx context.Context, q DBTX, item *model.Item) (int64, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO items
		   (code, name, description, category_id, brand_id, model, serial_number,
		    location, department, status, quantity, unit_price, registered_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.Code, item.Name, nullable(item.Description), item.CategoryID, item.BrandID,
		nullable(item.Model), nullable(item.SerialNumber), nullable(item.Location),
		nullable(item.Department), item.Status, item.Quantity, item.UnitPrice,
		nullable(item.RegisteredAt),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting item id: %w", err)
	}
	return id, nil
}

// UpdateItem updates all mutable fields of an item row and refreshes
// updated_at.
func UpdateItem(ctx context.Context, q DBTX, id int64, item *model.Item) error {
	_, err := q.ExecContext(ctx,
		`UPDATE items SET
		   code = ?, name = ?, description = ?, category_id = ?, brand_id = ?,
		   model = ?, serial_number = ?, location = ?, department = ?,
		   status = ?, quantity = ?, unit_price = ?, registered_at = ?,
		   updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		item.Code, item.Name, nullable(item.Description), item.CategoryID, item.BrandID,
		nullable(item.Model), nullable(item.SerialNumber), nullable(item.Location),
		nullable(item.Department), item.Status, item.Quantity, item.UnitPrice,
		nullable(item.RegisteredAt), id,
	)
	if err != nil {
		return fmt.Errorf("updating item: %w", err)
	}
	return nil
}

// SoftDeleteItem marks an item invisible to normal reads.
func SoftDeleteItem(ctx context.Context, q DBTX, id int64) error {
	_, err := q.ExecContext(ctx,
		`UPDATE items SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("soft-deleting item: %w", err)
	}
	return nil
}

// HardDeleteItem removes an item row permanently, returning the number of
// rows affected so the caller can detect a concurrent removal.
func HardDeleteItem(ctx context.Context, q DBTX, id int64) (int64, error) {
	result, err := q.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("deleting item: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting affected rows: %w", err)
	}
	return n, nil
}

// ItemSummary is one row of the inventory listing.
type ItemSummary struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Category  string    `json:"category,omitempty"`
	Location  string    `json:"location,omitempty"`
	Quantity  int       `json:"quantity"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
	CoverPath string    `json:"cover_path,omitempty"`
}

// listLimit caps the listing result size.
const listLimit = 200

// ListItems returns non-deleted items newest-change first, optionally
// filtered by a code/name search term, status and category. Each row
// carries the relative path of its cover image (lowest position, then
// lowest id) when one exists.
func ListItems(ctx context.Context, q DBTX, search, status string, categoryID int64) ([]ItemSummary, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT i.id, i.code, i.name, COALESCE(c.name, ''), COALESCE(i.location, ''),
		        i.quantity, i.status, i.updated_at,
		        COALESCE((SELECT im.relative_path FROM images im
		                  WHERE im.item_id = i.id
		                  ORDER BY im.position ASC, im.id ASC LIMIT 1), '')
		 FROM items i
		 LEFT JOIN categories c ON c.id = i.category_id
		 WHERE i.deleted_at IS NULL
		   AND (? = '' OR i.code LIKE '%' || ? || '%' OR i.name LIKE '%' || ? || '%')
		   AND (? = '' OR i.status = ?)
		   AND (? = 0 OR i.category_id = ?)
		 ORDER BY i.updated_at DESC, i.id DESC
		 LIMIT ?`,
		search, search, search, status, status, categoryID, categoryID, listLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []ItemSummary
	for rows.Next() {
		var it ItemSummary
		if err := rows.Scan(&it.ID, &it.Code, &it.Name, &it.Category, &it.Location,
			&it.Quantity, &it.Status, &it.UpdatedAt, &it.CoverPath); err != nil {
			return nil, fmt.Errorf("scanning item row: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
