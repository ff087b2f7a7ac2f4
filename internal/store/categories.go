package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nmoret/inventario/internal/model"
)

// ListCategories returns all categories ordered by name.
func ListCategories(ctx context.Context, q DBTX) ([]model.Category, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, name FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	var categories []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// CreateCategory creates a category, enforcing name uniqueness.
func CreateCategory(ctx context.Context, q DBTX, name string) (*model.Category, error) {
	var existing int64
	err := q.QueryRowContext(ctx, `SELECT id FROM categories WHERE name = ?`, name).Scan(&existing)
	if err == nil {
		return nil, fmt.Errorf("category %q already exists", name)
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("checking category name: %w", err)
	}

	result, err := q.ExecContext(ctx, `INSERT INTO categories (name) VALUES (?)`, name)
	if err != nil {
		return nil, fmt.Errorf("creating category: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting category id: %w", err)
	}
	return &model.Category{ID: id, Name: name}, nil
}

// ListBrands returns all brands ordered by name.
func ListBrands(ctx context.Context, q DBTX) ([]model.Brand, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, name FROM brands ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing brands: %w", err)
	}
	defer rows.Close()

	var brands []model.Brand
	for rows.Next() {
		var b model.Brand
		if err := rows.Scan(&b.ID, &b.Name); err != nil {
			return nil, fmt.Errorf("scanning brand: %w", err)
		}
		brands = append(brands, b)
	}
	return brands, rows.Err()
}

// CreateBrand creates a brand, enforcing name uniqueness.
func CreateBrand(ctx context.Context, q DBTX, name string) (*model.Brand, error) {
	var existing int64
	err := q.QueryRowContext(ctx, `SELECT id FROM brands WHERE name = ?`, name).Scan(&existing)
	if err == nil {
		return nil, fmt.Errorf("brand %q already exists", name)
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("checking brand name: %w", err)
	}

	result, err := q.ExecContext(ctx, `INSERT INTO brands (name) VALUES (?)`, name)
	if err != nil {
		return nil, fmt.Errorf("creating brand: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting brand id: %w", err)
	}
	return &model.Brand{ID: id, Name: name}, nil
}
