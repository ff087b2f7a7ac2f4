package api

import (
	"database/sql"
	"net/http"
	"os"

	"github.com/nmoret/inventario/internal/inventory"
	"github.com/nmoret/inventario/internal/model"
)

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, jwtSecret, uploadsRoot string) http.Handler {
	mux := http.NewServeMux()

	svc := &inventory.Service{DB: db, UploadsRoot: uploadsRoot}

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	usersHandler := &UsersHandler{DB: db}
	itemsHandler := &ItemsHandler{DB: db, Inventory: svc, TempDir: os.TempDir()}
	catalogHandler := &CatalogHandler{DB: db}

	authMW := AuthMiddleware(jwtSecret, db)
	requireAdmin := RequireRole(model.RoleAdmin)

	// Public: login.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Authenticated routes.
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))

	// Users (admin only).
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.Create))))
	mux.Handle("GET /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Get))))
	mux.Handle("PUT /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Update))))
	mux.Handle("PUT /api/users/{id}/password", authMW(requireAdmin(http.HandlerFunc(usersHandler.ResetPassword))))
	mux.Handle("DELETE /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Delete))))

	// Items: any authenticated user may read and write, purging is admin only.
	mux.Handle("GET /api/items", authMW(http.HandlerFunc(itemsHandler.List)))
	mux.Handle("POST /api/items", authMW(http.HandlerFunc(itemsHandler.Create)))
	mux.Handle("GET /api/items/{id}", authMW(http.HandlerFunc(itemsHandler.Get)))
	mux.Handle("PUT /api/items/{id}", authMW(http.HandlerFunc(itemsHandler.Update)))
	mux.Handle("DELETE /api/items/{id}", authMW(http.HandlerFunc(itemsHandler.Delete)))
	mux.Handle("DELETE /api/items/{id}/purge", authMW(requireAdmin(http.HandlerFunc(itemsHandler.Purge))))
	mux.Handle("GET /api/items/{id}/cover", authMW(http.HandlerFunc(itemsHandler.GetCover)))
	mux.Handle("GET /api/items/{id}/images/{imageID}", authMW(http.HandlerFunc(itemsHandler.GetImage)))

	// Catalog lookups.
	mux.Handle("GET /api/categories", authMW(http.HandlerFunc(catalogHandler.ListCategories)))
	mux.Handle("POST /api/categories", authMW(http.HandlerFunc(catalogHandler.CreateCategory)))
	mux.Handle("GET /api/brands", authMW(http.HandlerFunc(catalogHandler.ListBrands)))
	mux.Handle("POST /api/brands", authMW(http.HandlerFunc(catalogHandler.CreateBrand)))

	return mux
}
