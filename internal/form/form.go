package form

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/nmoret/inventario/internal/model"
)

// Draft is a fully-typed, normalized item submission ready for persistence.
type Draft struct {
	Code         string
	Name         string
	Description  string
	CategoryID   *int64
	BrandID      *int64
	Model        string
	SerialNumber string
	Location     string
	Department   string
	Status       string
	Quantity     int
	UnitPrice    *string
	RegisteredAt string
}

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ParseDraft normalizes and validates a raw submission for item creation.
// All checks run and all failures accumulate so the caller can display every
// problem at once; the draft is returned even when errors are present.
func ParseDraft(fields url.Values) (*Draft, []string) {
	return merge(fields, nil)
}

// MergeDraft normalizes and validates a raw submission for an item update.
// Any field absent from the submission keeps the currently persisted value.
func MergeDraft(fields url.Values, current *model.Item) (*Draft, []string) {
	return merge(fields, current)
}

func merge(fields url.Values, current *model.Item) (*Draft, []string) {
	fallback := Draft{Status: model.StatusOperational, Quantity: 1}
	if current != nil {
		fallback = Draft{
			Code:         current.Code,
			Name:         current.Name,
			Description:  current.Description,
			CategoryID:   current.CategoryID,
			BrandID:      current.BrandID,
			Model:        current.Model,
			SerialNumber: current.SerialNumber,
			Location:     current.Location,
			Department:   current.Department,
			Status:       current.Status,
			Quantity:     current.Quantity,
			UnitPrice:    current.UnitPrice,
			RegisteredAt: current.RegisteredAt,
		}
	}

	var errs []string

	d := &Draft{
		Code:         strings.ToUpper(text(fields, "code", fallback.Code)),
		Name:         text(fields, "name", fallback.Name),
		Description:  text(fields, "description", fallback.Description),
		CategoryID:   id(fields, "category_id", fallback.CategoryID),
		BrandID:      id(fields, "brand_id", fallback.BrandID),
		Model:        text(fields, "model", fallback.Model),
		SerialNumber: text(fields, "serial_number", fallback.SerialNumber),
		Location:     text(fields, "location", fallback.Location),
		Department:   text(fields, "department", fallback.Department),
		Status:       text(fields, "status", fallback.Status),
		RegisteredAt: text(fields, "registered_at", fallback.RegisteredAt),
	}

	d.Quantity = AsInt(text(fields, "quantity", strconv.Itoa(fallback.Quantity)), 1)
	if d.Quantity < 1 {
		d.Quantity = 1
	}

	rawPrice, priceSubmitted := first(fields, "unit_price")
	if !priceSubmitted && fallback.UnitPrice != nil {
		rawPrice = *fallback.UnitPrice
	}
	d.UnitPrice = AsPrice(rawPrice)

	if d.Code == "" {
		errs = append(errs, "Code is required.")
	}
	if d.Name == "" {
		errs = append(errs, "Name is required.")
	}
	if !model.ValidStatus(d.Status) {
		errs = append(errs, "Invalid status.")
	}
	// A malformed price and an intentionally empty one must not look the same.
	if d.UnitPrice == nil && priceSubmitted && strings.TrimSpace(rawPrice) != "" {
		errs = append(errs, "Invalid price.")
	}
	if d.RegisteredAt != "" && !dateRe.MatchString(d.RegisteredAt) {
		errs = append(errs, "Invalid date (use YYYY-MM-DD).")
	}

	return d, errs
}

// text returns the trimmed submitted value for key, or fallback when the
// field was not part of the submission at all.
func text(fields url.Values, key, fallback string) string {
	v, ok := first(fields, key)
	if !ok {
		return fallback
	}
	return strings.TrimSpace(v)
}

// id parses an optional foreign-key field. An omitted field keeps the
// fallback; a submitted empty or unparseable value clears the reference.
func id(fields url.Values, key string, fallback *int64) *int64 {
	v, ok := first(fields, key)
	if !ok {
		return fallback
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}

func first(fields url.Values, key string) (string, bool) {
	vs, ok := fields[key]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

// AsInt converts a value to an integer, returning def when it doesn't parse.
func AsInt(v string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

// AsPrice validates and formats a value as a fixed two-decimal price.
// Empty, malformed or negative input yields nil; whether that is an error
// is up to the caller, which knows if the field was submitted.
func AsPrice(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	n, err := decimal.NewFromString(v)
	if err != nil || n.IsNegative() {
		return nil
	}
	s := n.StringFixed(2)
	return &s
}
