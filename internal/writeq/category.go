package writeq

import "fmt"

// Category groups tasks by the kind of mutation they perform.
type Category string

// Task categories.
const (
	CategoryLibraryUpdate Category = "LIBRARY_UPDATE"
	CategoryDownload      Category = "DOWNLOAD"
	CategoryBulkImport    Category = "BULK_IMPORT"
	CategoryOther         Category = "OTHER"
)

// Categories lists every category in a stable order.
var Categories = []Category{
	CategoryLibraryUpdate,
	CategoryDownload,
	CategoryBulkImport,
	CategoryOther,
}

// BatchEligible reports whether tasks of c may be executed and persisted as groups.
func (c Category) BatchEligible() bool {
	switch c {
	case CategoryLibraryUpdate, CategoryDownload, CategoryBulkImport:
		return true
	default:
		return false
	}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return c.BatchEligible() || c == CategoryOther
}

// ParseCategory converts s to a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
	return c, nil
}

// Priority orders tasks ahead of arrival order.
type Priority int

// Priorities.
const (
	PriorityNormal Priority = iota
	PriorityHigh
)

func (p Priority) String() string {
	if p == PriorityHigh {
		return "high"
	}
	return "normal"
}
