package models

const (
	ReferenceName      = "name"
	ReferenceActive    = "active"
	ReferenceSortOrder = "sortOrder"

	// DefaultSortOrder puts items without an explicit position at the end of pick lists.
	DefaultSortOrder = 999
)

// ReferenceItem is an entry of a pick list such as bottle types. Name is unique within
// its collection, compared case-sensitively.
type ReferenceItem struct {
	Name      string `json:"name"`
	Active    bool   `json:"active"`
	SortOrder int    `json:"sortOrder"`
}

func NewReferenceItem(name string) ReferenceItem {
	return ReferenceItem{Name: name, Active: true, SortOrder: DefaultSortOrder}
}

func (r ReferenceItem) Fields() map[string]any {
	return map[string]any{
		ReferenceName:      r.Name,
		ReferenceActive:    r.Active,
		ReferenceSortOrder: r.SortOrder,
	}
}
