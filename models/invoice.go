package models

import (
	"strings"
	"time"
)

const (
	InvoiceDate               = "date"
	InvoiceWineryId           = "wineryId"
	InvoiceWineryName         = "wineryName"
	InvoiceQuantity           = "quantity"
	InvoiceProductDescription = "productDescription"
	InvoiceUnitPrice          = "unitPrice"
	InvoiceNotes              = "notes"
	InvoiceBottleInfo         = "bottleInfo"
	InvoiceWineInfo           = "wineInfo"
	InvoiceImportedAt         = "importedAt"
)

// Invoice is one imported sales line. Invoices are immutable facts: only the note-derived
// fields and bottleInfo renames ever change after import.
type Invoice struct {
	Date               *time.Time `json:"date"`
	WineryId           *string    `json:"wineryId"`
	WineryName         string     `json:"wineryName"`
	Quantity           float64    `json:"quantity"`
	ProductDescription string     `json:"productDescription"`
	UnitPrice          float64    `json:"unitPrice"`
	Notes              *string    `json:"notes"`
	BottleInfo         *string    `json:"bottleInfo"`
	WineInfo           *string    `json:"wineInfo"`
	ImportedAt         time.Time  `json:"importedAt"`
}

func (inv Invoice) Fields() map[string]any {
	return map[string]any{
		InvoiceDate:               timeOrNil(inv.Date),
		InvoiceWineryId:           stringOrNil(inv.WineryId),
		InvoiceWineryName:         inv.WineryName,
		InvoiceQuantity:           inv.Quantity,
		InvoiceProductDescription: inv.ProductDescription,
		InvoiceUnitPrice:          inv.UnitPrice,
		InvoiceNotes:              stringOrNil(inv.Notes),
		InvoiceBottleInfo:         stringOrNil(inv.BottleInfo),
		InvoiceWineInfo:           stringOrNil(inv.WineInfo),
		InvoiceImportedAt:         inv.ImportedAt,
	}
}

// OptionalString trims s and returns nil when nothing is left.
func OptionalString(s string) *string {
	s = strings.TrimSpace(strings.ToValidUTF8(s, ""))
	if s == "" {
		return nil
	}
	return &s
}

// Store backends treat a typed nil pointer differently, so absent values are written as
// an untyped nil.
func stringOrNil(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func timeOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
