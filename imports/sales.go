package imports

import (
	"context"
	"fmt"
	"mime"
	"strings"

	"github.com/mmdatafocus/winery_ingest/docstore"
	"github.com/mmdatafocus/winery_ingest/models"
	"github.com/mmdatafocus/winery_ingest/normalize"
	"github.com/mmdatafocus/winery_ingest/sheet"
)

const SalesJob = "import.sales"

// DefaultSalesMimeTypes are the content types accepted for sales uploads.
var DefaultSalesMimeTypes = []string{sheet.MimeXLSX, sheet.MimeXLS, sheet.MimeCSV}

var salesLayout = layout{
	aliases: map[string][]string{
		models.InvoiceDate:               {"date", "Invoice Date", "Ημερομηνία", "Ημ/νία"},
		models.InvoiceWineryId:           {"wineryId", "Winery ID", "Customer ID", "Κωδικός", "Κωδικός Πελάτη"},
		models.InvoiceWineryName:         {"wineryName", "Winery", "Winery Name", "Customer", "Επωνυμία", "Πελάτης"},
		models.InvoiceQuantity:           {"quantity", "Qty", "Ποσότητα"},
		models.InvoiceProductDescription: {"productDescription", "Product", "Description", "Product Description", "Περιγραφή", "Είδος"},
		models.InvoiceUnitPrice:          {"unitPrice", "Unit Price", "Price", "Τιμή", "Τιμή Μονάδας"},
		models.InvoiceNotes:              {"notes", "Σημειώσεις", "Παρατηρήσεις"},
		models.InvoiceBottleInfo:         {"bottleInfo", "Bottle Info", "Bottle", "Φιάλη"},
		models.InvoiceWineInfo:           {"wineInfo", "Wine Info", "Wine", "Οίνος"},
	},
}

// SalesImporter appends one invoice per data row. Every row gets a fresh document id, so
// importing the same file twice stores every line twice; invoices are immutable facts and
// callers must not re-run a completed sales import.
type SalesImporter struct {
	Config
	Tokenizer *normalize.Tokenizer
	MimeTypes []string
}

func (s *SalesImporter) accepts(mimeType string) bool {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mediaType = strings.TrimSpace(mimeType)
	}
	allowed := s.MimeTypes
	if len(allowed) == 0 {
		allowed = DefaultSalesMimeTypes
	}
	for _, m := range allowed {
		if strings.EqualFold(m, mediaType) {
			return true
		}
	}
	return false
}

func (s *SalesImporter) Handle(ctx context.Context, ev FileEvent) (*Result, error) {
	if ev.Prefix() != s.Prefix {
		return skipped("%s is not a sales upload", ev.Name), nil
	}
	if !s.accepts(ev.MimeType) {
		return skipped("%s has unsupported type %q", ev.Name, ev.MimeType), nil
	}

	tokenizer := s.Tokenizer
	if tokenizer == nil {
		tokenizer = normalize.DefaultTokenizer()
	}
	importedAt := s.now()

	res, err := s.run(ctx, SalesJob, ev, salesLayout, func(cols columns, row sheet.Row) (docstore.Op, bool) {
		if cols.blank(row) {
			return docstore.Op{}, false
		}
		inv := invoiceFromRow(cols, row, tokenizer)
		inv.ImportedAt = importedAt
		return docstore.Upsert(s.Collection, s.Store.NewID(s.Collection), inv.Fields(), false), true
	})
	if err != nil {
		return nil, err
	}
	res.Message = fmt.Sprintf("Imported %d sales records from %s", res.RecordsProcessed, ev.Name)
	return res, nil
}

// invoiceFromRow never fails: unreadable numbers become 0 and unreadable dates nil.
// Dedicated bottle and wine columns win over tokens found in the notes.
func invoiceFromRow(cols columns, row sheet.Row, tokenizer *normalize.Tokenizer) models.Invoice {
	inv := models.Invoice{
		Date:               normalize.ParseDate(cols.get(row, models.InvoiceDate)),
		WineryId:           models.OptionalString(cols.get(row, models.InvoiceWineryId).Text),
		WineryName:         cols.get(row, models.InvoiceWineryName).String(),
		Quantity:           normalize.NonNegative(normalize.NumberFromCell(cols.get(row, models.InvoiceQuantity))),
		ProductDescription: cols.get(row, models.InvoiceProductDescription).String(),
		UnitPrice:          normalize.NonNegative(normalize.NumberFromCell(cols.get(row, models.InvoiceUnitPrice))),
		Notes:              models.OptionalString(cols.get(row, models.InvoiceNotes).Text),
		BottleInfo:         models.OptionalString(cols.get(row, models.InvoiceBottleInfo).Text),
		WineInfo:           models.OptionalString(cols.get(row, models.InvoiceWineInfo).Text),
	}
	if inv.Notes != nil && (inv.BottleInfo == nil || inv.WineInfo == nil) {
		info := tokenizer.ParseNoteTokens(*inv.Notes)
		if inv.BottleInfo == nil {
			inv.BottleInfo = info.BottleInfo
		}
		if inv.WineInfo == nil {
			inv.WineInfo = info.WineInfo
		}
	}
	return inv
}
