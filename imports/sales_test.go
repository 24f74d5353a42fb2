package imports

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/mmdatafocus/winery_ingest/docstore"
	"github.com/mmdatafocus/winery_ingest/models"
	"github.com/mmdatafocus/winery_ingest/sheet"
	"github.com/mmdatafocus/winery_ingest/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const salesCSV = "Date,Winery,Quantity,Unit Price,Notes,Bottle Info\n" +
	"05/03/2024,Ktima Alpha,12,\"12,50€\",ΦΙΑΛΗ: 750ml|ΟΙΝΟΣ: Assyrtiko,\n" +
	"06/03/2024,Ktima Beta,3,,,\n" +
	",,,,,\n" +
	"garbage,Ktima Gamma,-4,n/a,φιάλη: 375ml,Magnum\n"

func salesEvent(content string) FileEvent {
	return FileEvent{
		Bucket:     "uploads",
		Name:       "sales-uploads/2024-03-05/march.csv",
		Generation: 7,
		MimeType:   sheet.MimeCSV,
		Content:    []byte(content),
	}
}

func newSalesImporter(store docstore.Store) *SalesImporter {
	return &SalesImporter{Config: testConfig(store, models.InvoiceCollection, "sales-uploads")}
}

func invoicesByWinery(t *testing.T, store *docstore.MemoryStore) map[string]map[string]any {
	t.Helper()
	docs, err := docstore.ScanAll(context.Background(), store, models.InvoiceCollection)
	require.NoError(t, err)
	out := map[string]map[string]any{}
	for _, d := range docs {
		out[docstore.String(d.Fields, models.InvoiceWineryName)] = d.Fields
	}
	return out
}

func TestSalesImport(t *testing.T) {
	store := docstore.NewMemoryStore()

	res, err := newSalesImporter(store).Handle(context.Background(), salesEvent(salesCSV))
	require.NoError(t, err)
	assert.Equal(t, 3, res.RecordsProcessed)
	assert.Equal(t, 0, res.RowsSkipped)
	assert.Equal(t, "Imported 3 sales records from sales-uploads/2024-03-05/march.csv", res.Message)
	assert.Equal(t, 3, store.Count(models.InvoiceCollection))

	byWinery := invoicesByWinery(t, store)

	alpha := byWinery["Ktima Alpha"]
	assert.Equal(t, 12.0, alpha[models.InvoiceQuantity])
	assert.Equal(t, 12.5, alpha[models.InvoiceUnitPrice])
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), alpha[models.InvoiceDate])
	assert.Equal(t, "750ml", alpha[models.InvoiceBottleInfo])
	assert.Equal(t, "Assyrtiko", alpha[models.InvoiceWineInfo])
	assert.Equal(t, fixedNow, alpha[models.InvoiceImportedAt])

	beta := byWinery["Ktima Beta"]
	assert.Equal(t, 0.0, beta[models.InvoiceUnitPrice])
	assert.Nil(t, beta[models.InvoiceNotes])
	assert.Nil(t, beta[models.InvoiceBottleInfo])

	gamma := byWinery["Ktima Gamma"]
	assert.Nil(t, gamma[models.InvoiceDate])
	assert.Equal(t, 0.0, gamma[models.InvoiceQuantity])
	assert.Equal(t, 0.0, gamma[models.InvoiceUnitPrice])
	assert.Equal(t, "Magnum", gamma[models.InvoiceBottleInfo], "dedicated column wins over notes")
}

func TestSalesImportTwiceDuplicates(t *testing.T) {
	store := docstore.NewMemoryStore()
	importer := newSalesImporter(store)

	for i := 0; i < 2; i++ {
		_, err := importer.Handle(context.Background(), salesEvent(salesCSV))
		require.NoError(t, err)
	}
	assert.Equal(t, 6, store.Count(models.InvoiceCollection))
}

func TestSalesImportSkipsForeignUploads(t *testing.T) {
	store := docstore.NewMemoryStore()
	importer := newSalesImporter(store)

	ev := salesEvent(salesCSV)
	ev.Name = "balance-uploads/b.csv"
	res, err := importer.Handle(context.Background(), ev)
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	ev = salesEvent(salesCSV)
	ev.MimeType = "image/png"
	res, err = importer.Handle(context.Background(), ev)
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	ev = salesEvent(salesCSV)
	ev.MimeType = "text/csv; charset=utf-8"
	res, err = importer.Handle(context.Background(), ev)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
}

func TestSalesImportRejectsUnreadableFile(t *testing.T) {
	store := docstore.NewMemoryStore()
	ev := salesEvent("")
	ev.Name = "sales-uploads/broken.xlsx"
	ev.MimeType = sheet.MimeXLSX
	ev.Content = []byte("not a workbook")

	_, err := newSalesImporter(store).Handle(context.Background(), ev)
	require.Error(t, err)
	assert.Equal(t, utils.KindInvalidArgument, utils.KindOf(err))
	assert.Zero(t, store.Commits())
}

func manySales(n int) string {
	var b strings.Builder
	b.WriteString("Winery,Quantity\n")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "W%d,%d\n", i, i)
	}
	return b.String()
}

func TestSalesImportResumesFromCheckpoint(t *testing.T) {
	store := docstore.NewMemoryStore()
	checkpoints := newMemoryCheckpoints()
	importer := newSalesImporter(store)
	importer.Ceiling = 2
	importer.Checkpoints = checkpoints
	ev := salesEvent(manySales(5))

	store.FailCommit = func(commit int, _ []docstore.Op) error {
		if commit == 2 {
			return errors.New("deadline exceeded")
		}
		return nil
	}
	_, err := importer.Handle(context.Background(), ev)
	require.Error(t, err)
	var jobErr *utils.JobError
	require.ErrorAs(t, err, &jobErr)
	assert.Equal(t, 1, jobErr.Batch)
	assert.Equal(t, 2, jobErr.Applied)
	assert.Equal(t, Checkpoint{NextRow: 2, Applied: 2}, checkpoints.saved[ev.Key()])

	store.FailCommit = nil
	res, err := importer.Handle(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, 5, res.RecordsProcessed)
	assert.Equal(t, 5, store.Count(models.InvoiceCollection), "rows before the checkpoint are not written again")
	assert.NotContains(t, checkpoints.saved, ev.Key())
}

func TestSalesImportIgnoresStaleCheckpoint(t *testing.T) {
	store := docstore.NewMemoryStore()
	checkpoints := newMemoryCheckpoints()
	importer := newSalesImporter(store)
	importer.Checkpoints = checkpoints
	ev := salesEvent(manySales(3))
	checkpoints.saved[ev.Key()] = Checkpoint{NextRow: 10, Applied: 10}

	res, err := importer.Handle(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, 3, res.RecordsProcessed)
}
