package imports

import (
	"context"
	"fmt"

	"github.com/mmdatafocus/winery_ingest/docstore"
	"github.com/mmdatafocus/winery_ingest/models"
	"github.com/mmdatafocus/winery_ingest/normalize"
	"github.com/mmdatafocus/winery_ingest/sheet"
)

const BalanceJob = "import.balance"

var balanceLayout = layout{
	aliases: map[string][]string{
		models.BalanceCustomerId:   {"customerId", "Customer ID", "Κωδικός", "Κωδικός Πελάτη"},
		models.BalanceCustomerName: {"customerName", "Customer Name", "Customer", "Επωνυμία", "Πελάτης"},
		models.BalanceTotal:        {"totalBalance", "Total Balance", "Balance", "Υπόλοιπο", "Συνολικό Υπόλοιπο"},
		models.BalanceDays0To30:    {"days_0_30", "0-30", "0-30 Days", "0-30 Ημέρες"},
		models.BalanceDays31To60:   {"days_31_60", "31-60", "31-60 Days", "31-60 Ημέρες"},
		models.BalanceDays61To90:   {"days_61_90", "61-90", "61-90 Days", "61-90 Ημέρες"},
		models.BalanceDays91To150:  {"days_91_150", "91-150", "91-150 Days", "91-150 Ημέρες"},
		models.BalanceDays151Plus:  {"days_151_plus", "151+", "151+ Days", "151+ Ημέρες", ">150"},
	},
	required: []string{models.BalanceCustomerId},
}

// BalanceImporter upserts one document per customer, keyed by the customer id with merge
// semantics. Re-importing a file overwrites the same documents.
type BalanceImporter struct {
	Config
}

func (b *BalanceImporter) Handle(ctx context.Context, ev FileEvent) (*Result, error) {
	if ev.Prefix() != b.Prefix {
		return skipped("%s is not a balance upload", ev.Name), nil
	}
	updatedAt := b.now()

	res, err := b.run(ctx, BalanceJob, ev, balanceLayout, func(cols columns, row sheet.Row) (docstore.Op, bool) {
		balance := balanceFromRow(cols, row)
		if balance.DocumentId() == "" {
			return docstore.Op{}, false
		}
		balance.BalanceLastUpdated = updatedAt
		return docstore.Upsert(b.Collection, balance.DocumentId(), balance.Fields(), true), true
	})
	if err != nil {
		return nil, err
	}
	res.Message = fmt.Sprintf("Imported %d customer balances from %s", res.RecordsProcessed, ev.Name)
	return res, nil
}

func balanceFromRow(cols columns, row sheet.Row) models.CustomerBalance {
	number := func(field string) float64 {
		return normalize.NumberFromCell(cols.get(row, field))
	}
	return models.CustomerBalance{
		CustomerId:   cols.get(row, models.BalanceCustomerId).String(),
		CustomerName: cols.get(row, models.BalanceCustomerName).String(),
		TotalBalance: number(models.BalanceTotal),
		Days0To30:    number(models.BalanceDays0To30),
		Days31To60:   number(models.BalanceDays31To60),
		Days61To90:   number(models.BalanceDays61To90),
		Days91To150:  number(models.BalanceDays91To150),
		Days151Plus:  number(models.BalanceDays151Plus),
	}
}
