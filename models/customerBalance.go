package models

import (
	"net/url"
	"strings"
	"time"
)

const (
	BalanceCustomerId   = "customerId"
	BalanceCustomerName = "customerName"
	BalanceTotal        = "totalBalance"
	BalanceDays0To30    = "days_0_30"
	BalanceDays31To60   = "days_31_60"
	BalanceDays61To90   = "days_61_90"
	BalanceDays91To150  = "days_91_150"
	BalanceDays151Plus  = "days_151_plus"
	BalanceLastUpdated  = "balanceLastUpdated"
)

// CustomerBalance is the aged receivable of one customer. The document id is the customer id,
// so every import overwrites the same document.
type CustomerBalance struct {
	CustomerId         string    `json:"customerId"`
	CustomerName       string    `json:"customerName"`
	TotalBalance       float64   `json:"totalBalance"`
	Days0To30          float64   `json:"days_0_30"`
	Days31To60         float64   `json:"days_31_60"`
	Days61To90         float64   `json:"days_61_90"`
	Days91To150        float64   `json:"days_91_150"`
	Days151Plus        float64   `json:"days_151_plus"`
	BalanceLastUpdated time.Time `json:"balanceLastUpdated"`
}

// DocumentId maps the customer id onto a valid document id. '/' would address a
// subcollection, so ids are path-escaped; distinct customer ids never share a document.
func (b CustomerBalance) DocumentId() string {
	return url.PathEscape(strings.TrimSpace(b.CustomerId))
}

func (b CustomerBalance) Fields() map[string]any {
	return map[string]any{
		BalanceCustomerId:   b.CustomerId,
		BalanceCustomerName: b.CustomerName,
		BalanceTotal:        b.TotalBalance,
		BalanceDays0To30:    b.Days0To30,
		BalanceDays31To60:   b.Days31To60,
		BalanceDays61To90:   b.Days61To90,
		BalanceDays91To150:  b.Days91To150,
		BalanceDays151Plus:  b.Days151Plus,
		BalanceLastUpdated:  b.BalanceLastUpdated,
	}
}
