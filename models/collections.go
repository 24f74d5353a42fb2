package models

// Default collection names. Deployments can override them through config.Settings.
const (
	InvoiceCollection    = "invoices"
	BalanceCollection    = "customerBalances"
	BottleTypeCollection = "bottleTypes"
)
