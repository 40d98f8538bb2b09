// Package ledger defines the domain records produced by the import pipeline
// and the interfaces to the reference-data and persistence collaborators.
// This package has no knowledge of spreadsheets or mapping; it only describes
// what a committed record looks like.
package ledger

import (
	"github.com/shopspring/decimal"
)

// Country identifies the fiscal jurisdiction a record belongs to.
type Country string

const (
	CountryPT Country = "PT"
	CountryBR Country = "BR"
)

// EntryType distinguishes money coming in from money going out.
type EntryType string

const (
	TypeRevenue EntryType = "REVENUE"
	TypeExpense EntryType = "EXPENSE"
)

// Status is the settlement state of a ledger entry.
type Status string

const (
	StatusPaid    Status = "PAID"
	StatusPending Status = "PENDING"
)

// OriginImport marks records created by the import pipeline, as opposed to
// records entered through the manual form editors.
const OriginImport = "IMPORT"

// LedgerEntry is a single committed movement on the household ledger.
type LedgerEntry struct {
	ID              string
	Country         Country
	Type            EntryType
	AccrualDate     string // ISO date or YYYY-MM accounting period
	DueDate         string
	Description     string
	Amount          decimal.Decimal
	Status          Status
	PaymentMethodID string
	CategoryID      string
	ItemID          string
	SupplierID      string // optional
	Origin          string
	LinkedReceiptID string // set when the entry was emitted for a receipt
}

// FiscalReceipt is a committed fiscal receipt ("recibo") with its derived
// tax amounts. InternalID is the stable identifier used as the persistence
// key; ExternalID is the number printed on the receipt itself.
type FiscalReceipt struct {
	InternalID         string
	ExternalID         string
	Country            Country
	IssueDate          string
	SupplierID         string
	CategoryID         string
	ItemID             string
	BaseAmount         decimal.Decimal
	PrimaryRate        decimal.Decimal
	SecondaryRate      decimal.Decimal
	PrimaryTaxAmount   decimal.Decimal
	SecondaryTaxAmount decimal.Decimal
	NetAmount          decimal.Decimal
	ReceivedAmount     decimal.Decimal
	IsPaid             bool
	Description        string
}

// TaxPolicy describes how a jurisdiction derives the received amount of a
// receipt. Rates are percentages. When SecondaryAdditive is true the
// secondary tax is charged on top of the net amount (received = net +
// secondary); when false it is withheld (received = net - secondary).
type TaxPolicy struct {
	PrimaryRate       decimal.Decimal
	SecondaryRate     decimal.Decimal
	SecondaryAdditive bool
}

// ReceivedAmount applies the policy's sign rule to a net amount.
func (p TaxPolicy) ReceivedAmount(net, secondaryTax decimal.Decimal) decimal.Decimal {
	if p.SecondaryAdditive {
		return net.Add(secondaryTax)
	}
	return net.Sub(secondaryTax)
}
