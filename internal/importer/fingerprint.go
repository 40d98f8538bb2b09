package importer

// fingerprint.go derives the deduplication key for a draft. The key is a
// hash of the canonical string built from the fields that determine logical
// identity, so two imports of the same real-world fact always collide and a
// change to any identity field never does. The hash is FNV-1a 32; colliding
// fingerprints for distinct canonical strings are accepted as a
// low-probability risk rather than eliminated.

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/lardosa/contacerta/internal/ledger"
)

const fingerprintSep = "|"

// Kind tags keep transaction and receipt fingerprints in distinct
// namespaces even when their canonical strings would hash alike.
const (
	fingerprintTagLedger  = "TX"
	fingerprintTagReceipt = "RC"
)

// Fingerprint derives the stable deduplication key for a draft.
// Deterministic: identical canonical fields always produce the same value.
func Fingerprint(d *Draft) string {
	if d.Ledger != nil {
		return fingerprintTagLedger + fingerprintSep + hashCanonical(ledgerCanonical(d.Ledger))
	}
	return fingerprintTagReceipt + fingerprintSep + hashCanonical(receiptCanonical(d.Receipt))
}

// ledgerCanonical joins the identity fields of a ledger entry: country,
// date, amount at two decimals, category, item, payment method and
// normalized description.
func ledgerCanonical(e *ledger.LedgerEntry) string {
	return strings.Join([]string{
		string(e.Country),
		e.AccrualDate,
		ledger.Round2(e.Amount).StringFixed(2),
		e.CategoryID,
		e.ItemID,
		e.PaymentMethodID,
		NormalizeKey(e.Description),
	}, fingerprintSep)
}

// receiptCanonical joins the identity fields of a receipt: country, receipt
// number, issue date, supplier, base and received amounts at two decimals.
func receiptCanonical(r *ledger.FiscalReceipt) string {
	return strings.Join([]string{
		string(r.Country),
		NormalizeKey(r.ExternalID),
		r.IssueDate,
		r.SupplierID,
		ledger.Round2(r.BaseAmount).StringFixed(2),
		ledger.Round2(r.ReceivedAmount).StringFixed(2),
	}, fingerprintSep)
}

func hashCanonical(canonical string) string {
	h := fnv.New32a()
	h.Write([]byte(canonical))
	return fmt.Sprintf("%08x", h.Sum32())
}
