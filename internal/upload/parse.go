package upload

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tradeflow-ai/tradeflow/internal/database"
)

var (
	// ErrNoPONumber is returned when a document carries no recognisable PO number.
	ErrNoPONumber = errors.New("no PO number found")
	// ErrNoTotal is returned when a document carries no positive total amount
	// within the storable range.
	ErrNoTotal = errors.New("no total amount found")
)

// LineItem is one priced row of a purchase order.
type LineItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Amount      decimal.Decimal `json:"amount"`
}

// Extraction is the data read from a PO document.
type Extraction struct {
	PONumber    string
	VendorName  string
	TotalAmount decimal.Decimal
	LineItems   []LineItem
}

const amountPattern = `(?:INR|Rs\.?|USD|EUR|₹|\$|€)?\s*([0-9][0-9,]*(?:\.[0-9]{1,2})?)`

var (
	poLabelled = regexp.MustCompile(`(?i)\b(?:purchase\s+order|p\.?\s?o\.?)\s*(?:number|num|no\.?|#)?\s*[:#]?\s*([A-Z0-9][A-Z0-9/_-]*[0-9][A-Z0-9/_-]*)`)
	poBare     = regexp.MustCompile(`(?i)\b(PO[-_/]?[0-9][A-Z0-9/_-]*)\b`)

	// Ordered by preference; the first label found wins.
	totalPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bgrand\s+total\b[^0-9\n]{0,20}?` + amountPattern),
		regexp.MustCompile(`(?i)\btotal\s+(?:amount|due|payable)\b[^0-9\n]{0,20}?` + amountPattern),
		regexp.MustCompile(`(?i)\bamount\s+(?:due|payable)\b[^0-9\n]{0,20}?` + amountPattern),
		regexp.MustCompile(`(?i)\btotal\b[^0-9\n]{0,20}?` + amountPattern),
	}

	vendorLine = regexp.MustCompile(`(?im)^[ \t]*(?:vendor|supplier|seller|sold[ \t]+by|bill[ \t]+from)(?:[ \t]+name)?[ \t]*[:\-][ \t]*(.+?)[ \t]*$`)

	lineItemRow = regexp.MustCompile(`(?m)^[ \t]*(\S.*?\S)[ \t]+([0-9]+(?:\.[0-9]+)?)[ \t]+(?:x[ \t]+)?` +
		`(?:INR|Rs\.?|₹|\$)?[ \t]*([0-9][0-9,]*\.[0-9]{2})[ \t]+(?:INR|Rs\.?|₹|\$)?[ \t]*([0-9][0-9,]*\.[0-9]{2})[ \t]*$`)
	totalLabel  = regexp.MustCompile(`(?i)\b(?:sub\s*total|subtotal|total|tax|gst|vat|shipping|discount)\b`)
)

func parseAmount(raw string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Parse extracts PO fields from document text.
func Parse(text string) (*Extraction, error) {
	text = strings.NewReplacer("\r\n", "\n", "\r", "\n").Replace(text)
	out := &Extraction{
		PONumber:   findPONumber(text),
		VendorName: findVendor(text),
		LineItems:  findLineItems(text),
	}
	if out.PONumber == "" {
		return out, ErrNoPONumber
	}

	total, ok := findTotal(text)
	if !ok && len(out.LineItems) > 0 {
		for _, li := range out.LineItems {
			total = total.Add(li.Amount)
		}
		ok = database.ValidAmount(total)
	}
	if !ok {
		return out, ErrNoTotal
	}
	out.TotalAmount = total.Round(2)
	return out, nil
}

func findPONumber(text string) string {
	for _, m := range poLabelled.FindAllStringSubmatch(text, -1) {
		if candidate := strings.Trim(m[1], "-_/"); candidate != "" {
			return strings.ToUpper(candidate)
		}
	}
	if m := poBare.FindStringSubmatch(text); m != nil {
		return strings.ToUpper(m[1])
	}
	return ""
}

func findTotal(text string) (decimal.Decimal, bool) {
	for _, re := range totalPatterns {
		matches := re.FindAllStringSubmatch(text, -1)
		// The last occurrence is the summary line on most documents.
		for i := len(matches) - 1; i >= 0; i-- {
			if d, ok := parseAmount(matches[i][1]); ok && database.ValidAmount(d) {
				return d, true
			}
		}
	}
	return decimal.Zero, false
}

func findVendor(text string) string {
	if m := vendorLine.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

func findLineItems(text string) []LineItem {
	var items []LineItem
	for _, m := range lineItemRow.FindAllStringSubmatch(text, -1) {
		if totalLabel.MatchString(m[1]) {
			continue
		}
		qty, ok1 := parseAmount(m[2])
		unit, ok2 := parseAmount(m[3])
		amount, ok3 := parseAmount(m[4])
		if !ok1 || !ok2 || !ok3 {
			continue
		}
		items = append(items, LineItem{
			Description: m[1],
			Quantity:    qty,
			UnitPrice:   unit,
			Amount:      amount,
		})
	}
	return items
}
