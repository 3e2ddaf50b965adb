// Package upload turns uploaded purchase order documents into PO history
// records, charging one credit per successful extraction.
package upload

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tradeflow-ai/tradeflow/internal/database"
	"github.com/tradeflow-ai/tradeflow/internal/logging"
	"github.com/tradeflow-ai/tradeflow/internal/metrics"
)

// DefaultMaxBytes is the per-file size limit when none is configured.
const DefaultMaxBytes int64 = 10 << 20

// Per-file result statuses.
const (
	StatusCompleted = database.StatusCompleted
	StatusFailed    = database.StatusFailed
)

// Per-file failure codes.
const (
	CodeFileTooLarge        = "FILE_TOO_LARGE"
	CodeUnsupportedType     = "UNSUPPORTED_FILE_TYPE"
	CodeExtractionFailed    = "EXTRACTION_FAILED"
	CodeNoPONumber          = "NO_PO_NUMBER"
	CodeNoTotalAmount       = "NO_TOTAL_AMOUNT"
	CodeInsufficientCredits = "INSUFFICIENT_CREDITS"
	CodeInternal            = "INTERNAL_ERROR"
)

// Document is one uploaded file.
type Document struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Result is the outcome for one document.
type Result struct {
	FileName    string              `json:"fileName"`
	Status      string              `json:"status"`
	PONumber    *string             `json:"poNumber"`
	VendorName  *string             `json:"vendorName"`
	TotalAmount *decimal.Decimal    `json:"totalAmount"`
	LineItems   []LineItem          `json:"lineItems"`
	Error       *string             `json:"error"`
	Code        *string             `json:"code"`
	Record      *database.POHistory `json:"record"`
}

func (r *Result) fail(code, message string) {
	r.Status = StatusFailed
	r.Code = &code
	r.Error = &message
}

// Processor extracts PO data and records it against the owner's quota.
type Processor struct {
	repo     database.RepositoryInterface
	logger   *logging.Logger
	maxBytes int64
}

// NewProcessor creates a Processor. A non-positive maxBytes selects DefaultMaxBytes.
func NewProcessor(repo database.RepositoryInterface, logger *logging.Logger, maxBytes int64) *Processor {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Processor{repo: repo, logger: logger, maxBytes: maxBytes}
}

// MaxBytes returns the per-file size limit.
func (p *Processor) MaxBytes() int64 {
	return p.maxBytes
}

// Process handles docs in order and returns one result per document plus the
// credits left afterwards. Only repository failures unrelated to a single
// document are returned as errors.
func (p *Processor) Process(ctx context.Context, userID string, docs []Document) ([]Result, int, error) {
	quota, err := p.repo.GetOrCreateQuota(ctx, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("load quota: %w", err)
	}
	remaining := quota.RemainingCredits

	results := make([]Result, 0, len(docs))
	for _, doc := range docs {
		res := p.processOne(ctx, userID, doc, &remaining)
		metrics.RecordDocument(kindLabel(doc), res.Status)
		results = append(results, res)
	}
	return results, remaining, nil
}

func (p *Processor) processOne(ctx context.Context, userID string, doc Document, remaining *int) Result {
	res := Result{FileName: doc.FileName, LineItems: []LineItem{}}

	if int64(len(doc.Data)) > p.maxBytes {
		res.fail(CodeFileTooLarge, fmt.Sprintf("File exceeds the %d byte limit", p.maxBytes))
		return res
	}
	kind, err := DetectKind(doc.FileName, doc.ContentType, doc.Data)
	if err != nil {
		res.fail(CodeUnsupportedType, "Only PDF, EML and TXT files are supported")
		return res
	}

	text, err := ExtractText(kind, doc.Data)
	if err != nil {
		p.logger.WithContext(ctx).WithError(err).WithField("file", doc.FileName).Warn("Document text extraction failed")
		res.fail(CodeExtractionFailed, "Could not read document text")
		return res
	}

	ext, err := Parse(text)
	if ext != nil {
		res.PONumber = optional(ext.PONumber)
		res.VendorName = optional(ext.VendorName)
		if len(ext.LineItems) > 0 {
			res.LineItems = ext.LineItems
		}
	}
	switch {
	case errors.Is(err, ErrNoPONumber):
		res.fail(CodeNoPONumber, "No PO number found in document")
		return res
	case errors.Is(err, ErrNoTotal):
		res.fail(CodeNoTotalAmount, "No total amount found in document")
		return res
	}
	total := ext.TotalAmount
	res.TotalAmount = &total

	record := &database.POHistory{
		UserID:      userID,
		PONumber:    ext.PONumber,
		Description: describe(doc.FileName, ext.VendorName),
		Amount:      ext.TotalAmount,
		Status:      database.StatusCompleted,
	}
	quota, err := p.repo.RecordProcessedPO(ctx, record)
	switch {
	case errors.Is(err, database.ErrInsufficientCredits):
		*remaining = 0
		res.fail(CodeInsufficientCredits, "No credits remaining. Upgrade your plan to process more documents")
		return res
	case err != nil:
		p.logger.WithContext(ctx).WithError(err).WithField("file", doc.FileName).Error("Failed to record processed PO")
		res.fail(CodeInternal, "Failed to save processed document")
		return res
	}

	metrics.RecordCreditConsumed()
	*remaining = quota.RemainingCredits
	res.Status = StatusCompleted
	res.Record = record
	p.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"file":      doc.FileName,
		"po_number": ext.PONumber,
		"remaining": quota.RemainingCredits,
	}).Info("Processed PO document")
	return res
}

func describe(fileName, vendor string) *string {
	desc := "Processed from " + fileName
	if vendor != "" {
		desc = vendor + " - " + desc
	}
	return &desc
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func kindLabel(doc Document) string {
	kind, err := DetectKind(doc.FileName, doc.ContentType, doc.Data)
	if err != nil {
		return "unknown"
	}
	return string(kind)
}
