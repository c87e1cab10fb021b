package ingestion

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/wakala/renewal-analytics/internal/analysis"
	"github.com/wakala/renewal-analytics/internal/domain"
	"github.com/wakala/renewal-analytics/internal/metrics"
	"github.com/wakala/renewal-analytics/internal/repository"
)

const (
	FormatJSONBundle  = "json_bundle"
	FormatCSVInvoices = "csv_invoices"
)

var ErrUnsupportedFormat = errors.New("unsupported format")

// ParseError reports a payload that could not be parsed in its declared
// format.
type ParseError struct {
	Format string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Format, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IngestResult is returned from a successful ingestion.
type IngestResult struct {
	FileID        string           `json:"file_id"`
	Format        string           `json:"format"`
	Duplicate     bool             `json:"duplicate"`
	Contracts     int              `json:"contracts"`
	Invoices      int              `json:"invoices"`
	Subscriptions int              `json:"subscriptions"`
	Analysis      *analysis.Result `json:"analysis,omitempty"`
}

// Analyzer re-runs analysis after new billing data lands.
type Analyzer interface {
	RunFullAnalysis(ctx context.Context) (*analysis.Result, error)
}

// Service handles ingestion of billing-platform exports.
type Service struct {
	contracts     *repository.ContractRepo
	invoices      *repository.InvoiceRepo
	subscriptions *repository.SubscriptionRepo
	files         *repository.FileRepo
	analyzer      Analyzer
}

// NewService creates a new ingestion service. analyzer may be nil, in which
// case ingestion only stores records.
func NewService(
	contracts *repository.ContractRepo,
	invoices *repository.InvoiceRepo,
	subscriptions *repository.SubscriptionRepo,
	files *repository.FileRepo,
	analyzer Analyzer,
) *Service {
	return &Service{
		contracts:     contracts,
		invoices:      invoices,
		subscriptions: subscriptions,
		files:         files,
		analyzer:      analyzer,
	}
}

// Ingest parses an export and upserts its records, then triggers analysis.
// Payloads are idempotent by content hash: a repeated upload is reported as
// a duplicate and changes nothing.
//
// format must be one of: json_bundle, csv_invoices
func (s *Service) Ingest(ctx context.Context, data []byte, format string) (*IngestResult, error) {
	if format != FormatJSONBundle && format != FormatCSVInvoices {
		metrics.FilesIngestedTotal.WithLabelValues("unknown", "failed").Inc()
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	hash := fmt.Sprintf("%x", sha256.Sum256(data))
	exists, err := s.files.ExistsByHash(hash)
	if err != nil {
		return nil, fmt.Errorf("check hash: %w", err)
	}
	if exists {
		metrics.FilesIngestedTotal.WithLabelValues(format, "duplicate").Inc()
		log.Info().Str("format", format).Str("hash", hash[:12]).Msg("export already ingested")
		return &IngestResult{Format: format, Duplicate: true}, nil
	}

	var bundle *Bundle
	switch format {
	case FormatJSONBundle:
		bundle, err = ParseBundleJSON(data)
	case FormatCSVInvoices:
		var invoices []domain.Invoice
		invoices, err = ParseInvoicesCSV(data)
		bundle = &Bundle{Invoices: invoices}
	}
	if err != nil {
		metrics.FilesIngestedTotal.WithLabelValues(format, "failed").Inc()
		return nil, &ParseError{Format: format, Err: err}
	}

	result := &IngestResult{FileID: "FILE-" + uuid.NewString(), Format: format}

	// Contracts go first so a single bundle is always internally consistent.
	if result.Contracts, err = s.contracts.BulkUpsert(bundle.Contracts); err != nil {
		return nil, fmt.Errorf("store contracts: %w", err)
	}
	if result.Invoices, err = s.invoices.BulkUpsert(bundle.Invoices); err != nil {
		return nil, fmt.Errorf("store invoices: %w", err)
	}
	if result.Subscriptions, err = s.subscriptions.BulkUpsert(bundle.Subscriptions); err != nil {
		return nil, fmt.Errorf("store subscriptions: %w", err)
	}

	if err := s.files.Insert(&domain.IngestedFile{
		ID:          result.FileID,
		Format:      format,
		FileHash:    hash,
		RecordCount: bundle.Records(),
		IngestedAt:  time.Now().UTC(),
	}); err != nil {
		return nil, fmt.Errorf("record file: %w", err)
	}
	metrics.FilesIngestedTotal.WithLabelValues(format, "ingested").Inc()

	log.Info().
		Str("file_id", result.FileID).
		Str("format", format).
		Int("contracts", result.Contracts).
		Int("invoices", result.Invoices).
		Int("subscriptions", result.Subscriptions).
		Msg("export ingested")

	if s.analyzer != nil {
		res, err := s.analyzer.RunFullAnalysis(ctx)
		if err != nil {
			// Stored data stays; the next run picks it up.
			log.Warn().Err(err).Str("file_id", result.FileID).Msg("analysis after ingestion failed")
		} else {
			result.Analysis = res
		}
	}

	return result, nil
}
