package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/clinvault/clinvault/config"
	"github.com/clinvault/clinvault/internal/domain/document"
	"github.com/clinvault/clinvault/internal/inference"
	"github.com/clinvault/clinvault/internal/normalize"
	"github.com/clinvault/clinvault/pkg/metrics"
	"github.com/clinvault/clinvault/pkg/retry"
)

// Analyzer drives the batch analysis pipeline: it normalizes files, issues
// one inference call per batch (strictly sequential, throttled against the
// service's requests-per-minute ceiling), and degrades per-batch failures to
// placeholder records instead of aborting the run.
type Analyzer struct {
	client     inference.Client
	normalizer *normalize.Normalizer
	cfg        config.PipelineConfig
	limiter    *rate.Limiter
	metrics    *metrics.Collector
	log        *zap.Logger
}

func NewAnalyzer(client inference.Client, normalizer *normalize.Normalizer, cfg config.PipelineConfig, m *metrics.Collector, log *zap.Logger) *Analyzer {
	// The limiter is the proactive throttle: one request per inter-batch
	// interval, burst 1 so the first batch starts immediately. Reactive
	// backoff on 429s is handled separately by the retry policy.
	return &Analyzer{
		client:     client,
		normalizer: normalizer,
		cfg:        cfg,
		limiter:    rate.NewLimiter(rate.Every(cfg.InterBatchDelay), 1),
		metrics:    m,
		log:        log,
	}
}

// extractionItem mirrors one element of the schema-constrained response.
type extractionItem struct {
	Date        string `json:"date"`
	Type        string `json:"type"`
	Summary     string `json:"summary"`
	IsDuplicate bool   `json:"isDuplicate"`
}

// AnalyzeBatch processes files in input order and returns exactly one result
// per file, regardless of how many batches failed. It never returns an
// error: failures are degraded into placeholder records. Context
// cancellation degrades the remaining files rather than dropping them.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, profileID uuid.UUID, files []normalize.FileInput, onProgress ProgressFunc) []Result {
	ctx, span := otel.Tracer("clinvault/pipeline").Start(ctx, "pipeline.analyze_batch")
	defer span.End()
	span.SetAttributes(attribute.Int("files", len(files)))

	results := make([]Result, 0, len(files))
	total := len(files)

	for start := 0; start < total; start += a.cfg.BatchSize {
		end := start + a.cfg.BatchSize
		if end > total {
			end = total
		}
		batch := files[start:end]

		batchStart := time.Now()
		results = append(results, a.runBatch(ctx, profileID, batch)...)
		a.metrics.BatchDuration.Observe(time.Since(batchStart).Seconds())

		if onProgress != nil {
			onProgress(len(results), total)
		}
	}

	for _, r := range results {
		if r.Degraded {
			a.metrics.FilesProcessedTotal.WithLabelValues("degraded").Inc()
		} else {
			a.metrics.FilesProcessedTotal.WithLabelValues("ok").Inc()
		}
	}

	return results
}

func (a *Analyzer) runBatch(ctx context.Context, profileID uuid.UUID, batch []normalize.FileInput) []Result {
	// Proactive throttle; on cancellation degrade the batch like any other
	// failure so the caller still receives one record per file.
	if err := a.limiter.Wait(ctx); err != nil {
		return a.placeholders(profileID, batch, fmt.Sprintf("analysis interrupted: %v", err))
	}

	parts := make([]inference.Part, len(batch))
	for i, f := range batch {
		parts[i] = a.normalizer.Normalize(ctx, f).Part()
	}

	policy := retry.Policy{
		MaxAttempts: a.cfg.MaxAttempts,
		BaseDelay:   a.cfg.BackoffBaseDelay,
		OnRetry: func(attempt int, wait time.Duration) {
			a.metrics.InferenceRetriesTotal.Inc()
			a.log.Warn("inference rate limited, backing off",
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
			)
		},
	}

	items, err := retry.Do(ctx, policy, func(ctx context.Context) ([]extractionItem, error) {
		var out []extractionItem
		if err := a.client.GenerateJSON(ctx, extractionPrompt, parts, extractionSchema(), &out); err != nil {
			if inference.IsRateLimited(err) {
				a.metrics.InferenceRequestsTotal.WithLabelValues("rate_limited").Inc()
			} else {
				a.metrics.InferenceRequestsTotal.WithLabelValues("error").Inc()
			}
			return nil, err
		}
		a.metrics.InferenceRequestsTotal.WithLabelValues("ok").Inc()
		return out, nil
	})
	if err != nil {
		a.log.Error("batch inference failed, emitting placeholders",
			zap.String("profile_id", profileID.String()),
			zap.Int("batch_size", len(batch)),
			zap.Error(err),
		)
		return a.placeholders(profileID, batch, "automated analysis failed after repeated attempts; original file retained for manual review")
	}

	results := make([]Result, 0, len(batch))
	for i, f := range batch {
		if i >= len(items) {
			// The service returned fewer elements than inputs; preserve the
			// one-record-per-file contract.
			results = append(results, degraded(
				a.placeholder(profileID, f, "analysis response omitted this file"),
				"response element missing",
			))
			continue
		}
		results = append(results, ok(a.toDocument(profileID, f, items[i])))
	}
	return results
}

func (a *Analyzer) toDocument(profileID uuid.UUID, f normalize.FileInput, item extractionItem) *document.ProcessedDocument {
	summary := item.Summary
	if summary == "" {
		summary = fmt.Sprintf("No summary could be extracted from %q.", f.Filename)
	}

	var docDate *time.Time
	if item.Date != "" {
		if t, err := time.Parse(document.DateLayout, item.Date); err == nil {
			docDate = &t
		} else {
			a.log.Debug("discarding unparseable document date",
				zap.String("file", f.Filename),
				zap.String("date", item.Date),
			)
		}
	}

	return &document.ProcessedDocument{
		ProfileID:    profileID,
		ID:           uuid.New(),
		DocumentDate: docDate,
		Type:         document.ParseType(item.Type),
		Summary:      summary,
		IsDuplicate:  item.IsDuplicate,
		SourceName:   f.Filename,
		SourceMime:   f.MimeType,
		SourceData:   f.Data,
	}
}

func (a *Analyzer) placeholder(profileID uuid.UUID, f normalize.FileInput, reason string) *document.ProcessedDocument {
	return &document.ProcessedDocument{
		ProfileID:   profileID,
		ID:          uuid.New(),
		Type:        document.TypeOther,
		Summary:     fmt.Sprintf("File %q: %s", f.Filename, reason),
		IsDuplicate: false,
		SourceName:  f.Filename,
		SourceMime:  f.MimeType,
		SourceData:  f.Data,
	}
}

func (a *Analyzer) placeholders(profileID uuid.UUID, batch []normalize.FileInput, reason string) []Result {
	results := make([]Result, len(batch))
	for i, f := range batch {
		results[i] = degraded(a.placeholder(profileID, f, reason), reason)
	}
	return results
}
