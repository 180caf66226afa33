package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/clinvault/clinvault/config"
	"github.com/clinvault/clinvault/internal/domain/document"
	"github.com/clinvault/clinvault/internal/domain/report"
	"github.com/clinvault/clinvault/internal/inference"
	"github.com/clinvault/clinvault/pkg/metrics"
	"github.com/clinvault/clinvault/pkg/retry"
)

var (
	// ErrSynthesisFailed marks a report call that exhausted its retry budget
	// or failed terminally. No placeholder report is ever fabricated.
	ErrSynthesisFailed = errors.New("report synthesis failed")

	// ErrNoDocuments is returned when a profile has no usable records.
	ErrNoDocuments = errors.New("no documents available for synthesis")
)

// Synthesizer consumes a profile's accumulated records and produces the
// single narrative report through one schema-constrained inference call.
type Synthesizer struct {
	client  inference.Client
	cfg     config.PipelineConfig
	metrics *metrics.Collector
	log     *zap.Logger
}

func NewSynthesizer(client inference.Client, cfg config.PipelineConfig, m *metrics.Collector, log *zap.Logger) *Synthesizer {
	return &Synthesizer{client: client, cfg: cfg, metrics: m, log: log}
}

type synthesisResult struct {
	History   string `json:"history"`
	Summary   string `json:"summary"`
	Prognosis string `json:"prognosis"`
}

// Synthesize builds the chronological timeline from docs and asks the
// inference service for the narrative report. The retry budget here is
// smaller than the extraction pipeline's: this call is expensive and
// singular, so excessive retrying is not cost-justified.
func (s *Synthesizer) Synthesize(ctx context.Context, profileID uuid.UUID, docs []*document.ProcessedDocument) (*report.ReportData, error) {
	ctx, span := otel.Tracer("clinvault/pipeline").Start(ctx, "pipeline.synthesize_report")
	defer span.End()

	timeline := Timeline(docs)
	span.SetAttributes(attribute.Int("timeline_entries", len(timeline)))
	if len(timeline) == 0 {
		return nil, ErrNoDocuments
	}

	prompt := synthesisPrompt + strings.Join(timeline, "\n")
	policy := retry.Policy{
		MaxAttempts: s.cfg.SynthesisAttempts,
		BaseDelay:   s.cfg.BackoffBaseDelay,
		OnRetry: func(attempt int, wait time.Duration) {
			s.metrics.InferenceRetriesTotal.Inc()
			s.log.Warn("synthesis rate limited, backing off",
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
			)
		},
	}

	out, err := retry.Do(ctx, policy, func(ctx context.Context) (synthesisResult, error) {
		var res synthesisResult
		if err := s.client.GenerateJSON(ctx, prompt, nil, synthesisSchema(), &res); err != nil {
			if inference.IsRateLimited(err) {
				s.metrics.InferenceRequestsTotal.WithLabelValues("rate_limited").Inc()
			} else {
				s.metrics.InferenceRequestsTotal.WithLabelValues("error").Inc()
			}
			return res, err
		}
		s.metrics.InferenceRequestsTotal.WithLabelValues("ok").Inc()
		return res, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSynthesisFailed, err)
	}

	s.metrics.ReportsSynthesized.Inc()
	return &report.ReportData{
		ProfileID:   profileID,
		GeneratedAt: time.Now().UTC(),
		History:     out.History,
		Summary:     out.Summary,
		Prognosis:   out.Prognosis,
	}, nil
}

// Timeline renders the records a synthesis run considers, one line per
// record, in chronological order. Duplicate-flagged records are excluded
// unless they are imaging studies: repeat imaging is often clinically
// meaningful rather than redundant. Undated records sort last.
func Timeline(docs []*document.ProcessedDocument) []string {
	kept := make([]*document.ProcessedDocument, 0, len(docs))
	for _, d := range docs {
		if d.IsDuplicate && d.Type != document.TypeImaging {
			continue
		}
		kept = append(kept, d)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		di, dj := kept[i].DocumentDate, kept[j].DocumentDate
		switch {
		case di == nil:
			return false
		case dj == nil:
			return true
		default:
			return di.Before(*dj)
		}
	})

	lines := make([]string, len(kept))
	for i, d := range kept {
		lines[i] = fmt.Sprintf("Date: %s | Type: %s | Summary: %s", d.FormattedDate(), d.Type, d.Summary)
	}
	return lines
}
