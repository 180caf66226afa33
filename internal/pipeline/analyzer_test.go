package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinvault/clinvault/config"
	"github.com/clinvault/clinvault/internal/domain/document"
	"github.com/clinvault/clinvault/internal/inference"
	"github.com/clinvault/clinvault/internal/normalize"
	"github.com/clinvault/clinvault/pkg/metrics"
)

// One collector for the whole test binary; registering twice panics.
var testMetrics = metrics.NewCollector("pipeline_test")

// stubClient scripts inference responses per call. respond receives the
// 1-based call number and fills out the way the real client would.
type stubClient struct {
	calls   int
	respond func(call int, instruction string, parts []inference.Part, out any) error
}

func (s *stubClient) GenerateJSON(ctx context.Context, instruction string, parts []inference.Part, schema map[string]any, out any) error {
	s.calls++
	return s.respond(s.calls, instruction, parts, out)
}

// fill round-trips a value through JSON into out, mirroring the transport.
func fill(out any, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func testPipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		BatchSize:         1,
		InterBatchDelay:   time.Millisecond,
		MaxAttempts:       2,
		SynthesisAttempts: 2,
		BackoffBaseDelay:  time.Millisecond,
	}
}

func newTestAnalyzer(client inference.Client) *Analyzer {
	n := normalize.New(normalize.NewDocxExtractor(), zap.NewNop())
	return NewAnalyzer(client, n, testPipelineConfig(), testMetrics, zap.NewNop())
}

func textFiles(n int) []normalize.FileInput {
	files := make([]normalize.FileInput, n)
	for i := range files {
		files[i] = normalize.FileInput{
			Filename: fmt.Sprintf("report-%d.txt", i),
			MimeType: "text/plain",
			Data:     []byte(fmt.Sprintf("lab result %d", i)),
		}
	}
	return files
}

func TestAnalyzeBatch_OneResultPerFileInOrder(t *testing.T) {
	client := &stubClient{respond: func(call int, _ string, parts []inference.Part, out any) error {
		return fill(out, []map[string]any{{
			"date":        "2023-01-05",
			"type":        "LAB",
			"summary":     fmt.Sprintf("summary for call %d", call),
			"isDuplicate": false,
		}})
	}}
	a := newTestAnalyzer(client)

	files := textFiles(3)
	results := a.AnalyzeBatch(context.Background(), uuid.New(), files, nil)

	if len(results) != len(files) {
		t.Fatalf("got %d results for %d files", len(results), len(files))
	}
	for i, r := range results {
		if r.Degraded {
			t.Errorf("result %d unexpectedly degraded: %s", i, r.Reason)
		}
		if r.Doc.SourceName != files[i].Filename {
			t.Errorf("result %d out of order: source %q, want %q", i, r.Doc.SourceName, files[i].Filename)
		}
		if r.Doc.Type != document.TypeLab {
			t.Errorf("result %d type = %s, want LAB", i, r.Doc.Type)
		}
	}
	if client.calls != 3 {
		t.Errorf("expected 3 inference calls for batch size 1, got %d", client.calls)
	}
}

func TestAnalyzeBatch_AllBatchesFailYieldPlaceholders(t *testing.T) {
	client := &stubClient{respond: func(int, string, []inference.Part, any) error {
		return &inference.APIError{StatusCode: 429, Status: "RESOURCE_EXHAUSTED", Message: "quota"}
	}}
	a := newTestAnalyzer(client)

	files := textFiles(2)
	results := a.AnalyzeBatch(context.Background(), uuid.New(), files, nil)

	if len(results) != len(files) {
		t.Fatalf("got %d results for %d files", len(results), len(files))
	}
	for i, r := range results {
		if !r.Degraded {
			t.Errorf("result %d should be a placeholder", i)
		}
		if r.Doc == nil {
			t.Fatalf("placeholder %d has no document", i)
		}
		if r.Doc.Type != document.TypeOther {
			t.Errorf("placeholder %d type = %s, want OTHER", i, r.Doc.Type)
		}
		if r.Doc.SourceName != files[i].Filename {
			t.Errorf("placeholder %d source = %q, want %q", i, r.Doc.SourceName, files[i].Filename)
		}
	}
	// 2 files, batch size 1, 2 attempts each.
	if client.calls != 4 {
		t.Errorf("expected 4 inference calls, got %d", client.calls)
	}
}

func TestAnalyzeBatch_PartialFailurePreservesCountAndOrder(t *testing.T) {
	// Second batch fails terminally; its file degrades, the rest succeed.
	client := &stubClient{respond: func(call int, _ string, _ []inference.Part, out any) error {
		if call == 2 {
			return &inference.APIError{StatusCode: 400, Status: "INVALID_ARGUMENT", Message: "bad"}
		}
		return fill(out, []map[string]any{{"type": "NOTE", "summary": "ok", "isDuplicate": false}})
	}}
	a := newTestAnalyzer(client)

	files := textFiles(3)
	results := a.AnalyzeBatch(context.Background(), uuid.New(), files, nil)

	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results[0].Degraded || results[2].Degraded {
		t.Error("successful batches must not degrade")
	}
	if !results[1].Degraded {
		t.Error("failed batch must degrade")
	}
	for i, r := range results {
		if r.Doc.SourceName != files[i].Filename {
			t.Errorf("result %d out of order", i)
		}
	}
}

func TestAnalyzeBatch_ProgressMonotonicAndComplete(t *testing.T) {
	client := &stubClient{respond: func(_ int, _ string, _ []inference.Part, out any) error {
		return fill(out, []map[string]any{{"type": "LAB", "summary": "s", "isDuplicate": false}})
	}}
	a := newTestAnalyzer(client)

	var seen []int
	files := textFiles(4)
	a.AnalyzeBatch(context.Background(), uuid.New(), files, func(processed, total int) {
		if total != len(files) {
			t.Errorf("total = %d, want %d", total, len(files))
		}
		seen = append(seen, processed)
	})

	if len(seen) == 0 || seen[len(seen)-1] != len(files) {
		t.Fatalf("progress must end at %d, saw %v", len(files), seen)
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] <= seen[i-1] {
			t.Errorf("progress not monotonic: %v", seen)
		}
	}
}

func TestAnalyzeBatch_FieldFallbacks(t *testing.T) {
	client := &stubClient{respond: func(_ int, _ string, _ []inference.Part, out any) error {
		return fill(out, []map[string]any{{
			"date":        "not-a-date",
			"type":        "SURGERY",
			"summary":     "",
			"isDuplicate": true,
		}})
	}}
	a := newTestAnalyzer(client)

	results := a.AnalyzeBatch(context.Background(), uuid.New(), textFiles(1), nil)
	doc := results[0].Doc
	if doc.Type != document.TypeOther {
		t.Errorf("unknown type must fall back to OTHER, got %s", doc.Type)
	}
	if doc.DocumentDate != nil {
		t.Error("unparseable date must be discarded")
	}
	if doc.Summary == "" {
		t.Error("empty summary must be replaced with a fallback")
	}
	if !doc.IsDuplicate {
		t.Error("duplicate flag must be carried through")
	}
}

func TestAnalyzeBatch_ShortResponseDegradesMissingFiles(t *testing.T) {
	client := &stubClient{respond: func(_ int, _ string, _ []inference.Part, out any) error {
		// One element for a two-file batch.
		return fill(out, []map[string]any{{"type": "LAB", "summary": "s", "isDuplicate": false}})
	}}
	n := normalize.New(normalize.NewDocxExtractor(), zap.NewNop())
	cfg := testPipelineConfig()
	cfg.BatchSize = 2
	a := NewAnalyzer(client, n, cfg, testMetrics, zap.NewNop())

	results := a.AnalyzeBatch(context.Background(), uuid.New(), textFiles(2), nil)
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Degraded {
		t.Error("covered file must not degrade")
	}
	if !results[1].Degraded {
		t.Error("uncovered file must degrade")
	}
}

func TestAnalyzeBatch_CancelledContextStillReturnsAllResults(t *testing.T) {
	client := &stubClient{respond: func(_ int, _ string, _ []inference.Part, out any) error {
		return fill(out, []map[string]any{{"type": "LAB", "summary": "s", "isDuplicate": false}})
	}}
	a := newTestAnalyzer(client)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	files := textFiles(3)
	results := a.AnalyzeBatch(ctx, uuid.New(), files, nil)
	if len(results) != len(files) {
		t.Fatalf("got %d results for %d files after cancellation", len(results), len(files))
	}
	for i, r := range results {
		if !r.Degraded {
			t.Errorf("result %d should be degraded after cancellation", i)
		}
	}
}
