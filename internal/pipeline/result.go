package pipeline

import "github.com/clinvault/clinvault/internal/domain/document"

// Result is the per-file outcome of a batch run: either a record extracted
// by the inference service, or a placeholder produced when normalization or
// inference failed for that file. Both cases carry a document, so a run of N
// files always yields N records.
type Result struct {
	Doc      *document.ProcessedDocument
	Degraded bool
	Reason   string
}

func ok(doc *document.ProcessedDocument) Result {
	return Result{Doc: doc}
}

func degraded(doc *document.ProcessedDocument, reason string) Result {
	return Result{Doc: doc, Degraded: true, Reason: reason}
}

// Documents flattens results into records, preserving order.
func Documents(results []Result) []*document.ProcessedDocument {
	docs := make([]*document.ProcessedDocument, len(results))
	for i, r := range results {
		docs[i] = r.Doc
	}
	return docs
}

// ProgressFunc receives (files processed so far, total files) after each batch.
type ProgressFunc func(processed, total int)
