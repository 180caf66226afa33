package pipeline

const extractionPrompt = `You are a clinical records analyst. You receive a batch of scanned medical
documents (images, PDFs, or extracted text). For EACH document, in the order
given, produce one JSON object with:
- "date": the clinical date of the document as YYYY-MM-DD, omitted if it
  cannot be determined;
- "type": one of LAB, IMAGING, PRESCRIPTION, NOTE, OTHER;
- "summary": a concise clinical summary of the document's findings;
- "isDuplicate": true if this document appears to repeat information already
  present in another document of the batch.
Return a JSON array with exactly one element per input document. If a
document is marked unprocessable, still emit an element for it with type
OTHER and a summary noting it could not be read.`

const synthesisPrompt = `You are a physician preparing a longitudinal patient summary. Below is a
chronological timeline of a patient's clinical records, one per line. Write:
- "history": a professional narrative of the patient's medical history;
- "summary": an integrated clinical summary across all records;
- "prognosis": prognosis and observations warranting follow-up.
Ground every statement in the timeline; do not invent findings.

Timeline:
`

var documentTypeEnum = []string{"LAB", "IMAGING", "PRESCRIPTION", "NOTE", "OTHER"}

// extractionSchema declares the per-document structured output: an array of
// records, one element per input file in the batch.
func extractionSchema() map[string]any {
	return map[string]any{
		"type": "ARRAY",
		"items": map[string]any{
			"type": "OBJECT",
			"properties": map[string]any{
				"date":        map[string]any{"type": "STRING"},
				"type":        map[string]any{"type": "STRING", "enum": documentTypeEnum},
				"summary":     map[string]any{"type": "STRING"},
				"isDuplicate": map[string]any{"type": "BOOLEAN"},
			},
			"required": []string{"type", "summary", "isDuplicate"},
		},
	}
}

// synthesisSchema declares the report output object.
func synthesisSchema() map[string]any {
	return map[string]any{
		"type": "OBJECT",
		"properties": map[string]any{
			"history":   map[string]any{"type": "STRING"},
			"summary":   map[string]any{"type": "STRING"},
			"prognosis": map[string]any{"type": "STRING"},
		},
		"required": []string{"history", "summary", "prognosis"},
	}
}
