package strategy

import (
	"context"
	"errors"
	"fmt"

	"github.com/sourcelens-io/sourcelens/internal/extract"
	"github.com/sourcelens-io/sourcelens/internal/llmclient"
)

// ErrExtractionSynthesisFailed is returned when every validation attempt
// is exhausted without an accepted extraction program: a code-generation
// miss after repeated attempts, fatal for that response but not the
// overall run.
var ErrExtractionSynthesisFailed = errors.New("strategy: extraction code synthesis failed validation")

const extractionMaxAttempts = 3

// bodyTruncateLen bounds how much of an offending body is fed back into a
// repair prompt.
const bodyTruncateLen = 2000

// synthesizeExtraction runs the full extraction-code synthesis pipeline:
// schema conversion (already done by the caller via ToJSONSchema),
// prompt, and a bounded validation loop that executes the candidate
// program against the real body and retries with a repair instruction on
// failure.
func synthesizeExtraction(ctx context.Context, llm llmclient.Client, jsonSchema map[string]interface{}, body string, hint *RepeatHint, schema OutputSchema) (string, []map[string]interface{}, error) {
	sampleBody := truncateForPrompt(body)
	repairNote := ""
	if hint != nil {
		repairNote = fmt.Sprintf("The response appears to contain a repeated listing of about %d %q elements; prefer an array-valued extraction over a single record.", hint.Count, hint.ArrayName)
	}

	var lastErr error
	for attempt := 0; attempt < extractionMaxAttempts; attempt++ {
		program, _, err := llm.SynthesizeExtraction(ctx, jsonSchema, sampleBody, repairNote)
		if err != nil {
			lastErr = err
			continue
		}

		records, err := extract.Run(program.Query, body)
		if err != nil {
			lastErr = err
			repairNote = fmt.Sprintf("Attempt %d failed: %v. Offending body (truncated): %s", attempt+1, err, sampleBody)
			continue
		}

		conformed := ConformAll(records, schema)
		if len(conformed) == 0 {
			lastErr = fmt.Errorf("strategy: extraction returned no records matching the output schema")
			repairNote = fmt.Sprintf("Attempt %d produced no schema-conforming records. Offending body (truncated): %s", attempt+1, sampleBody)
			continue
		}

		return program.Query, conformed, nil
	}

	return "", nil, fmt.Errorf("%w: %v", ErrExtractionSynthesisFailed, lastErr)
}

func truncateForPrompt(body string) string {
	if len(body) <= bodyTruncateLen {
		return body
	}
	return body[:bodyTruncateLen]
}
