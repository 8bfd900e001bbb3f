package service

import (
	"encoding/json"
	"fmt"

	"github.com/raphaelgruber/deepresearch-mcp/internal/models"
)

// ExtractReport normalizes a completed engine document into report text and
// citations. The document shape is owned by the engine, so every level is
// checked before use and a structural gap is reported as ErrMalformedResult.
//
// The last output entry is the final answer; earlier entries are reasoning
// and tool-call steps. Its first content block carries the text and the
// annotation list.
func ExtractReport(doc map[string]any) (*models.Report, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: no result document", ErrMalformedResult)
	}

	output, ok := doc["output"].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: output is missing or not a list", ErrMalformedResult)
	}
	if len(output) == 0 {
		return nil, fmt.Errorf("%w: output is empty", ErrMalformedResult)
	}

	message, ok := output[len(output)-1].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: final output entry is not an object", ErrMalformedResult)
	}

	content, ok := message["content"].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: final output entry has no content list", ErrMalformedResult)
	}
	if len(content) == 0 {
		return nil, fmt.Errorf("%w: final output entry has empty content", ErrMalformedResult)
	}

	block, ok := content[0].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: first content block is not an object", ErrMalformedResult)
	}

	citations := extractCitations(block)
	return &models.Report{
		Report:        blockText(block),
		Citations:     citations,
		CitationCount: len(citations),
	}, nil
}

// extractCitations numbers annotations from 1 in their original order.
// Non-object annotations still consume an ordinal so numbering matches the
// engine's positions.
func extractCitations(block map[string]any) []models.Citation {
	annotations, _ := block["annotations"].([]any)
	citations := make([]models.Citation, 0, len(annotations))
	for i, a := range annotations {
		ann, _ := a.(map[string]any)
		c := models.Citation{ID: i + 1, Title: models.UnknownCitationTitle}
		if title, ok := ann["title"].(string); ok {
			c.Title = title
		}
		if url, ok := ann["url"].(string); ok {
			c.URL = url
		}
		if snippet, ok := ann["snippet"].(string); ok {
			c.Snippet = snippet
		}
		citations = append(citations, c)
	}
	return citations
}

// blockText returns the text field, or a best-effort rendering of the whole
// block when it has none.
func blockText(block map[string]any) string {
	if text, ok := block["text"].(string); ok {
		return text
	}
	if b, err := json.Marshal(block); err == nil {
		return string(b)
	}
	return fmt.Sprintf("%v", block)
}
