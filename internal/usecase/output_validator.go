package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"reply-orchestrator/internal/domain"
)

// DraftReply models the JSON output the prompt format section enforces.
type DraftReply struct {
	ReplyText string         `json:"reply_text"`
	Products  []DraftProduct `json:"products"`
}

// DraftProduct is one recommended item in the drafted reply.
type DraftProduct struct {
	CatalogItemID string  `json:"catalog_item_id"`
	URL           string  `json:"url"`
	Confidence    float64 `json:"confidence"`
	Reason        string  `json:"reason"`
}

// draftReplySchema constrains the structured completion output.
var draftReplySchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"reply_text": map[string]any{"type": "string"},
		"products": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"catalog_item_id": map[string]any{"type": "string"},
					"url":             map[string]any{"type": "string"},
					"confidence":      map[string]any{"type": "number"},
					"reason":          map[string]any{"type": "string"},
				},
				"required": []string{"catalog_item_id", "url", "confidence", "reason"},
			},
		},
	},
	"required": []string{"reply_text", "products"},
}

// OutputValidator parses model output and enforces the no-fabrication
// gate against the supplied candidate set.
type OutputValidator struct {
	maxLinks int
}

func NewOutputValidator(maxLinks int) OutputValidator {
	if maxLinks <= 0 {
		maxLinks = 3
	}
	return OutputValidator{maxLinks: maxLinks}
}

// Validate parses the raw JSON and repairs integrity violations:
// product references outside the candidate set are dropped and logged,
// never surfaced as a failure; fabricated URLs are replaced with the
// catalog's. A parse failure returns an error so the caller can issue
// its single repair retry.
func (v OutputValidator) Validate(raw string, candidates []CandidateContext) (*DraftReply, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, errors.New("completion response is empty")
	}

	var draft DraftReply
	if err := json.Unmarshal([]byte(trimmed), &draft); err != nil {
		return nil, fmt.Errorf("failed to parse completion response: %w", err)
	}
	if strings.TrimSpace(draft.ReplyText) == "" {
		return nil, errors.New("missing reply_text in response")
	}

	allowed := make(map[string]CandidateContext, len(candidates))
	for _, c := range candidates {
		allowed[c.CatalogItemID] = c
	}

	kept := make([]DraftProduct, 0, len(draft.Products))
	for _, p := range draft.Products {
		candidate, ok := allowed[p.CatalogItemID]
		if !ok {
			integrityErr := domain.NewError(domain.KindIntegrity,
				"dropped product %s outside candidate set", p.CatalogItemID)
			slog.Warn("fabricated_product_dropped",
				slog.String("catalog_item_id", p.CatalogItemID),
				slog.String("error", integrityErr.Error()),
			)
			continue
		}
		if p.URL != candidate.URL {
			slog.Warn("fabricated_url_repaired",
				slog.String("catalog_item_id", p.CatalogItemID),
			)
			p.URL = candidate.URL
		}
		if p.Confidence < 0 {
			p.Confidence = 0
		}
		if p.Confidence > 1 {
			p.Confidence = 1
		}
		kept = append(kept, p)
	}

	if len(kept) > v.maxLinks {
		sort.SliceStable(kept, func(i, j int) bool {
			return kept[i].Confidence > kept[j].Confidence
		})
		kept = kept[:v.maxLinks]
	}
	draft.Products = kept

	return &draft, nil
}
