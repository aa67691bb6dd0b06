package repository

import (
	"time"

	"reply-orchestrator/internal/domain"
)

// The typed meta unions live in the domain; they are flattened to JSONB
// maps only here, at the storage edge.

func docMetaToMap(st domain.SourceType, meta domain.DocumentMeta) map[string]any {
	switch st {
	case domain.SourceTranscript:
		if meta.Transcript == nil {
			return map[string]any{}
		}
		return map[string]any{
			"content_item_id": meta.Transcript.ContentItemID,
			"title":           meta.Transcript.Title,
			"url":             meta.Transcript.URL,
			"language":        meta.Transcript.Language,
		}
	case domain.SourceCatalogItem:
		if meta.Catalog == nil {
			return map[string]any{}
		}
		return map[string]any{
			"title":    meta.Catalog.Title,
			"url":      meta.Catalog.URL,
			"brand":    meta.Catalog.Brand,
			"category": meta.Catalog.Category,
			"price":    meta.Catalog.Price,
			"tags":     meta.Catalog.Tags,
		}
	case domain.SourceComment:
		if meta.Comment == nil {
			return map[string]any{}
		}
		m := map[string]any{
			"content_item_id": meta.Comment.ContentItemID,
			"author":          meta.Comment.Author,
		}
		if !meta.Comment.PostedAt.IsZero() {
			m["posted_at"] = meta.Comment.PostedAt.Format(time.RFC3339)
		}
		return m
	}
	return map[string]any{}
}

func docMetaFromMap(st domain.SourceType, raw map[string]any) domain.DocumentMeta {
	switch st {
	case domain.SourceTranscript:
		return domain.DocumentMeta{Transcript: &domain.TranscriptMeta{
			ContentItemID: asString(raw["content_item_id"]),
			Title:         asString(raw["title"]),
			URL:           asString(raw["url"]),
			Language:      asString(raw["language"]),
		}}
	case domain.SourceCatalogItem:
		return domain.DocumentMeta{Catalog: &domain.CatalogMeta{
			Title:    asString(raw["title"]),
			URL:      asString(raw["url"]),
			Brand:    asString(raw["brand"]),
			Category: asString(raw["category"]),
			Price:    asFloat(raw["price"]),
			Tags:     asStrings(raw["tags"]),
		}}
	case domain.SourceComment:
		cm := &domain.CommentMeta{
			ContentItemID: asString(raw["content_item_id"]),
			Author:        asString(raw["author"]),
		}
		if ts, err := time.Parse(time.RFC3339, asString(raw["posted_at"])); err == nil {
			cm.PostedAt = ts
		}
		return domain.DocumentMeta{Comment: cm}
	}
	return domain.DocumentMeta{}
}

func chunkMetaToMap(meta domain.ChunkMeta) map[string]any {
	m := map[string]any{}
	if meta.Category != "" {
		m["category"] = meta.Category
	}
	if meta.TimeOffsetSec != 0 {
		m["time_offset_sec"] = meta.TimeOffsetSec
	}
	return m
}

func chunkMetaFromMap(raw map[string]any) domain.ChunkMeta {
	return domain.ChunkMeta{
		Category:      asString(raw["category"]),
		TimeOffsetSec: int(asFloat(raw["time_offset_sec"])),
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return 0
}

func asStrings(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
