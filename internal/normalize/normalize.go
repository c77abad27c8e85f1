// Package normalize implements the Normalizer: canonicalizes a raw
// TelemetryRecord (default-filling, byte-length truncation) and rejects
// duplicates seen within a bounded recent-trace_id window.
package normalize

import (
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	"github.com/guardianai/telemetry-pipeline/internal/config"
	"github.com/guardianai/telemetry-pipeline/internal/record"
)

const defaultUserID = "anonymous"

// Normalizer owns the dedup window; it is safe for concurrent use.
type Normalizer struct {
	cfg   *config.PipelineConfig
	dedup *lruSet
}

func New(cfg *config.PipelineConfig) *Normalizer {
	return &Normalizer{
		cfg:   cfg,
		dedup: newLRUSet(cfg.DedupWindowSize),
	}
}

// Normalize fills defaults, truncates oversized fields, and checks the
// dedup window. It mutates rec in place and returns record.DuplicateError
// if rec.TraceID was already seen within the window's capacity.
func (n *Normalizer) Normalize(rec *record.TelemetryRecord) error {
	n.fillDefaults(rec)
	n.truncateFields(rec)

	fp := fingerprint(rec.TraceID)
	if !n.dedup.addIfAbsent(fp) {
		return &record.DuplicateError{TraceID: rec.TraceID}
	}
	return nil
}

func (n *Normalizer) fillDefaults(rec *record.TelemetryRecord) {
	if rec.UserID == "" {
		rec.UserID = defaultUserID
	}
	if rec.Tags == nil {
		rec.Tags = make(map[string]string)
	}
}

func (n *Normalizer) truncateFields(rec *record.TelemetryRecord) {
	limit := n.cfg.MaxFieldBytes
	rec.Prompt = truncateUTF8(rec.Prompt, limit)
	rec.Response = truncateUTF8(rec.Response, limit)
}

// truncateUTF8 truncates s to at most limit bytes without splitting a
// multi-byte rune, so downstream JSON encoding never produces invalid
// UTF-8.
func truncateUTF8(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	b := s[:limit]
	for len(b) > 0 && !utf8.ValidString(b) {
		b = b[:len(b)-1]
	}
	return b
}

func fingerprint(traceID string) uint64 {
	return xxhash.Sum64String(traceID)
}
