package cache

import (
	"strings"

	"github.com/refhub/citation-service/internal/domain"
)

// VerificationKey derives the cache key for a verified citation. Two
// citations that resolve to the same canonical identity share one entry.
func VerificationKey(query domain.StructuredQuery) string {
	return "verify:" + query.CanonicalKey()
}

// BatchResultKey derives the correlation-scoped key under which batch
// verification results are published for polling.
func BatchResultKey(correlationID string, query domain.StructuredQuery) string {
	return "batch:" + correlationID + ":" + query.CanonicalKey()
}

// TopicKey derives the cache key for a ranked discovery list.
func TopicKey(topic, field, academicLevel string) string {
	return "topic:" + foldKeyPart(topic) + ":" + foldKeyPart(field) + ":" + foldKeyPart(academicLevel)
}

// foldKeyPart lowercases and collapses whitespace so trivially different
// spellings of the same topic share a cache entry.
func foldKeyPart(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
