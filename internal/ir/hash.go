package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainContent = "tabstore/content/v1"
	DomainSchema  = "tabstore/schema/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ContentHash computes the identity of a store's content. Two stores holding
// the same tables and values hash equal regardless of insertion order.
// Persisters use it to skip redundant saves.
func ContentHash(c Content) (string, error) {
	canonical, err := MarshalCanonical(c)
	if err != nil {
		return "", fmt.Errorf("ContentHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainContent, canonical), nil
}

// SchemaHash computes the identity of a compiled schema document.
func SchemaHash(schema any) (string, error) {
	canonical, err := MarshalCanonical(schema)
	if err != nil {
		return "", fmt.Errorf("SchemaHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSchema, canonical), nil
}

// MustContentHash is like ContentHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustContentHash(c Content) string {
	h, err := ContentHash(c)
	if err != nil {
		panic(err)
	}
	return h
}
