package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes.
// The version suffix allows a future algorithm migration without
// invalidating stored hashes silently.
const (
	DomainInput    = "phdtrack/input/v1"
	DomainOutput   = "phdtrack/output/v1"
	DomainEvidence = "phdtrack/evidence/v1"
	DomainDocument = "phdtrack/document/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data), hex encoded.
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash returns the domain-separated hash of v's canonical JSON.
func Hash(domain string, v any) (string, error) {
	data, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", domain, err)
	}
	return hashWithDomain(domain, data), nil
}

// HashBytes hashes already-canonical bytes (or opaque content such as an
// uploaded document) under a domain.
func HashBytes(domain string, data []byte) string {
	return hashWithDomain(domain, data)
}

// InputHash identifies one orchestrator invocation's input. The orchestrator
// name is folded in so identical payloads sent to different orchestrators
// never share a hash.
func InputHash(orchestrator string, input any) (string, error) {
	in, err := Normalize(input)
	if err != nil {
		return "", fmt.Errorf("input hash: %w", err)
	}
	return Hash(DomainInput, Object{
		"orchestrator": String(orchestrator),
		"input":        in,
	})
}

// OutputHash hashes a canonical result payload as stored in the ledger.
func OutputHash(payload []byte) string {
	return hashWithDomain(DomainOutput, payload)
}
