package review

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/citl-review-server/internal/domain"
)

// CanonicalJSON produces the canonical serialization of v: every mapping's
// keys sorted recursively, independent of input field order or the host
// collection's iteration order. The value is round-tripped through a generic
// JSON tree; encoding/json marshals map keys in sorted order, which gives the
// canonical form directly.
func CanonicalJSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling value: %w", err)
	}

	var tree interface{}
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("rebuilding JSON tree: %w", err)
	}

	canonical, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("marshaling canonical form: %w", err)
	}
	return canonical, nil
}

// SignatureHash computes the SHA-256 digest of the document's canonical
// serialization, rendered as 64 lowercase hex characters. Any signature hash
// already present on the attestation is excluded, so the digest always covers
// the unsigned document content.
func SignatureHash(doc *domain.ReviewDocument) (string, error) {
	unsigned := *doc
	unsigned.Attestation.SignatureHash = ""

	canonical, err := CanonicalJSON(&unsigned)
	if err != nil {
		return "", fmt.Errorf("canonicalizing review document: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
