// Package checksum derives content digests and annotation cache keys.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// AnnotationKey derives the store key for one annotation run: the same
// sentence annotated under the same registry version, note mode, and
// validation mode always lands on the same row.
func AnnotationKey(sentence, registryVersion, noteMode, validationMode string) string {
	h := sha256.New()
	for _, part := range []string{sentence, registryVersion, noteMode, validationMode} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
