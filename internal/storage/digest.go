package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"regexp"

	appErr "gradebox/pkg/errors"
)

var digestPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// NewDigester returns the hash used to derive blob digests.
func NewDigester() hash.Hash {
	return sha256.New()
}

// DigestString encodes a finished digest hash as its canonical string form.
func DigestString(h hash.Hash) string {
	return hex.EncodeToString(h.Sum(nil))
}

// ValidateDigest reports whether digest is a well-formed content identifier.
func ValidateDigest(digest string) error {
	if !digestPattern.MatchString(digest) {
		return appErr.New(appErr.DigestInvalid).WithDetail("digest", digest)
	}
	return nil
}

// objectKey fans blobs out into two-level directories so neither object
// listings nor local directories grow unbounded at a single level.
func objectKey(digest string) string {
	return digest[0:2] + "/" + digest[2:4] + "/" + digest
}
