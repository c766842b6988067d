// Package pathutil validates filesystem paths accepted from callers before
// they reach save/load operations in the vector index, router, and witness
// chain.
package pathutil

import (
	"strings"

	coreerrors "github.com/agentmem/agentmem/internal/errors"
)

// MaxPathLength is the longest path accepted by any persistence operation.
const MaxPathLength = 4096

// forbiddenPrefixes are system directories no store path may resolve under.
var forbiddenPrefixes = []string{"/etc", "/proc", "/sys", "/dev"}

// Validate rejects paths containing traversal segments, null bytes, or a
// system-directory prefix, and enforces MaxPathLength.
func Validate(path string) error {
	if path == "" {
		return coreerrors.ValidationError("path must not be empty", nil)
	}
	if len(path) > MaxPathLength {
		return coreerrors.ValidationError("path exceeds maximum length", nil).
			WithDetail("max_length", "4096")
	}
	if strings.ContainsRune(path, 0) {
		return coreerrors.ValidationError("path must not contain null bytes", nil)
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == ".." {
			return coreerrors.ValidationError("path must not contain '..' segments", nil).
				WithDetail("path", path)
		}
	}
	for _, prefix := range forbiddenPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return coreerrors.ValidationError("path must not resolve under a system directory", nil).
				WithDetail("path", path).
				WithDetail("forbidden_prefix", prefix)
		}
	}
	return nil
}
