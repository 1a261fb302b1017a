package generator

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/bobmcallan/toolsmith/internal/models"
)

// MaxNameLength is the longest operation name emitted. MCP clients commonly
// reject tool names over 64 characters.
const MaxNameLength = 64

// hashSuffixLength is the number of hex digits appended to shortened names.
const hashSuffixLength = 8

// OperationName derives the operation name from kind and target. It is a pure
// function: equal inputs always give equal names.
func OperationName(kind models.OperationKind, target string) string {
	prefix := string(kind)
	if kind == models.OpProcedure {
		prefix = "call"
	}
	name := prefix + "_" + slug(target)
	if len(name) <= MaxNameLength {
		return name
	}
	sum := sha256.Sum256([]byte(name))
	cut := MaxNameLength - hashSuffixLength - 1
	return strings.TrimRight(name[:cut], "_") + "_" + hex.EncodeToString(sum[:])[:hashSuffixLength]
}

// slug lowercases s and collapses every run of other characters into one
// underscore.
func slug(s string) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	if b.Len() == 0 {
		return "unnamed"
	}
	return b.String()
}
