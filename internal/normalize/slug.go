package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

const (
	maxSlugLen = 64
	hashLen    = 6
)

// Slug lowercases s, collapses every run of non-alphanumerics into a single
// hyphen and trims hyphens from both ends. Slugs longer than 64 characters
// are truncated and suffixed with a short hash of the untruncated slug.
func Slug(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingHyphen := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	out := b.String()
	if len(out) <= maxSlugLen {
		return out
	}
	return withSuffix(out, shortHash(out))
}

// withSuffix appends "-<suffix>" to base, cutting base so the result stays
// within maxSlugLen.
func withSuffix(base, suffix string) string {
	limit := maxSlugLen - len(suffix) - 1
	if len(base) > limit {
		base = strings.TrimRight(base[:limit], "-")
	}
	return base + "-" + suffix
}

func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:hashLen]
}

// idAllocator hands out unique ids within one scope (a document's weeks or a
// week's items). A duplicate base id gets a hash suffix derived from the base
// and its occurrence number, never a bare counter.
type idAllocator struct {
	used map[string]int
}

func newIDAllocator() *idAllocator {
	return &idAllocator{used: map[string]int{}}
}

func (a *idAllocator) claim(base string) string {
	if _, taken := a.used[base]; !taken {
		a.used[base] = 1
		return base
	}
	for {
		a.used[base]++
		candidate := withSuffix(base, shortHash(base+"#"+strconv.Itoa(a.used[base])))
		if _, taken := a.used[candidate]; !taken {
			a.used[candidate] = 1
			return candidate
		}
	}
}
