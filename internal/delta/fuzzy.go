package delta

import (
	"os"
	"path/filepath"
	"strings"
)

// FuzzyCandidate describes a same-directory file considered as a basis
// when the exact destination path doesn't exist (spec.md §4.3 "Fuzzy
// matching").
type FuzzyCandidate struct {
	Path string
	Size int64
}

// FindFuzzyBasis scans dir for an entry whose basename stem matches want's
// stem and whose size is closest to wantSize, per spec.md §4.3: "the
// receiver scans the destination directory for a candidate with the same
// basename stem and similar size". Returns "", false if none qualifies.
//
// Per spec.md §9's resolution of the fuzzy/link-dest precedence question,
// callers MUST try an exact link-dest match first and only fall back to
// FindFuzzyBasis when that fails.
func FindFuzzyBasis(dir, want string, wantSize int64) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	stem := stemOf(want)

	var best string
	var bestDelta int64 = -1
	for _, e := range entries {
		if e.IsDir() || e.Name() == want {
			continue
		}
		if stemOf(e.Name()) != stem {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		delta := info.Size() - wantSize
		if delta < 0 {
			delta = -delta
		}
		if bestDelta < 0 || delta < bestDelta {
			bestDelta = delta
			best = e.Name()
		}
	}
	if best == "" {
		return "", false
	}
	return filepath.Join(dir, best), true
}

func stemOf(name string) string {
	base := filepath.Base(name)
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		return base[:i]
	}
	return base
}
