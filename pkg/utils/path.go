package utils

import (
	"strings"
)

// Virtual paths are the form the projection driver reports: relative to the
// virtualization root, backslash-separated, empty string for the root.

// NormalizeVirtualPath canonicalizes a virtual path: forward slashes become
// backslashes, redundant and surrounding separators are dropped.
func NormalizeVirtualPath(path string) string {
	path = strings.ReplaceAll(path, "/", `\`)
	parts := strings.Split(path, `\`)
	kept := parts[:0]
	for _, p := range parts {
		if p != "" && p != "." {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, `\`)
}

// SplitVirtualPath splits a normalized virtual path into its components.
// The root path yields no components.
func SplitVirtualPath(path string) []string {
	path = NormalizeVirtualPath(path)
	if path == "" {
		return nil
	}
	return strings.Split(path, `\`)
}

// ParentAndName splits a virtual path into its parent directory and final
// component. The root has an empty name.
func ParentAndName(path string) (parent, name string) {
	path = NormalizeVirtualPath(path)
	idx := strings.LastIndexByte(path, '\\')
	if idx < 0 {
		return "", path
	}
	return path[:idx], path[idx+1:]
}

// JoinVirtualPath joins path components with backslashes, skipping empty
// ones.
func JoinVirtualPath(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return NormalizeVirtualPath(strings.Join(kept, `\`))
}

// CompareFileNames orders two names the way the projection driver sorts
// directory entries: case-insensitive ordinal comparison via uppercase
// folding, matching PrjFileNameCompare for the names providers produce.
// Returns <0, 0 or >0.
func CompareFileNames(a, b string) int {
	return strings.Compare(strings.ToUpper(a), strings.ToUpper(b))
}

// MatchesWildcard reports whether name matches a DOS-style search
// expression using '*' and '?' metacharacters, case-insensitively. An
// empty expression or "*" matches everything, which is what the driver
// sends for an unfiltered enumeration.
func MatchesWildcard(name, pattern string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	return matchFold(strings.ToUpper(name), strings.ToUpper(pattern))
}

func matchFold(name, pattern string) bool {
	// Iterative glob with single-star backtracking.
	var ni, pi int
	starPi, starNi := -1, 0
	for ni < len(name) {
		switch {
		case pi < len(pattern) && (pattern[pi] == '?' || pattern[pi] == name[ni]):
			ni++
			pi++
		case pi < len(pattern) && pattern[pi] == '*':
			starPi, starNi = pi, ni
			pi++
		case starPi >= 0:
			starNi++
			ni = starNi
			pi = starPi + 1
		default:
			return false
		}
	}
	for pi < len(pattern) && pattern[pi] == '*' {
		pi++
	}
	return pi == len(pattern)
}
