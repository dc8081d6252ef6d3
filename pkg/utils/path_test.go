package utils

import "testing"

func TestNormalizeVirtualPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{`\`, ""},
		{"a.txt", "a.txt"},
		{`sub\a.txt`, `sub\a.txt`},
		{"sub/a.txt", `sub\a.txt`},
		{`\sub\\a.txt\`, `sub\a.txt`},
		{`.\sub\.\a.txt`, `sub\a.txt`},
	}

	for _, tt := range tests {
		if got := NormalizeVirtualPath(tt.in); got != tt.want {
			t.Errorf("NormalizeVirtualPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParentAndName(t *testing.T) {
	tests := []struct {
		in     string
		parent string
		name   string
	}{
		{"", "", ""},
		{"a.txt", "", "a.txt"},
		{`sub\a.txt`, "sub", "a.txt"},
		{`a\b\c`, `a\b`, "c"},
	}

	for _, tt := range tests {
		parent, name := ParentAndName(tt.in)
		if parent != tt.parent || name != tt.name {
			t.Errorf("ParentAndName(%q) = (%q, %q), want (%q, %q)",
				tt.in, parent, name, tt.parent, tt.name)
		}
	}
}

func TestJoinVirtualPath(t *testing.T) {
	if got := JoinVirtualPath("sub", "a.txt"); got != `sub\a.txt` {
		t.Errorf("JoinVirtualPath = %q", got)
	}
	if got := JoinVirtualPath("", "a.txt"); got != "a.txt" {
		t.Errorf("JoinVirtualPath with empty parent = %q", got)
	}
}

func TestCompareFileNames(t *testing.T) {
	if CompareFileNames("a.txt", "B.txt") >= 0 {
		t.Error("expected a.txt < B.txt case-insensitively")
	}
	if CompareFileNames("README", "readme") != 0 {
		t.Error("expected case-insensitive equality")
	}
	if CompareFileNames("sub", "a.txt") <= 0 {
		t.Error("expected sub > a.txt")
	}
}

func TestMatchesWildcard(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		want    bool
	}{
		{"a.txt", "", true},
		{"a.txt", "*", true},
		{"a.txt", "*.txt", true},
		{"a.TXT", "*.txt", true},
		{"a.txt", "*.dat", false},
		{"a.txt", "a.???", true},
		{"a.txt", "?.txt", true},
		{"ab.txt", "?.txt", false},
		{"report-2024.csv", "report-*.csv", true},
		{"report-2024.csv", "report-*.txt", false},
		{"abc", "a*b*c", true},
		{"abc", "a*d", false},
	}

	for _, tt := range tests {
		if got := MatchesWildcard(tt.name, tt.pattern); got != tt.want {
			t.Errorf("MatchesWildcard(%q, %q) = %v, want %v",
				tt.name, tt.pattern, got, tt.want)
		}
	}
}
