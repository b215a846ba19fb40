package scan

import (
	"testing"
)

func TestFilterMatch(t *testing.T) {
	tests := []struct {
		name   string
		filter *Filter
		path   string
		size   int64
		want   bool
	}{
		{
			name:   "empty filter matches all",
			filter: &Filter{},
			path:   "docs/readme.md",
			size:   10,
			want:   true,
		},
		{
			name:   "include by extension",
			filter: &Filter{Include: []string{"*.png"}},
			path:   "assets/logo.png",
			want:   true,
		},
		{
			name:   "include miss",
			filter: &Filter{Include: []string{"*.png"}},
			path:   "assets/logo.jpg",
			want:   false,
		},
		{
			name:   "include by relative path",
			filter: &Filter{Include: []string{"assets/*"}},
			path:   "assets/logo.jpg",
			want:   true,
		},
		{
			name:   "exclude wins over include",
			filter: &Filter{Include: []string{"*"}, Exclude: []string{"*.tmp"}},
			path:   "build/out.tmp",
			want:   false,
		},
		{
			name:   "question mark wildcard",
			filter: &Filter{Include: []string{"file?.bin"}},
			path:   "file1.bin",
			want:   true,
		},
		{
			name:   "dots are literal",
			filter: &Filter{Include: []string{"a.txt"}},
			path:   "abtxt",
			want:   false,
		},
		{
			name:   "below min size",
			filter: &Filter{MinSize: 100},
			path:   "small.bin",
			size:   99,
			want:   false,
		},
		{
			name:   "above max size",
			filter: &Filter{MaxSize: 100},
			path:   "big.bin",
			size:   101,
			want:   false,
		},
		{
			name:   "within bounds",
			filter: &Filter{MinSize: 1, MaxSize: 100},
			path:   "ok.bin",
			size:   100,
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.filter.Compile(); err != nil {
				t.Fatalf("Compile failed: %v", err)
			}
			if got := tt.filter.Match(tt.path, tt.size); got != tt.want {
				t.Errorf("Match(%q, %d) = %v, want %v", tt.path, tt.size, got, tt.want)
			}
		})
	}
}

func TestFilterSkipDir(t *testing.T) {
	f := &Filter{ExcludeDirs: []string{".git", "node_*"}}
	if err := f.Compile(); err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	if !f.SkipDir(".git") {
		t.Error("expected .git to be skipped")
	}
	if !f.SkipDir("node_modules") {
		t.Error("expected node_modules to be skipped")
	}
	if f.SkipDir("src") {
		t.Error("src should not be skipped")
	}
}

func TestWildcardToRegexp(t *testing.T) {
	tests := []struct {
		pattern string
		input   string
		want    bool
	}{
		{"*.go", "main.go", true},
		{"*.go", "main.go.bak", false},
		{"[draft]*", "[draft] notes", true},
		{"a+b", "a+b", true},
		{"a+b", "aab", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.input, func(t *testing.T) {
			re, err := wildcardToRegexp(tt.pattern)
			if err != nil {
				t.Fatalf("wildcardToRegexp(%q) failed: %v", tt.pattern, err)
			}
			if got := re.MatchString(tt.input); got != tt.want {
				t.Errorf("%q matching %q = %v, want %v", tt.pattern, tt.input, got, tt.want)
			}
		})
	}
}
