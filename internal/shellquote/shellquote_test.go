package shellquote

import "testing"

func TestQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "'plain'"},
		{"with space", "'with space'"},
		{"it's", `'it'\''s'`},
	}
	for _, tt := range tests {
		if got := Quote(tt.in); got != tt.want {
			t.Errorf("Quote(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExpand(t *testing.T) {
	got := Expand("fmt {path} --date={date} {other}", map[string]string{
		"path": "/vault/daily/2024-05-01.md",
		"date": "2024-05-01",
	})
	want := "fmt '/vault/daily/2024-05-01.md' --date='2024-05-01' {other}"
	if got != want {
		t.Fatalf("Expand = %q, want %q", got, want)
	}
}
