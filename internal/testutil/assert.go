package testutil

import (
	"strings"

	"github.com/google/go-cmp/cmp"
)

// AssertFileNotExists fails the test if the file exists.
func (v *TestVault) AssertFileNotExists(relPath string) {
	v.t.Helper()
	if v.FileExists(relPath) {
		v.t.Errorf("expected %s not to exist", relPath)
	}
}

// AssertFileContains fails the test unless the file contains substr.
func (v *TestVault) AssertFileContains(relPath, substr string) {
	v.t.Helper()
	if content := v.ReadFile(relPath); !strings.Contains(content, substr) {
		v.t.Errorf("expected %s to contain %q, got:\n%s", relPath, substr, content)
	}
}

// AssertFileNotContains fails the test if the file contains substr.
func (v *TestVault) AssertFileNotContains(relPath, substr string) {
	v.t.Helper()
	if content := v.ReadFile(relPath); strings.Contains(content, substr) {
		v.t.Errorf("expected %s not to contain %q, got:\n%s", relPath, substr, content)
	}
}

// AssertFileEquals compares the file line by line against want and reports
// a diff on mismatch.
func (v *TestVault) AssertFileEquals(relPath, want string) {
	v.t.Helper()
	got := v.ReadFile(relPath)
	if got == want {
		return
	}
	diff := cmp.Diff(strings.Split(want, "\n"), strings.Split(got, "\n"))
	v.t.Errorf("%s mismatch (-want +got):\n%s", relPath, diff)
}
