package buildinfo

import "testing"

func TestString(t *testing.T) {
	orig := [3]string{Version, Commit, BuildDate}
	t.Cleanup(func() { Version, Commit, BuildDate = orig[0], orig[1], orig[2] })

	tests := []struct {
		name                  string
		version, commit, date string
		want                  string
	}{
		{"unstamped", "", "", "", "dev"},
		{"version only", "v1.2.0", "", "", "v1.2.0"},
		{"commit only", "", "abc123", "", "dev (abc123)"},
		{"full", "v1.2.0", "abc123", "2026-01-02T03:04:05Z", "v1.2.0 (abc123, 2026-01-02T03:04:05Z)"},
		{"date without commit", "v1.2.0", "", "2026-01-02T03:04:05Z", "v1.2.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Version, Commit, BuildDate = tt.version, tt.commit, tt.date
			if got := String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}
