package version

import "testing"

func TestString(t *testing.T) {
	oldV, oldC, oldD := Version, Commit, Date
	t.Cleanup(func() { Version, Commit, Date = oldV, oldC, oldD })

	Version, Commit, Date = "v1.2.3", "abc1234", "2024-06-01"
	if got, want := String(), "v1.2.3 (commit: abc1234, built: 2024-06-01)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
