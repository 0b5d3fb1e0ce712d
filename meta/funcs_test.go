package meta_test

import (
	"testing"

	"github.com/suxinde2009/ptsafe/meta"
)

func TestOr(t *testing.T) {
	if got := meta.Or(0, 5); got != 5 {
		t.Fatalf("Or(0, 5) = %d, want 5", got)
	}
	if got := meta.Or(3, 5); got != 3 {
		t.Fatalf("Or(3, 5) = %d, want 3", got)
	}
	if got := meta.Or("", "b", "c"); got != "b" {
		t.Fatalf("Or(\"\", \"b\", \"c\") = %q, want %q", got, "b")
	}
	if got := meta.Or[string](); got != "" {
		t.Fatalf("Or() = %q, want empty", got)
	}
}
