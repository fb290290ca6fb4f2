package valkey

import (
	"errors"
	"testing"
)

func TestNamespaced(t *testing.T) {
	if got := namespaced("skyhop", "routes:vehicle:v1"); got != "skyhop:routes:vehicle:v1" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := namespaced("", "routes:vehicle:v1"); got != "routes:vehicle:v1" {
		t.Fatalf("empty namespace should leave the key alone, got %q", got)
	}
}

func TestIsMiss_IgnoresOtherErrors(t *testing.T) {
	if IsMiss(errors.New("connection refused")) {
		t.Fatal("a transport error is not a miss")
	}
	if IsMiss(nil) {
		t.Fatal("nil is not a miss")
	}
}
