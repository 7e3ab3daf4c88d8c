package logging

import "testing"

func TestNopDoesNotPanicOnLogCalls(t *testing.T) {
	l := Nop()
	l.Info("hello")
	l.Sugar().Infof("world %d", 1)
}

func TestOrNopSubstitutesNilLogger(t *testing.T) {
	l := OrNop(nil)
	if l == nil {
		t.Fatal("OrNop(nil) returned nil")
	}
	l.Info("still safe")
}

func TestOrNopPassesThroughNonNilLogger(t *testing.T) {
	given := Default()
	got := OrNop(given)
	if got != given {
		t.Fatal("OrNop must return the given logger unchanged when non-nil")
	}
}
