//go:build !windows

package singleton

import "testing"

func TestAcquireThenSecondAcquireReportsNotPrimary(t *testing.T) {
	first, err := Acquire()
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	if first == nil {
		t.Fatal("first Acquire returned nil lock, want the primary instance")
	}
	defer first.Release()

	second, err := Acquire()
	if err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	if second != nil {
		t.Fatal("second Acquire succeeded, want nil (already running)")
	}
}
