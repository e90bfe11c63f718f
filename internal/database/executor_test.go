package database

import "testing"

func TestNewExecutorRequiresPool(t *testing.T) {
	t.Parallel()

	if _, err := NewExecutor(nil, nil); err == nil {
		t.Fatal("NewExecutor(nil, nil) error = nil, want error")
	}
}
