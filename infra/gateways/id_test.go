package gateways

import (
	"testing"

	"github.com/google/uuid"
)

func TestUUIDGeneratorProducesDistinctIds(t *testing.T) {
	g := NewUUIDGenerator()
	a, b := g.NewId(), g.NewId()
	if a == b {
		t.Fatalf("expected distinct ids, got %s twice", a)
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Fatalf("expected a valid uuid, got %s: %v", a, err)
	}
}
