package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDMKeyOrderIndependent(t *testing.T) {
	assert.Equal(t, DMKey("alice", "bob"), DMKey("bob", "alice"))
	assert.Equal(t, "alice:bob", DMKey("bob", "alice"))
	assert.Equal(t, "alice:alice", DMKey("alice", "alice"))
}
