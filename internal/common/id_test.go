package common

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRunID(t *testing.T) {
	id := NewRunID()
	require.True(t, strings.HasPrefix(id, "run_"))

	_, err := uuid.Parse(strings.TrimPrefix(id, "run_"))
	assert.NoError(t, err)
	assert.NotEqual(t, id, NewRunID())
}
