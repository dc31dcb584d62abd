package sqldriver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValid(t *testing.T) {
	assert.True(t, Valid(SQLite))
	assert.True(t, Valid(SQLite3))
	assert.False(t, Valid(""))
	assert.False(t, Valid("postgres"))
}
