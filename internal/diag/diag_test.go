package diag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocate(t *testing.T) {
	src := []byte("abc\ndef\nghi")
	assert.Equal(t, Position{Line: 1, Col: 1}, Locate(src, 0))
	assert.Equal(t, Position{Line: 1, Col: 3}, Locate(src, 2))
	assert.Equal(t, Position{Line: 2, Col: 1}, Locate(src, 4))
	assert.Equal(t, Position{Line: 3, Col: 2}, Locate(src, 9))
	// Offsets past the end clamp to the last position.
	assert.Equal(t, Position{Line: 3, Col: 4}, Locate(src, 99))
}

func TestFormat(t *testing.T) {
	src := []byte("x\ny z")
	got := Format(src, 4, "parse error", "unexpected token")
	assert.Equal(t, "parse error at 2:3: unexpected token", got)
}
