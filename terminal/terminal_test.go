package terminal

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuboc/chip8vm/emulator"
)

func TestRenderBlank(t *testing.T) {
	var buf bytes.Buffer
	fb := emulator.Framebuffer{}
	require.NoError(t, Render(&buf, &fb, false))

	out := strings.TrimPrefix(buf.String(), cursorHome)
	lines := strings.Split(out, "\r\n")
	require.Len(t, lines, Rows)
	for _, l := range lines[:Rows-1] {
		assert.Equal(t, strings.Repeat(" ", Cols), l)
	}
	assert.Equal(t, "      ", lines[Rows-1])
}

func TestRenderHalfBlocks(t *testing.T) {
	var fb emulator.Framebuffer
	fb[0*emulator.Chip8DisplayW+0] = 1 // top only
	fb[1*emulator.Chip8DisplayW+1] = 1 // bottom only
	fb[0*emulator.Chip8DisplayW+2] = 1 // both
	fb[1*emulator.Chip8DisplayW+2] = 1
	fb[31*emulator.Chip8DisplayW+63] = 1

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, &fb, true))

	lines := strings.Split(strings.TrimPrefix(buf.String(), cursorHome), "\r\n")
	require.Len(t, lines, Rows)
	assert.True(t, strings.HasPrefix(lines[0], "▀▄█ "))
	assert.True(t, strings.HasSuffix(lines[15], " ▄"))
	assert.Equal(t, "[BEEP]", lines[Rows-1])
}

func TestKeypadKey(t *testing.T) {
	k, ok := keypadKey('x')
	assert.True(t, ok)
	assert.Equal(t, uint8(0x0), k)

	k, ok = keypadKey('V')
	assert.True(t, ok)
	assert.Equal(t, uint8(0xf), k)

	_, ok = keypadKey('p')
	assert.False(t, ok)

	seen := map[uint8]bool{}
	for _, k := range byte2Key {
		seen[k] = true
	}
	assert.Len(t, seen, emulator.KeyCount)
}

func TestKeyStateExpire(t *testing.T) {
	var s keyState
	now := time.Now()

	assert.True(t, s.press(4, now))
	assert.False(t, s.press(4, now.Add(100*time.Millisecond)), "repeat keeps the key down")
	assert.Empty(t, s.expire(now.Add(200*time.Millisecond)))

	assert.Equal(t, []uint8{4}, s.expire(now.Add(100*time.Millisecond+KeyHold)))
	assert.False(t, s.down[4])
	assert.True(t, s.press(4, now.Add(time.Second)))
}

func TestNewRejectsNonTerminal(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "stdin"))
	require.NoError(t, err)
	defer f.Close()

	_, err = New(nil, f, &bytes.Buffer{})
	assert.True(t, errors.Is(err, ErrNotTerminal))
}
