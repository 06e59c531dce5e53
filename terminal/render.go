package terminal

import (
	"io"
	"strings"

	"github.com/tuboc/chip8vm/emulator"
)

const (
	// Rows is the number of text lines a frame occupies, status line included.
	Rows = emulator.Chip8DisplayH/2 + 1
	Cols = emulator.Chip8DisplayW

	cursorHome = "\x1b[H"
	hideCursor = "\x1b[?25l"
	showCursor = "\x1b[?25h"
	clearAll   = "\x1b[2J"
)

// halfBlocks is indexed by top<<1 | bottom.
var halfBlocks = [4]string{" ", "▄", "▀", "█"}

// Render writes fb to w as Rows lines of half-block glyphs, two pixel rows
// per line, preceded by a cursor-home sequence.
func Render(w io.Writer, fb *emulator.Framebuffer, beeping bool) error {
	var sb strings.Builder
	sb.Grow(Rows * (Cols*3 + 2))
	sb.WriteString(cursorHome)

	for y := 0; y < emulator.Chip8DisplayH; y += 2 {
		for x := 0; x < emulator.Chip8DisplayW; x++ {
			i := 0
			if fb.Pixel(x, y) {
				i |= 2
			}
			if fb.Pixel(x, y+1) {
				i |= 1
			}
			sb.WriteString(halfBlocks[i])
		}
		sb.WriteString("\r\n")
	}

	if beeping {
		sb.WriteString("[BEEP]")
	} else {
		sb.WriteString("      ")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}
