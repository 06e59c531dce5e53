package terminal

import (
	"time"

	"github.com/tuboc/chip8vm/emulator"
)

// KeyHold is how long a key stays down after its last byte arrived.
// Terminals report presses only, so releases are synthesized.
const KeyHold = 150 * time.Millisecond

const (
	keyEscape    = 0x1b
	keyBackspace = 0x7f
)

var byte2Key = map[byte]uint8{
	'1': 0x1, '2': 0x2, '3': 0x3, '4': 0xc,
	'q': 0x4, 'w': 0x5, 'e': 0x6, 'r': 0xd,
	'a': 0x7, 's': 0x8, 'd': 0x9, 'f': 0xe,
	'z': 0xa, 'x': 0x0, 'c': 0xb, 'v': 0xf,
}

// keypadKey maps a typed byte to a keypad key, ignoring case.
func keypadKey(b byte) (uint8, bool) {
	if b >= 'A' && b <= 'Z' {
		b += 'a' - 'A'
	}
	k, ok := byte2Key[b]
	return k, ok
}

// keyState tracks synthesized key releases.
type keyState struct {
	down [emulator.KeyCount]bool
	last [emulator.KeyCount]time.Time
}

// press marks k down at now and reports whether it was previously up.
func (s *keyState) press(k uint8, now time.Time) bool {
	was := s.down[k]
	s.down[k] = true
	s.last[k] = now
	return !was
}

// expire releases keys held longer than KeyHold and returns them.
func (s *keyState) expire(now time.Time) []uint8 {
	var released []uint8
	for k := range s.down {
		if s.down[k] && now.Sub(s.last[k]) >= KeyHold {
			s.down[k] = false
			released = append(released, uint8(k))
		}
	}
	return released
}
