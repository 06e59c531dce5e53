package emulator

import (
	"errors"
	"math/rand"
	"time"
)

const (
	Chip8DisplayW          = 64
	Chip8DisplayH          = 32
	MemorySize             = 0x1000
	AddressMask            = MemorySize - 1
	CharacterSpritesOffset = 0x000
	CharacterSpriteBytes   = 5
	ProgramOffset          = 0x200
	MaxProgramSize         = MemorySize - ProgramOffset
	StackDepth             = 16
	KeyCount               = 16
)

var (
	ErrImageTooLarge  = errors.New("program image too large")
	ErrStackOverflow  = errors.New("call stack overflow")
	ErrStackUnderflow = errors.New("call stack underflow")
)

// Framebuffer is the 64x32 monochrome display, one byte (0 or 1) per pixel,
// row-major.
type Framebuffer [Chip8DisplayW * Chip8DisplayH]uint8

// Pixel reports whether the pixel at (x, y) is lit. Coordinates wrap.
func (f *Framebuffer) Pixel(x, y int) bool {
	x = ((x % Chip8DisplayW) + Chip8DisplayW) % Chip8DisplayW
	y = ((y % Chip8DisplayH) + Chip8DisplayH) % Chip8DisplayH
	return f[y*Chip8DisplayW+x] != 0
}

// Machine holds the complete state of one CHIP-8 interpreter. It is not safe
// for concurrent use; see Runner for a synchronized wrapper.
type Machine struct {
	mem   [MemorySize]uint8 // memory
	pc    uint16            // program counter
	v     [16]uint8         // registers
	i     uint16            // index register
	dt    uint8             // delay timer
	st    uint8             // sound timer
	sp    uint8             // number of entries on the stack
	stack [StackDepth]uint16
	keys  [KeyCount]bool // keyboard state
	disp  Framebuffer    // graphics

	redraw bool
	rnd    *rand.Rand
}

// Option configures a Machine at construction.
type Option func(*Machine)

// WithRand sets the random source used by RND.
func WithRand(r *rand.Rand) Option {
	return func(m *Machine) {
		m.rnd = r
	}
}

var characterSprites = []uint8{
	0xF0, 0x90, 0x90, 0x90, 0xF0, // 0
	0x20, 0x60, 0x20, 0x20, 0x70, // 1
	0xF0, 0x10, 0xF0, 0x80, 0xF0, // 2
	0xF0, 0x10, 0xF0, 0x10, 0xF0, // 3
	0x90, 0x90, 0xF0, 0x10, 0x10, // 4
	0xF0, 0x80, 0xF0, 0x10, 0xF0, // 5
	0xF0, 0x80, 0xF0, 0x90, 0xF0, // 6
	0xF0, 0x10, 0x20, 0x40, 0x40, // 7
	0xF0, 0x90, 0xF0, 0x90, 0xF0, // 8
	0xF0, 0x90, 0xF0, 0x10, 0xF0, // 9
	0xF0, 0x90, 0xF0, 0x90, 0x90, // A
	0xE0, 0x90, 0xE0, 0x90, 0xE0, // B
	0xF0, 0x80, 0x80, 0x80, 0xF0, // C
	0xE0, 0x90, 0x90, 0x90, 0xE0, // D
	0xF0, 0x80, 0xF0, 0x80, 0xF0, // E
	0xF0, 0x80, 0xF0, 0x80, 0x80, // F
}

// NewMachine returns a machine with the font loaded and an empty program.
func NewMachine(opts ...Option) *Machine {
	m := &Machine{}
	for _, opt := range opts {
		opt(m)
	}
	if m.rnd == nil {
		m.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	m.load(nil)
	return m
}

// Reset clears all machine state and loads image at ProgramOffset.
// On error the machine is left unchanged.
func (m *Machine) Reset(image []byte) error {
	if len(image) > MaxProgramSize {
		return ErrImageTooLarge
	}
	m.load(image)
	return nil
}

func (m *Machine) load(image []byte) {
	rnd := m.rnd
	*m = Machine{rnd: rnd}
	m.pc = ProgramOffset
	m.redraw = true

	copy(m.mem[CharacterSpritesOffset:], characterSprites)
	copy(m.mem[ProgramOffset:], image)
}

// Step fetches, decodes and executes a single instruction.
func (m *Machine) Step() error {
	op := m.fetchOpcode()
	return m.execOpcode(op)
}

// TickTimers decrements the delay and sound timers. Hosts call it at 60 Hz.
func (m *Machine) TickTimers() {
	if m.dt > 0 {
		m.dt--
	}
	if m.st > 0 {
		m.st--
	}
}

// SetKey records the state of keypad key 0x0-0xF. Other keys are ignored.
func (m *Machine) SetKey(key uint8, pressed bool) {
	if int(key) < KeyCount {
		m.keys[key] = pressed
	}
}

func (m *Machine) Framebuffer() Framebuffer { return m.disp }
func (m *Machine) NeedsRedraw() bool { return m.redraw }
func (m *Machine) ClearRedraw() { m.redraw = false }
func (m *Machine) DelayTimer() uint8 { return m.dt }
func (m *Machine) SoundTimer() uint8 { return m.st }
func (m *Machine) PC() uint16 { return m.pc }
func (m *Machine) I() uint16 { return m.i }

// V returns the value of register Vr; r is taken modulo 16.
func (m *Machine) V(r uint8) uint8 { return m.v[r&0xf] }

func (m *Machine) read(addr uint16) uint8 {
	return m.mem[addr&AddressMask]
}

func (m *Machine) write(addr uint16, b uint8) {
	m.mem[addr&AddressMask] = b
}

func (m *Machine) fetchOpcode() uint16 {
	op := uint16(m.read(m.pc))<<8 | uint16(m.read(m.pc+1))
	m.pc += 2
	return op
}

func (m *Machine) updateCarryFlag(b bool) {
	if b {
		m.v[0xf] = 1
	} else {
		m.v[0xf] = 0
	}
}

func (m *Machine) pushStack(v uint16) error {
	if int(m.sp) >= StackDepth {
		return ErrStackOverflow
	}
	m.stack[m.sp] = v
	m.sp++
	return nil
}

func (m *Machine) popStack() (uint16, error) {
	if m.sp == 0 {
		return 0, ErrStackUnderflow
	}
	m.sp--
	return m.stack[m.sp], nil
}

// draw XORs an n-row sprite read from I onto the display at (x, y),
// wrapping at the screen edges. It reports whether any lit pixel was cleared.
func (m *Machine) draw(x, y, n uint8) bool {
	flipped := false
	for iy := uint8(0); iy < n; iy++ {
		row := m.read(m.i + uint16(iy))
		ty := (int(y) + int(iy)) % Chip8DisplayH
		for ix := uint8(0); ix < 8; ix++ {
			if (row>>(7-ix))&0x01 == 0 {
				continue
			}
			tx := (int(x) + int(ix)) % Chip8DisplayW

			p := &m.disp[ty*Chip8DisplayW+tx]
			if *p == 1 {
				flipped = true
			}
			*p ^= 1
		}
	}
	m.redraw = true
	return flipped
}

// pressedKey returns the lowest-numbered key held down.
func (m *Machine) pressedKey() (uint8, bool) {
	for i, down := range m.keys {
		if down {
			return uint8(i), true
		}
	}
	return 0, false
}
