// Package terminal runs a CHIP-8 program inside a text terminal.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/pkg/term/termios"
	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/tuboc/chip8vm/emulator"
)

var (
	ErrNotTerminal = errors.New("stdin is not a terminal")
	ErrTooSmall    = errors.New("terminal too small")
)

// Terminal is the text host. It owns stdin/stdout while running.
type Terminal struct {
	rom    []byte
	in     *os.File
	out    io.Writer
	runner *emulator.Runner
	keys   keyState

	originalTerminalConfig unix.Termios
}

// New checks that in is a large enough terminal and loads rom.
func New(rom []byte, in *os.File, out io.Writer) (*Terminal, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return nil, ErrNotTerminal
	}
	w, h, err := term.GetSize(fd)
	if err != nil {
		return nil, fmt.Errorf("terminal size: %w", err)
	}
	if w < Cols || h < Rows {
		return nil, fmt.Errorf("%dx%d, need %dx%d: %w", w, h, Cols, Rows, ErrTooSmall)
	}

	m := emulator.NewMachine()
	if err := m.Reset(rom); err != nil {
		return nil, err
	}
	return &Terminal{rom: rom, in: in, out: out, runner: emulator.NewRunner(m)}, nil
}

// Run executes the program until Escape is typed, ctx is done, or the
// machine faults. The terminal mode is restored before returning.
func (t *Terminal) Run(ctx context.Context) error {
	if err := t.enableRawMode(); err != nil {
		return err
	}
	defer t.disableRawMode()

	io.WriteString(t.out, clearAll+hideCursor)
	defer io.WriteString(t.out, showCursor+"\r\n")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fault := make(chan error, 1)
	go func() {
		if err := t.runner.Run(ctx); !errors.Is(err, context.Canceled) {
			fault <- err
		}
	}()

	input := make(chan byte, 16)
	go t.pollKeyboard(input)

	vblank := time.NewTicker(time.Second / emulator.VBlankFrequency)
	defer vblank.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-fault:
			return err
		case b := <-input:
			if quit, err := t.handleByte(b); quit || err != nil {
				return err
			}
		case now := <-vblank.C:
			for _, k := range t.keys.expire(now) {
				t.runner.SetKey(k, false)
			}
			if fb, changed := t.runner.Frame(); changed {
				if err := Render(t.out, &fb, t.runner.SoundActive()); err != nil {
					return err
				}
			}
		}
	}
}

func (t *Terminal) handleByte(b byte) (bool, error) {
	switch b {
	case keyEscape:
		return true, nil
	case keyBackspace:
		log.Printf("program reset")
		return false, t.runner.Reset(t.rom)
	}
	if k, ok := keypadKey(b); ok {
		if t.keys.press(k, time.Now()) {
			t.runner.SetKey(k, true)
		}
	}
	return false, nil
}

func (t *Terminal) pollKeyboard(input chan<- byte) {
	buf := make([]byte, 16)
	for {
		n, err := t.in.Read(buf)
		if err != nil {
			return
		}
		for _, b := range buf[:n] {
			input <- b
		}
	}
}

// enableRawMode turns off line buffering and echo on stdin.
func (t *Terminal) enableRawMode() error {
	if err := termios.Tcgetattr(t.in.Fd(), &t.originalTerminalConfig); err != nil {
		return fmt.Errorf("tcgetattr: %w", err)
	}
	newTermios := t.originalTerminalConfig
	newTermios.Lflag &^= unix.ICANON | unix.ECHO
	newTermios.Cc[unix.VMIN] = 1
	newTermios.Cc[unix.VTIME] = 0
	if err := termios.Tcsetattr(t.in.Fd(), termios.TCSANOW, &newTermios); err != nil {
		return fmt.Errorf("tcsetattr: %w", err)
	}
	return nil
}

func (t *Terminal) disableRawMode() {
	if err := termios.Tcsetattr(t.in.Fd(), termios.TCSANOW, &t.originalTerminalConfig); err != nil {
		log.Printf("restoring terminal: %v", err)
	}
}
