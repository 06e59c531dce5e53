package emulator

import (
	"context"
	"sync"
	"time"
)

const (
	VBlankFrequency = 60
	ClockHz         = VBlankFrequency * 9
)

// Runner drives a Machine from its own goroutine: instructions at ClockHz,
// timers at VBlankFrequency. All access to the machine goes through the
// Runner's lock, so input and presentation may run on other goroutines.
type Runner struct {
	mu      sync.Mutex
	machine *Machine
	paused  bool
}

func NewRunner(m *Machine) *Runner {
	return &Runner{machine: m}
}

// Run executes the machine until ctx is done or a step fails. It returns
// ctx.Err() or the step error.
func (r *Runner) Run(ctx context.Context) error {
	cpu := time.NewTicker(time.Second / ClockHz)
	defer cpu.Stop()
	vblank := time.NewTicker(time.Second / VBlankFrequency)
	defer vblank.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-vblank.C:
			r.mu.Lock()
			if !r.paused {
				r.machine.TickTimers()
			}
			r.mu.Unlock()
		case <-cpu.C:
			if err := r.step(); err != nil {
				return err
			}
		}
	}
}

func (r *Runner) step() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.paused {
		return nil
	}
	return r.machine.Step()
}

// SetKey forwards a keypad state change to the machine.
func (r *Runner) SetKey(key uint8, pressed bool) {
	r.mu.Lock()
	r.machine.SetKey(key, pressed)
	r.mu.Unlock()
}

// ReleaseKeys marks every keypad key as up.
func (r *Runner) ReleaseKeys() {
	r.mu.Lock()
	for k := uint8(0); k < KeyCount; k++ {
		r.machine.SetKey(k, false)
	}
	r.mu.Unlock()
}

// Frame returns the current framebuffer and whether it changed since the
// previous call.
func (r *Runner) Frame() (Framebuffer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	changed := r.machine.NeedsRedraw()
	r.machine.ClearRedraw()
	return r.machine.Framebuffer(), changed
}

// SoundActive reports whether the sound timer is running.
func (r *Runner) SoundActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.machine.SoundTimer() > 0
}

// SetPaused stops or resumes instruction execution and timers.
func (r *Runner) SetPaused(p bool) {
	r.mu.Lock()
	r.paused = p
	r.mu.Unlock()
}

// Reset reloads the machine with image.
func (r *Runner) Reset(image []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.machine.Reset(image)
}
