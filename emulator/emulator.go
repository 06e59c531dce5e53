package emulator

import (
	"context"
	"log"
	"time"

	"github.com/veandco/go-sdl2/sdl"
)

const DefaultScale = 10

// Emulator is the SDL window host. SDL calls must stay on the thread that
// created the window; the machine runs in a Runner goroutine.
type Emulator struct {
	rom      []byte
	runner   *Runner
	window   *sdl.Window
	renderer *sdl.Renderer
	scale    int32
	running  bool
	beeping  bool
}

var scanCode2Key = map[int]byte{
	sdl.SCANCODE_1: 0x1,
	sdl.SCANCODE_2: 0x2,
	sdl.SCANCODE_3: 0x3,
	sdl.SCANCODE_4: 0xc,
	sdl.SCANCODE_Q: 0x4,
	sdl.SCANCODE_W: 0x5,
	sdl.SCANCODE_E: 0x6,
	sdl.SCANCODE_R: 0xd,
	sdl.SCANCODE_A: 0x7,
	sdl.SCANCODE_S: 0x8,
	sdl.SCANCODE_D: 0x9,
	sdl.SCANCODE_F: 0xe,
	sdl.SCANCODE_Z: 0xa,
	sdl.SCANCODE_X: 0x0,
	sdl.SCANCODE_C: 0xb,
	sdl.SCANCODE_V: 0xf,
}

func checkError(s string, e error) {
	if e != nil {
		log.Fatalf("%s: %v", s, e)
	}
}

func initRenderer(scale int32) (*sdl.Window, *sdl.Renderer) {
	window, err := sdl.CreateWindow("Chip-8 Emulator", sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		Chip8DisplayW*scale, Chip8DisplayH*scale, sdl.WINDOW_SHOWN)
	checkError("CreateWindow", err)

	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED)
	checkError("CreateRenderer", err)

	// workaround for https://bugzilla.libsdl.org/show_bug.cgi?id=4272
	// 	or update sdl2 to 2.0.9
	window.Hide()
	sdl.PumpEvents()
	window.Show()

	return window, renderer
}

// NewEmulator opens the window and loads rom into a fresh machine.
func NewEmulator(rom []byte, scale int) *Emulator {
	if scale <= 0 {
		scale = DefaultScale
	}
	m := NewMachine()
	checkError("Reset", m.Reset(rom))

	err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS)
	checkError("sdl.Init", err)

	window, renderer := initRenderer(int32(scale))

	return &Emulator{
		rom:      rom,
		runner:   NewRunner(m),
		window:   window,
		renderer: renderer,
		scale:    int32(scale),
		running:  true,
	}
}

// Run shows frames until the window is closed or the machine faults.
func (e *Emulator) Run() error {
	defer sdl.Quit()
	defer e.window.Destroy()
	defer e.renderer.Destroy()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fault := make(chan error, 1)
	go func() {
		if err := e.runner.Run(ctx); err != context.Canceled {
			fault <- err
		}
	}()

	vblank := time.NewTicker(time.Second / VBlankFrequency)
	defer vblank.Stop()

	for e.running {
		e.pollEvents()

		select {
		case err := <-fault:
			return err
		default:
		}

		fb, changed := e.runner.Frame()
		beeping := e.runner.SoundActive()
		if changed || beeping != e.beeping {
			e.beeping = beeping
			e.draw(&fb)
		}

		<-vblank.C
	}
	log.Printf("window closed")
	return nil
}

func (e *Emulator) draw(fb *Framebuffer) {
	if e.beeping {
		e.renderer.SetDrawColor(48, 0, 0, 255)
	} else {
		e.renderer.SetDrawColor(0, 0, 0, 255)
	}
	e.renderer.Clear()

	e.renderer.SetDrawColor(0, 255, 0, 255)
	for y := int32(0); y < Chip8DisplayH; y++ {
		for x := int32(0); x < Chip8DisplayW; x++ {
			if fb[y*Chip8DisplayW+x] != 0 {
				e.renderer.FillRect(&sdl.Rect{X: x * e.scale, Y: y * e.scale, W: e.scale, H: e.scale})
			}
		}
	}

	e.renderer.Present()
}

func (e *Emulator) pollEvents() {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch ev := event.(type) {
		case *sdl.QuitEvent:
			e.running = false
		case *sdl.KeyboardEvent:
			switch ev.Type {
			case sdl.KEYDOWN:
				if i, ok := scanCode2Key[int(ev.Keysym.Scancode)]; ok {
					e.runner.SetKey(i, true)
				} else if ev.Keysym.Scancode == sdl.SCANCODE_ESCAPE {
					e.running = false
				} else if ev.Keysym.Scancode == sdl.SCANCODE_BACKSPACE {
					checkError("Reset", e.runner.Reset(e.rom))
					log.Printf("program reset")
				}
			case sdl.KEYUP:
				if i, ok := scanCode2Key[int(ev.Keysym.Scancode)]; ok {
					e.runner.SetKey(i, false)
				}
			}
		case *sdl.WindowEvent:
			switch ev.Event {
			case sdl.WINDOWEVENT_FOCUS_LOST:
				e.runner.ReleaseKeys()
				e.runner.SetPaused(true)
			case sdl.WINDOWEVENT_FOCUS_GAINED:
				e.runner.SetPaused(false)
			}
		}
	}
}
