package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"runtime"

	e "github.com/tuboc/chip8vm/emulator"
	"github.com/tuboc/chip8vm/terminal"
)

var filename = flag.String("f", "", "chip8 image file path")
var textMode = flag.Bool("t", false, "run in the terminal instead of an SDL window")
var scale = flag.Int("scale", e.DefaultScale, "SDL window pixel scale")
var logPath = flag.String("log", "", "log file path (default stderr)")

func init() {
	runtime.LockOSThread()
}

func setupLog(path string) {
	log.SetPrefix("CHIP8 ")
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	if len(path) == 0 {
		return
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0666)
	if err != nil {
		log.Fatal(err)
	}
	log.SetOutput(f)
}

func main() {
	flag.Parse()

	setupLog(*logPath)

	if *filename == "" {
		flag.Usage()
		os.Exit(2)
	}
	binary, err := os.ReadFile(*filename)
	if err != nil {
		log.Fatalf("reading program: %v", err)
	}
	log.Printf("loaded %s (%d bytes)", *filename, len(binary))

	if *textMode {
		runTerminal(binary)
		return
	}

	emu := e.NewEmulator(binary, *scale)
	if err := emu.Run(); err != nil {
		log.Fatalf("machine fault: %v", err)
	}
}

func runTerminal(binary []byte) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	t, err := terminal.New(binary, os.Stdin, os.Stdout)
	if err != nil {
		log.Fatalf("terminal: %v", err)
	}
	if err := t.Run(ctx); err != nil {
		log.Fatalf("machine fault: %v", err)
	}
}
