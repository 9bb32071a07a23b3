package main

import (
	"flag"
	"log"
	"log/slog"
	"os"
	"runtime"

	"github.com/ChewyGumball/bengine-sub000/logging"
)

func init() {
	// This is needed to arrange that main() runs on main thread.
	// See documentation for functions that are only allowed to be called
	// from the main thread.
	runtime.LockOSThread()

	flag.BoolVar(&args.debug, "debug", false, "Enable Vulkan validation layers and debug logging")
	flag.IntVar(&args.width, "width", 1024, "Initial window width")
	flag.IntVar(&args.height, "height", 768, "Initial window height")
	flag.StringVar(&args.model, "model", "viking_room.obj", "Wavefront OBJ model to draw")
	flag.StringVar(&args.texture, "texture", "viking_room.png", "PNG or JPEG texture for the model")
	flag.StringVar(&args.vert, "vert", "vert.spv", "SPIR-V vertex shader. Position at location 0, texture coordinates at 1")
	flag.StringVar(&args.frag, "frag", "frag.spv", "SPIR-V fragment shader")
	flag.IntVar(&args.threads, "threads", 1, "Goroutines recording draw commands")
	flag.IntVar(&args.inFlight, "in-flight", 0, "Frames in flight, 0 for the default")
	flag.Uint64Var(&args.frames, "frames", 0, "Exit after this many frames, 0 runs until the window closes")
}

var args struct {
	debug    bool
	width    int
	height   int
	model    string
	texture  string
	vert     string
	frag     string
	threads  int
	inFlight int
	frames   uint64
}

func main() {
	flag.Parse()

	level := slog.LevelInfo
	if args.debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	logging.SetLogger(logger)

	app := &ViewerApp{
		width:  args.width,
		height: args.height,
		log:    logger,
	}
	if err := app.Run(); err != nil {
		log.Fatalf("ERROR: %s", err)
	}
}

const title = "bengine model viewer"
