package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	_ "github.com/silbinarywolf/preferdiscretegpu"

	"github.com/Arneaj/StarsFrontend/pkg/starengine"
	"github.com/Arneaj/StarsFrontend/pkg/starmap"
)

var (
	windowWidth  = flag.Int("window-width", 1280, "Initial window width")
	windowHeight = flag.Int("window-height", 720, "Initial window height")
	tpsFlag      = flag.Int("tps", 60, "Ticks per second (input/momentum updates)")
	cacheDirFlag = flag.String("cache-dir", "", "Override the star detail cache directory")
)

func main() {
	flag.Parse()
	log.SetOutput(os.Stderr)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := starmap.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *cacheDirFlag != "" {
		cfg.CacheDir = *cacheDirFlag
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	game := starengine.New(cfg, *windowWidth, *windowHeight)
	if err := game.Bootstrap(ctx); err != nil {
		log.Fatalf("Failed to initialize star map: %v", err)
	}
	defer game.Close()

	ebiten.SetTPS(*tpsFlag)
	ebiten.SetWindowSize(*windowWidth, *windowHeight)
	ebiten.SetWindowTitle("Star Map")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	if err := ebiten.RunGame(game); err != nil {
		log.Fatal(err)
	}
}
