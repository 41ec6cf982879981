// Package starengine renders the star map and handles user input. It
// glues the sync core (pkg/starmap) to an Ebitengine game loop: the
// stream goroutine mutates the store while Update/Draw read it every
// frame.
package starengine

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/Arneaj/StarsFrontend/pkg/starmap"
	"github.com/Arneaj/StarsFrontend/pkg/utils"
)

const (
	hoverThrottle = 100 * time.Millisecond

	// Squared world-space hit radius for hover/click, tuned from the
	// original's 0.0003 NDC threshold scaled to the 10000px map.
	hitThresholdSq = 7500.0

	// Wider capture radius for picking the constellation author.
	constellationPickSq = 4 * hitThresholdSq

	bannerDuration = 5 * time.Second
	maxMessageLen  = 240
)

type popupKind int

const (
	popupCreate popupKind = iota
	popupActions
)

type popup struct {
	kind     popupKind
	worldX   float64
	worldY   float64
	targetID int64
	input    []rune
	busy     bool
}

// Game implements ebiten.Game over the star map state.
type Game struct {
	cfg     *starmap.Config
	store   *starmap.Store
	view    *starmap.Viewport
	api     *starmap.Client
	fetcher *starmap.DetailFetcher
	stream  *starmap.StreamClient
	cache   *utils.DetailCache

	shader     *ebiten.Shader
	fontSource *text.GoTextFaceSource
	monoSource *text.GoTextFaceSource
	start      time.Time

	posBuf    []float32
	likeBuf   []float32
	authorBuf []float32

	cursorX, cursorY float64
	lastHover        time.Time
	hoverID          int64
	hoverOK          bool

	// Snapshot of the viewport's visible rect for the stream goroutine;
	// the Viewport itself is game-loop-only state.
	visible atomic.Pointer[starmap.Rect]

	// popup/banner are touched by request goroutines; ui() guards them.
	uiCh        chan func(*Game)
	popup       *popup
	banner      string
	bannerUntil time.Time

	ctx context.Context
}

func New(cfg *starmap.Config, screenW, screenH int) *Game {
	g := &Game{
		cfg:       cfg,
		store:     starmap.NewStore(),
		view:      starmap.NewViewport(float64(screenW), float64(screenH)),
		start:     time.Now(),
		posBuf:    make([]float32, 2*starmap.MaxStars),
		likeBuf:   make([]float32, starmap.MaxStars),
		authorBuf: make([]float32, starmap.MaxStars),
		uiCh:      make(chan func(*Game), 16),
	}
	g.publishVisible()
	return g
}

// publishVisible snapshots the visible world rect for readers outside
// the game loop. Update and Layout republish after every viewport
// change, so the stream goroutine never touches the Viewport itself.
func (g *Game) publishVisible() {
	r := g.view.VisibleRect()
	g.visible.Store(&r)
}

func (g *Game) inView(p starmap.Vec2) bool {
	return g.visible.Load().Contains(p)
}

// Bootstrap compiles the shader, loads fonts, opens the detail cache,
// fetches the initial snapshot and starts the stream goroutine. Shader
// failure is fatal: without the GPU program there is nothing to show.
func (g *Game) Bootstrap(ctx context.Context) error {
	g.ctx = ctx

	shader, err := ebiten.NewShader(shaderSource())
	if err != nil {
		return fmt.Errorf("compiling star shader: %w", err)
	}
	g.shader = shader

	if g.fontSource, err = text.NewGoTextFaceSource(bytes.NewReader(goregular.TTF)); err != nil {
		return fmt.Errorf("loading font: %w", err)
	}
	if g.monoSource, err = text.NewGoTextFaceSource(bytes.NewReader(gomono.TTF)); err != nil {
		return fmt.Errorf("loading mono font: %w", err)
	}

	if cache, err := utils.OpenDetailCache(g.cfg.CacheDir); err != nil {
		log.Printf("[engine] detail cache unavailable: %v", err)
	} else {
		g.cache = cache
	}

	g.api = starmap.NewClient(g.cfg)
	g.fetcher = starmap.NewDetailFetcher(g.api, g.store, cacheOrNil(g.cache))

	stars, err := g.api.FetchSnapshotWithRetry(ctx)
	if err != nil {
		// Not fatal: the stream still delivers new stars, and resyncs
		// retry the snapshot.
		log.Printf("[engine] initial snapshot failed: %v", err)
	} else {
		g.store.LoadSnapshot(stars)
		log.Printf("[engine] loaded %d stars", g.store.Count())
	}

	g.stream = starmap.NewStreamClient(g.cfg.StreamURL, g.cfg.Token, starmap.StreamDeps{
		Store:       g.store,
		Resync:      g.resync,
		FetchDetail: g.fetcher.Fetch,
		InView:      g.inView,
		Forget:      g.fetcher.Forget,
	})
	go g.stream.Run(ctx)
	return nil
}

// Close releases the detail cache.
func (g *Game) Close() {
	if g.cache != nil {
		if err := g.cache.Close(); err != nil {
			log.Printf("[engine] closing detail cache: %v", err)
		}
	}
}

func cacheOrNil(c *utils.DetailCache) starmap.DetailCache {
	if c == nil {
		return nil
	}
	return c
}

// resync refetches the full snapshot. Called by the stream client for
// unknown-id deletes and after reconnects; must not block its caller.
func (g *Game) resync() {
	go func() {
		ctx, cancel := context.WithTimeout(g.ctx, 30*time.Second)
		defer cancel()
		stars, err := g.api.FetchSnapshot(ctx)
		if err != nil {
			log.Printf("[engine] resync failed: %v", err)
			return
		}
		g.store.LoadSnapshot(stars)
	}()
}

func (g *Game) Update() error {
	now := time.Now()

	g.drainUI()

	cx, cy := ebiten.CursorPosition()
	g.cursorX, g.cursorY = float64(cx), float64(cy)

	if _, wy := ebiten.Wheel(); wy != 0 {
		g.view.AdjustZoom(wy)
	}

	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		g.view.PointerDown(g.cursorX, g.cursorY, now)
	}
	g.view.PointerMove(g.cursorX, g.cursorY, now)
	if inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonLeft) {
		if g.view.PointerUp(now) {
			g.handleClick()
		}
	}

	g.view.Step(now)
	g.publishVisible()
	if g.fetcher != nil {
		g.fetcher.Sweep(now, g.view.VisibleRect())
	}
	g.updateHover(now)
	g.updatePopup()
	return nil
}

// handleClick opens a popup for the clicked star or, on empty space,
// the create form anchored at the clicked world coordinate.
func (g *Game) handleClick() {
	if g.popup != nil {
		g.popup = nil
		return
	}
	wx, wy := g.view.ScreenToWorld(g.cursorX, g.cursorY)
	if id, ok := g.store.HitTest(starmap.Vec2{X: wx, Y: wy}, hitThresholdSq); ok {
		if _, resolved := g.store.Detail(id); !resolved && g.fetcher != nil {
			g.fetcher.Fetch(id)
		}
		g.popup = &popup{kind: popupActions, targetID: id}
		return
	}
	g.popup = &popup{kind: popupCreate, worldX: wx, worldY: wy}
}

func (g *Game) updateHover(now time.Time) {
	if now.Sub(g.lastHover) < hoverThrottle {
		return
	}
	g.lastHover = now

	if g.view.Dragging() || g.popup != nil {
		g.hoverOK = false
		return
	}
	wx, wy := g.view.ScreenToWorld(g.cursorX, g.cursorY)
	id, ok := g.store.HitTest(starmap.Vec2{X: wx, Y: wy}, hitThresholdSq)
	g.hoverID, g.hoverOK = id, ok
	if ok {
		if _, resolved := g.store.Detail(id); !resolved && g.fetcher != nil {
			g.fetcher.Fetch(id)
		}
	}
}

func (g *Game) updatePopup() {
	p := g.popup
	if p == nil {
		return
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		g.popup = nil
		return
	}
	if p.busy {
		return
	}

	switch p.kind {
	case popupCreate:
		for _, r := range ebiten.AppendInputChars(nil) {
			if r >= ' ' && len(p.input) < maxMessageLen {
				p.input = append(p.input, r)
			}
		}
		if inpututil.IsKeyJustPressed(ebiten.KeyBackspace) && len(p.input) > 0 {
			p.input = p.input[:len(p.input)-1]
		}
		if inpututil.IsKeyJustPressed(ebiten.KeyEnter) && len(p.input) > 0 {
			p.busy = true
			go g.submitCreate(p, string(p.input))
		}
	case popupActions:
		if inpututil.IsKeyJustPressed(ebiten.KeyL) {
			p.busy = true
			go g.submitAction(p, p.targetID, true)
		}
		if inpututil.IsKeyJustPressed(ebiten.KeyD) {
			p.busy = true
			go g.submitAction(p, p.targetID, false)
		}
	}
}

// submitCreate posts the new star. No optimistic insertion: the star
// appears when its stream `create` event makes the round trip.
func (g *Game) submitCreate(p *popup, message string) {
	ctx, cancel := context.WithTimeout(g.ctx, 15*time.Second)
	defer cancel()
	res, err := g.api.CreateStar(ctx, p.worldX, p.worldY, message)

	g.post(func(g *Game) {
		if g.popup == p {
			g.popup = nil
		}
		switch {
		case err != nil:
			log.Printf("[engine] create star: %v", err)
			g.setBanner("Could not place the star. Try again.")
		case res.Rejected:
			g.setBanner("Star rejected: " + res.Reason)
		default:
			g.setBanner("Star placed.")
		}
	})
}

func (g *Game) submitAction(p *popup, id int64, like bool) {
	ctx, cancel := context.WithTimeout(g.ctx, 15*time.Second)
	defer cancel()
	var err error
	verb := "Disliked"
	if like {
		err = g.api.LikeStar(ctx, id)
		verb = "Liked"
	} else {
		err = g.api.DislikeStar(ctx, id)
	}

	g.post(func(g *Game) {
		if g.popup == p {
			g.popup = nil
		}
		if err != nil {
			log.Printf("[engine] star %d action: %v", id, err)
			g.setBanner("Action failed. Try again.")
			return
		}
		g.store.RebuildGPUMirrors()
		g.setBanner(verb + ".")
	})
}

// drainUI applies state mutations posted by request goroutines.
func (g *Game) drainUI() {
	for {
		select {
		case fn := <-g.uiCh:
			fn(g)
		default:
			return
		}
	}
}

// post hands a UI mutation to the next Update tick, keeping all popup
// and banner state on the game loop.
func (g *Game) post(fn func(*Game)) {
	select {
	case g.uiCh <- fn:
	default:
		log.Printf("[engine] dropping UI update, queue full")
	}
}

func (g *Game) setBanner(msg string) {
	g.banner = msg
	g.bannerUntil = time.Now().Add(bannerDuration)
}

func (g *Game) Draw(screen *ebiten.Image) {
	w := screen.Bounds().Dx()
	h := screen.Bounds().Dy()
	now := time.Now()

	n := g.store.CopyMirrorsInto(g.posBuf, g.likeBuf, g.authorBuf)
	wx, wy := g.view.ScreenToWorld(g.cursorX, g.cursorY)

	uniforms := map[string]any{
		"NumStars": n,
		"Cursor":   []float32{float32(wx), float32(wy)},
		"Time":     float32(time.Since(g.start).Seconds()),
		"Now":      float32(float64(now.UnixMilli())/1000 - starmap.EpochBase),
		"Zoom":     float32(g.view.Zoom),
		"Origin":   []float32{float32(g.view.OriginX), float32(g.view.OriginY)},
		"Center":   []float32{float32(g.view.ScreenW / 2), float32(g.view.ScreenH / 2)},
	}
	if n > 0 {
		uniforms["StarPos"] = g.posBuf
		uniforms["StarLike"] = g.likeBuf
		uniforms["StarAuthor"] = g.authorBuf
	}

	op := &ebiten.DrawRectShaderOptions{}
	op.Uniforms = uniforms
	screen.DrawRectShader(w, h, g.shader, op)

	g.drawConstellation(screen)
	g.drawHUD(screen, now)
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	g.view.ScreenW = float64(outsideWidth)
	g.view.ScreenH = float64(outsideHeight)
	g.publishVisible()
	return outsideWidth, outsideHeight
}
