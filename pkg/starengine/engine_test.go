package starengine

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Arneaj/StarsFrontend/pkg/starmap"
)

func newTestGame() *Game {
	g := New(&starmap.Config{}, 800, 600)
	// Pin the viewport so screen (x,y) maps to world (x,y).
	g.view.OriginX, g.view.OriginY = 0, 0
	g.view.Zoom = 1
	g.publishVisible()
	return g
}

func TestHoverIsThrottled(t *testing.T) {
	g := newTestGame()
	g.store.AddMinimal(1, starmap.Vec2{X: 400, Y: 300}, 0, 9)

	base := time.Now()
	g.cursorX, g.cursorY = 400, 300
	g.updateHover(base)
	if !g.hoverOK || g.hoverID != 1 {
		t.Fatalf("first pass should hover star 1, got ok=%v id=%d", g.hoverOK, g.hoverID)
	}

	// Move off the star inside the throttle window: stale hover stays.
	g.cursorX, g.cursorY = 0, 0
	g.updateHover(base.Add(50 * time.Millisecond))
	if !g.hoverOK {
		t.Fatal("hover re-evaluated inside the throttle window")
	}

	// After the window the miss is observed.
	g.updateHover(base.Add(150 * time.Millisecond))
	if g.hoverOK {
		t.Fatal("hover not cleared after the throttle window")
	}
}

func TestHoverSuppressedByPopupAndDrag(t *testing.T) {
	g := newTestGame()
	g.store.AddMinimal(1, starmap.Vec2{X: 400, Y: 300}, 0, 9)
	g.cursorX, g.cursorY = 400, 300

	g.popup = &popup{kind: popupCreate}
	g.updateHover(time.Now())
	if g.hoverOK {
		t.Fatal("hover should be suppressed while a popup is open")
	}

	g.popup = nil
	now := time.Now().Add(time.Second)
	g.view.PointerDown(400, 300, now)
	g.view.Step(now.Add(time.Second))
	if !g.view.Dragging() {
		t.Fatal("hold should have started a drag")
	}
	g.updateHover(now.Add(2 * time.Second))
	if g.hoverOK {
		t.Fatal("hover should be suppressed while dragging")
	}
}

func TestClickOnStarOpensActions(t *testing.T) {
	g := newTestGame()
	g.store.AddMinimal(7, starmap.Vec2{X: 400, Y: 300}, 0, 9)

	g.cursorX, g.cursorY = 400, 300
	g.handleClick()
	if g.popup == nil || g.popup.kind != popupActions || g.popup.targetID != 7 {
		t.Fatalf("expected actions popup for star 7, got %+v", g.popup)
	}

	// A second click anywhere dismisses the popup.
	g.handleClick()
	if g.popup != nil {
		t.Fatal("click should dismiss an open popup")
	}
}

func TestClickOnEmptySpaceOpensCreateAtWorldPoint(t *testing.T) {
	g := newTestGame()
	g.view.OriginX, g.view.OriginY = 100, 200

	g.cursorX, g.cursorY = 50, 60
	g.handleClick()
	if g.popup == nil || g.popup.kind != popupCreate {
		t.Fatalf("expected create popup, got %+v", g.popup)
	}
	wx, wy := g.view.ScreenToWorld(50, 60)
	if g.popup.worldX != wx || g.popup.worldY != wy {
		t.Errorf("popup anchored at (%v,%v), want (%v,%v)", g.popup.worldX, g.popup.worldY, wx, wy)
	}
}

func TestPostedUIUpdatesRunOnDrain(t *testing.T) {
	g := newTestGame()
	g.post(func(g *Game) { g.setBanner("done") })
	if g.banner != "" {
		t.Fatal("posted update ran before drain")
	}
	g.drainUI()
	if g.banner != "done" {
		t.Fatalf("banner = %q after drain", g.banner)
	}
	if !g.bannerUntil.After(time.Now()) {
		t.Error("banner expiry not in the future")
	}
}

func TestInViewTracksPublishedViewport(t *testing.T) {
	g := newTestGame()

	if !g.inView(starmap.Vec2{X: 400, Y: 300}) {
		t.Fatal("on-screen point reported out of view")
	}
	if g.inView(starmap.Vec2{X: 5000, Y: 5000}) {
		t.Fatal("far point reported in view")
	}

	// Viewport changes are invisible until the game loop republishes.
	g.view.OriginX, g.view.OriginY = 4800, 4800
	if g.inView(starmap.Vec2{X: 5000, Y: 5000}) {
		t.Fatal("unpublished viewport change leaked to readers")
	}
	g.publishVisible()
	if !g.inView(starmap.Vec2{X: 5000, Y: 5000}) {
		t.Fatal("published viewport change not visible")
	}
}

func TestInViewIsSafeOffTheGameLoop(t *testing.T) {
	g := newTestGame()
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		// Stands in for the stream goroutine's create handling.
		for {
			select {
			case <-stop:
				return
			default:
				g.inView(starmap.Vec2{X: 400, Y: 300})
			}
		}
	}()

	now := time.Now()
	for i := 0; i < 500; i++ {
		g.view.AdjustZoom(1)
		g.view.Step(now.Add(time.Duration(i) * 10 * time.Millisecond))
		g.publishVisible()
		g.Layout(800+i%3, 600)
	}
	close(stop)
	wg.Wait()
}

func TestWrapRunes(t *testing.T) {
	cases := []struct {
		in    string
		width int
		want  []string
	}{
		{"", 10, []string{""}},
		{"short", 10, []string{"short"}},
		{"breaks on a space", 10, []string{"breaks on", "a space"}},
		{"unbreakablelongword", 8, []string{"unbreaka", "blelongw", "ord"}},
	}
	for _, tc := range cases {
		got := wrapRunes(tc.in, tc.width)
		if len(got) != len(tc.want) {
			t.Errorf("wrapRunes(%q, %d) = %v, want %v", tc.in, tc.width, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("wrapRunes(%q, %d)[%d] = %q, want %q", tc.in, tc.width, i, got[i], tc.want[i])
			}
		}
		for _, l := range got {
			if len([]rune(l)) > tc.width {
				t.Errorf("wrapRunes(%q, %d) produced overlong line %q", tc.in, tc.width, l)
			}
			if strings.HasPrefix(l, " ") {
				t.Errorf("wrapRunes(%q, %d) left a leading space in %q", tc.in, tc.width, l)
			}
		}
	}
}
