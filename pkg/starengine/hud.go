package starengine

import (
	"image/color"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/Arneaj/StarsFrontend/pkg/starmap"
)

var (
	colorBoxFill   = color.RGBA{0, 0, 0, 160}
	colorBoxBorder = color.RGBA{36, 42, 53, 255}
	colorAccent    = color.RGBA{255, 230, 180, 255}
	colorLine      = color.RGBA{255, 230, 180, 70}
)

// drawConstellation joins consecutive stars by the author of the star
// nearest the cursor.
func (g *Game) drawConstellation(screen *ebiten.Image) {
	wx, wy := g.view.ScreenToWorld(g.cursorX, g.cursorY)
	id, ok := g.store.HitTest(starmap.Vec2{X: wx, Y: wy}, constellationPickSq)
	if !ok {
		return
	}
	author, ok := g.store.AuthorOf(id)
	if !ok {
		return
	}
	pts := g.store.ConstellationOf(author)
	for i := 1; i < len(pts); i++ {
		x0, y0 := g.view.WorldToScreen(pts[i-1].X, pts[i-1].Y)
		x1, y1 := g.view.WorldToScreen(pts[i].X, pts[i].Y)
		vector.StrokeLine(screen, float32(x0), float32(y0), float32(x1), float32(y1), 1, colorLine, true)
	}
}

func (g *Game) drawHUD(screen *ebiten.Image, now time.Time) {
	if g.hoverOK && g.popup == nil {
		g.drawTooltip(screen)
	}
	if g.popup != nil {
		g.drawPopup(screen)
	}
	if g.banner != "" && now.Before(g.bannerUntil) {
		g.drawBanner(screen)
	}
}

func (g *Game) drawTooltip(screen *ebiten.Image) {
	pos, ok := g.store.Position(g.hoverID)
	if !ok {
		return
	}
	author := "Somebody"
	message := "..."
	if d, resolved := g.store.Detail(g.hoverID); resolved {
		message = d.Message
		if d.AuthorName != "" {
			author = d.AuthorName
		}
	}

	sx, sy := g.view.WorldToScreen(pos.X, pos.Y)
	lines := append([]string{author, ""}, wrapRunes(message, 36)...)
	g.drawTextBox(screen, sx+20, sy-10, lines, true)
}

func (g *Game) drawPopup(screen *ebiten.Image) {
	p := g.popup
	var lines []string
	switch p.kind {
	case popupCreate:
		lines = append(lines, "Leave a star", "")
		lines = append(lines, wrapRunes(string(p.input)+"_", 40)...)
		lines = append(lines, "", "Enter to place it - Esc to cancel")
	case popupActions:
		author := "Somebody"
		message := "..."
		if d, resolved := g.store.Detail(p.targetID); resolved {
			message = d.Message
			if d.AuthorName != "" {
				author = d.AuthorName
			}
		}
		lines = append(lines, author, "")
		lines = append(lines, wrapRunes(message, 40)...)
		lines = append(lines, "", "L to like - D to dislike - Esc to close")
	}
	if p.busy {
		lines = append(lines, "", "Sending...")
	}

	x := g.view.ScreenW * 0.3
	y := g.view.ScreenH * 0.3
	g.drawTextBox(screen, x, y, lines, false)
}

func (g *Game) drawBanner(screen *ebiten.Image) {
	face := &text.GoTextFace{Source: g.monoSource, Size: 16}
	tw, th := text.Measure(g.banner, face, 0)
	x := (g.view.ScreenW - tw) / 2
	y := g.view.ScreenH - th - 30

	vector.DrawFilledRect(screen, float32(x-12), float32(y-8), float32(tw+24), float32(th+16), colorBoxFill, false)
	vector.StrokeRect(screen, float32(x-12), float32(y-8), float32(tw+24), float32(th+16), 1, colorBoxBorder, false)

	op := &text.DrawOptions{}
	op.GeoM.Translate(x, y)
	op.ColorScale.ScaleWithColor(colorAccent)
	text.Draw(screen, g.banner, face, op)
}

func (g *Game) drawTextBox(screen *ebiten.Image, x, y float64, lines []string, compact bool) {
	fontSize := 16.0
	if compact {
		fontSize = 14.0
	}
	face := &text.GoTextFace{Source: g.fontSource, Size: fontSize}
	lineH := fontSize * 1.4

	maxW := 0.0
	for _, l := range lines {
		if w, _ := text.Measure(l, face, 0); w > maxW {
			maxW = w
		}
	}
	boxW := maxW + 30
	boxH := lineH*float64(len(lines)) + 20

	// Keep the box on screen.
	if x+boxW > g.view.ScreenW {
		x = g.view.ScreenW - boxW
	}
	if y+boxH > g.view.ScreenH {
		y = g.view.ScreenH - boxH
	}
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}

	vector.DrawFilledRect(screen, float32(x), float32(y), float32(boxW), float32(boxH), colorBoxFill, false)
	vector.StrokeRect(screen, float32(x), float32(y), float32(boxW), float32(boxH), 1, colorBoxBorder, false)
	vector.DrawFilledRect(screen, float32(x), float32(y), 3, float32(boxH), colorAccent, false)

	for i, l := range lines {
		op := &text.DrawOptions{}
		op.GeoM.Translate(x+15, y+10+float64(i)*lineH)
		alpha := float32(0.85)
		if i == 0 {
			alpha = 1.0
		}
		op.ColorScale.Scale(alpha, alpha, alpha, alpha)
		text.Draw(screen, l, face, op)
	}
}

// wrapRunes splits s into lines of at most width runes, breaking on
// spaces when one is close enough.
func wrapRunes(s string, width int) []string {
	runes := []rune(s)
	if len(runes) == 0 {
		return []string{""}
	}
	var lines []string
	for len(runes) > 0 {
		if len(runes) <= width {
			lines = append(lines, string(runes))
			break
		}
		cut := width
		for i := width; i > width/2; i-- {
			if runes[i] == ' ' {
				cut = i
				break
			}
		}
		lines = append(lines, string(runes[:cut]))
		runes = runes[cut:]
		for len(runes) > 0 && runes[0] == ' ' {
			runes = runes[1:]
		}
	}
	return lines
}
