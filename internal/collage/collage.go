// Package collage lays participant images out into two canvases: the
// anonymized "question" and the labeled "answer". Cells are numbered after a
// random shuffle so grid position carries no information about submission
// order; the shuffle happens once per synthesis and both canvases share it.
package collage

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"math"
	"math/rand"
	"strconv"
	"time"

	"github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"

	"github.com/tribela/picrew-amuse/internal/domain"
)

const (
	cellSize = 600
	cellGap  = 10
	fontSize = cellSize / 20
	textPad  = 5

	// nameAnchorY places the handle label in the lower portion of a cell.
	nameAnchorY = 0.7
)

// Synthesizer renders collages to fixed output paths, overwriting any
// previous synthesis.
type Synthesizer struct {
	fetch        Fetcher
	fontPath     string
	questionPath string
	answerPath   string
	rand         *rand.Rand
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithRand replaces the shuffle source, letting tests pin the permutation.
func WithRand(r *rand.Rand) Option {
	return func(s *Synthesizer) { s.rand = r }
}

// NewSynthesizer creates a synthesizer drawing text with the given font and
// writing its canvases to questionPath and answerPath.
func NewSynthesizer(fetch Fetcher, fontPath, questionPath, answerPath string, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		fetch:        fetch,
		fontPath:     fontPath,
		questionPath: questionPath,
		answerPath:   answerPath,
		rand:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Generate fetches every entry's image and renders both canvases. A cell
// whose image cannot be fetched stays blank but keeps its slot and number.
func (s *Synthesizer) Generate(ctx context.Context, entries []domain.Entry) error {
	shuffled := make([]domain.Entry, len(entries))
	copy(shuffled, entries)
	s.rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	cols := int(math.Ceil(math.Sqrt(float64(len(shuffled)))))
	rows := 0
	if cols > 0 {
		rows = (len(shuffled) + cols - 1) / cols
	}

	width := cols*cellSize + (cols+1)*cellGap
	height := rows*cellSize + (rows+1)*cellGap

	question := image.NewRGBA(image.Rect(0, 0, width, height))
	answer := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(question, question.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(answer, answer.Bounds(), image.White, image.Point{}, draw.Src)

	for i, entry := range shuffled {
		col := i % cols
		row := i / cols
		x := cellGap + col*(cellSize+cellGap)
		y := cellGap + row*(cellSize+cellGap)

		img := s.fetchEntry(ctx, entry)
		if img != nil {
			cell := image.Rect(x, y, x+cellSize, y+cellSize)
			scaled := image.NewRGBA(image.Rect(0, 0, cellSize, cellSize))
			xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), img, img.Bounds(), xdraw.Over, nil)
			// Over keeps transparent source pixels from overwriting the
			// white background.
			draw.Draw(question, cell, scaled, image.Point{}, draw.Over)
			draw.Draw(answer, cell, scaled, image.Point{}, draw.Over)
		}
	}

	qc := gg.NewContextForRGBA(question)
	ac := gg.NewContextForRGBA(answer)
	if err := qc.LoadFontFace(s.fontPath, fontSize); err != nil {
		return err
	}
	if err := ac.LoadFontFace(s.fontPath, fontSize); err != nil {
		return err
	}

	for i, entry := range shuffled {
		col := i % cols
		row := i / cols
		x := float64(cellGap + col*(cellSize+cellGap))
		y := float64(cellGap + row*(cellSize+cellGap))

		// The numeral is the only participant-correlatable marker on the
		// question canvas.
		numeral := strconv.Itoa(i + 1)
		drawBoxedString(qc, numeral, x+cellSize/2, y+fontSize)
		drawBoxedString(ac, numeral, x+cellSize/2, y+fontSize)

		drawBoxedString(ac, entry.Handle, x+cellSize/2, y+cellSize*nameAnchorY)
	}

	if err := gg.SavePNG(s.questionPath, question); err != nil {
		return err
	}
	return gg.SavePNG(s.answerPath, answer)
}

// fetchEntry tries the attachment's candidate URLs in order; first success
// wins. A fetch failure is per-cell and non-fatal.
func (s *Synthesizer) fetchEntry(ctx context.Context, entry domain.Entry) image.Image {
	for _, url := range entry.Attachment.Candidates() {
		img, err := s.fetch.Fetch(ctx, url)
		if err != nil {
			slog.DebugContext(ctx, "Image fetch failed, trying next candidate", "url", url, "error", err)
			continue
		}
		return img
	}
	slog.WarnContext(ctx, "All image candidates failed, leaving cell blank", "handle", entry.Handle)
	return nil
}

// drawBoxedString draws text centered at (cx, cy) over a measured white box
// with a black outline so labels stay legible on any background.
func drawBoxedString(dc *gg.Context, text string, cx, cy float64) {
	w, h := dc.MeasureString(text)

	dc.SetColor(color.White)
	dc.DrawRectangle(cx-w/2-textPad, cy-h/2-textPad, w+2*textPad, h+2*textPad)
	dc.FillPreserve()
	dc.SetColor(color.Black)
	dc.SetLineWidth(2)
	dc.Stroke()

	dc.DrawStringAnchored(text, cx, cy, 0.5, 0.5)
}
