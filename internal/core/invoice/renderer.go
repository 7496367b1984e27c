// Package invoice draws cart invoices as fixed-layout PNG images.
package invoice

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/rl1809/orderbot/internal/core/domain"
)

const (
	Width  = 900
	Height = 1200

	MarginX   = 30
	HeaderY   = 40
	HeaderGap = 40
	RowStep   = 30
	TotalGap  = 30

	FontSize        = 18
	DefaultCurrency = "IRR"
	ContentType     = "image/png"
)

type Renderer struct {
	font     *opentype.Font
	currency string
}

func NewRenderer(currency string) (*Renderer, error) {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	if currency == "" {
		currency = DefaultCurrency
	}
	return &Renderer{font: f, currency: currency}, nil
}

// Render draws the invoice for orderID and returns it PNG encoded. The same
// input always yields the same bytes. Rows that fall below the canvas are clipped.
func (r *Renderer) Render(orderID int64, lines []domain.InvoiceLine, total int64) ([]byte, error) {
	// faces keep a glyph cache and are not safe for concurrent use
	face, err := opentype.NewFace(r.font, &opentype.FaceOptions{
		Size:    FontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("new face: %w", err)
	}
	defer face.Close()

	img := image.NewRGBA(image.Rect(0, 0, Width, Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: face,
	}
	ascent := face.Metrics().Ascent

	text := func(y int, s string) {
		d.Dot = fixed.Point26_6{X: fixed.I(MarginX), Y: fixed.I(y) + ascent}
		d.DrawString(s)
	}

	y := HeaderY
	text(y, fmt.Sprintf("Invoice #%d", orderID))
	y += HeaderGap

	for i, l := range lines {
		text(y, fmt.Sprintf("%d. %s | %d %s × %d", i+1, l.Name, l.Quantity, l.Unit, l.UnitPrice))
		y += RowStep
	}

	y += TotalGap
	text(y, fmt.Sprintf("TOTAL: %d %s", total, r.currency))

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// TotalRowY is the top of the total row for an invoice with n lines.
func TotalRowY(n int) int {
	return HeaderY + HeaderGap + n*RowStep + TotalGap
}
