package report

import (
	"fmt"
	"image/color"
	"io"
	"unicode/utf8"

	"github.com/fogleman/gg"

	"github.com/pavelanni/literable/internal/model"
)

const (
	chartWidth    = 640
	chartHeight   = 400
	chartMargin   = 50
	chartFontSize = 13
)

var otherGrade = color.NRGBA{0x60, 0x60, 0x60, 0xff}

var gradeColors = map[string]color.NRGBA{
	"A": {0x2e, 0x7d, 0x32, 0xff},
	"B": {0x55, 0x8b, 0x2f, 0xff},
	"C": {0xf9, 0xa8, 0x25, 0xff},
	"D": {0xef, 0x6c, 0x00, 0xff},
	"F": {0xc6, 0x28, 0x28, 0xff},
}

// ChartOptions control the labels of GradeChart.
type ChartOptions struct {
	Title string
	// FontPath is a TrueType font for the labels. The built-in face has
	// ASCII glyphs only, so Korean titles need one.
	FontPath string
}

// GradeChart draws the grade distribution as a PNG bar chart. Bars are
// coloured by the band letter that starts each label ("A (90-100)").
func GradeChart(w io.Writer, dist []model.GradeBucket, opts ChartOptions) error {
	dc := gg.NewContext(chartWidth, chartHeight)
	dc.SetColor(color.White)
	dc.Clear()
	if opts.FontPath != "" {
		if err := dc.LoadFontFace(opts.FontPath, chartFontSize); err != nil {
			return fmt.Errorf("load chart font: %w", err)
		}
	}
	title := opts.Title
	if title == "" || (opts.FontPath == "" && !isASCII(title)) {
		title = "Grade distribution"
	}

	maxCount := 0
	for _, b := range dist {
		maxCount = max(maxCount, b.Count)
	}
	scaleTop := max(maxCount, 1)

	plotW := float64(chartWidth - 2*chartMargin)
	plotH := float64(chartHeight - 2*chartMargin)
	baseY := float64(chartHeight - chartMargin)

	dc.SetColor(color.Black)
	dc.DrawStringAnchored(title, chartWidth/2, chartMargin/2, 0.5, 0.5)

	// Axes.
	dc.SetLineWidth(1)
	dc.DrawLine(chartMargin, chartMargin, chartMargin, baseY)
	dc.DrawLine(chartMargin, baseY, float64(chartWidth-chartMargin), baseY)
	dc.Stroke()

	dc.DrawStringAnchored("0", chartMargin-8, baseY, 1, 0.5)
	dc.DrawStringAnchored(fmt.Sprint(scaleTop), chartMargin-8, chartMargin, 1, 0.5)

	if len(dist) == 0 {
		return encode(dc, w)
	}

	slot := plotW / float64(len(dist))
	barW := slot * 0.6
	for i, b := range dist {
		x := chartMargin + slot*float64(i) + (slot-barW)/2
		h := plotH * float64(b.Count) / float64(scaleTop)

		dc.SetColor(gradeColor(b.Grade))
		dc.DrawRectangle(x, baseY-h, barW, h)
		dc.Fill()

		dc.SetColor(color.Black)
		dc.DrawStringAnchored(b.Grade, x+barW/2, baseY+16, 0.5, 0.5)
		dc.DrawStringAnchored(fmt.Sprint(b.Count), x+barW/2, baseY-h-10, 0.5, 0.5)
	}
	return encode(dc, w)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func gradeColor(label string) color.NRGBA {
	if label == "" {
		return otherGrade
	}
	if c, ok := gradeColors[label[:1]]; ok {
		return c
	}
	return otherGrade
}

func encode(dc *gg.Context, w io.Writer) error {
	if err := dc.EncodePNG(w); err != nil {
		return fmt.Errorf("encode chart: %w", err)
	}
	return nil
}
