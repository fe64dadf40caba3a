package charts

import (
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Slice is one wedge of a Pie.
type Slice struct {
	Label string
	Value float64
	Color color.Color
}

// Thumbnail fills the legend entry with the slice color.
func (s Slice) Thumbnail(c *draw.Canvas) {
	pts := []vg.Point{
		{X: c.Min.X, Y: c.Min.Y},
		{X: c.Min.X, Y: c.Max.Y},
		{X: c.Max.X, Y: c.Max.Y},
		{X: c.Max.X, Y: c.Min.Y},
	}
	c.FillPolygon(s.Color, c.ClipPolygonY(pts))
}

// Pie draws its slices counter-clockwise starting at twelve o'clock.
type Pie struct {
	Slices []Slice
}

func (p *Pie) total() float64 {
	var sum float64
	for _, s := range p.Slices {
		sum += s.Value
	}
	return sum
}

// Plot implements plot.Plotter.
func (p *Pie) Plot(c draw.Canvas, _ *plot.Plot) {
	total := p.total()
	if total <= 0 {
		return
	}

	center := c.Center()
	radius := 0.45 * vg.Length(math.Min(float64(c.Max.X-c.Min.X), float64(c.Max.Y-c.Min.Y)))

	start := math.Pi / 2
	for _, s := range p.Slices {
		angle := 2 * math.Pi * s.Value / total

		var path vg.Path
		path.Move(center)
		path.Arc(center, radius, start, angle)
		path.Close()

		c.SetColor(s.Color)
		c.Fill(path)
		start += angle
	}
}
