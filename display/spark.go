package display

import (
	"math"
	"strings"
)

const blocks = " ▁▂▃▄▅▆▇█"

// Sparkline draws the last width values scaled to ceil. A non-positive ceil
// scales to the largest value.
func Sparkline(data []float64, width int, ceil float64) string {
	if width <= 0 {
		return ""
	}
	if len(data) == 0 {
		return strings.Repeat(" ", width)
	}
	d := downsample(data, width)
	if len(d) < width {
		d = append(make([]float64, width-len(d)), d...)
	}
	if ceil <= 0 {
		for _, v := range d {
			ceil = math.Max(ceil, math.Abs(v))
		}
	}
	if ceil <= 0 {
		ceil = 1
	}
	blk := []rune(blocks)
	var b strings.Builder
	for _, v := range d {
		frac := math.Min(1, math.Abs(v)/ceil)
		b.WriteRune(blk[min(8, int(frac*8))])
	}
	return b.String()
}

// downsample keeps the peak of each bucket so impacts stay visible.
func downsample(data []float64, width int) []float64 {
	n := len(data)
	if n <= width {
		return data
	}
	step := float64(n) / float64(width)
	out := make([]float64, width)
	for c := range width {
		si := int(float64(c) * step)
		ei := int(float64(c+1) * step)
		mx := data[si]
		for j := si + 1; j < ei && j < n; j++ {
			mx = math.Max(mx, data[j])
		}
		out[c] = mx
	}
	return out
}
