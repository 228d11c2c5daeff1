package preview

import "fmt"

const (
	red = iota
	green
	blue
)

// demosaicFunc turns one mosaic plane into red, green and blue planes
type demosaicFunc func(src []float64, width, height int) [][]float64

// demosaicers maps BAYERPAT values to their demosaicer. The pattern lists
// the filter colours of the top-left 2x2 cell in row-major order.
var demosaicers = map[string]demosaicFunc{
	"RGGB": bilinear([4]int{red, green, green, blue}),
	"GRBG": bilinear([4]int{green, red, blue, green}),
	"BGGR": bilinear([4]int{blue, green, green, red}),
	"GBRG": bilinear([4]int{green, blue, red, green}),
}

// demosaic converts a single-plane mosaic using the named pattern
func demosaic(pattern string, src []float64, width, height int) ([][]float64, error) {
	fn, ok := demosaicers[pattern]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPattern, pattern)
	}
	return fn(src, width, height), nil
}

// bilinear interpolates each missing colour from the same-colour sites in
// the surrounding 3x3 window. Native samples are kept as they are.
func bilinear(cell [4]int) demosaicFunc {
	colourAt := func(x, y int) int {
		return cell[(y&1)*2+(x&1)]
	}

	return func(src []float64, width, height int) [][]float64 {
		n := width * height
		out := [][]float64{make([]float64, n), make([]float64, n), make([]float64, n)}

		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				i := y*width + x
				native := colourAt(x, y)

				var sum [3]float64
				var count [3]int
				for dy := -1; dy <= 1; dy++ {
					yy := y + dy
					if yy < 0 || yy >= height {
						continue
					}
					for dx := -1; dx <= 1; dx++ {
						xx := x + dx
						if xx < 0 || xx >= width {
							continue
						}
						c := colourAt(xx, yy)
						sum[c] += src[yy*width+xx]
						count[c]++
					}
				}

				for c := range out {
					switch {
					case c == native:
						out[c][i] = src[i]
					case count[c] > 0:
						out[c][i] = sum[c] / float64(count[c])
					}
				}
			}
		}
		return out
	}
}
