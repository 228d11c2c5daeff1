package fits

// Image is a decoded primary HDU: its header plus the pixel data.
//
// Pixels are stored plane by plane, row-major within a plane, with
// BZERO/BSCALE already applied. Mono and Bayer-mosaic frames have one plane,
// colour frames three.
type Image struct {
	Header   Header
	Width    int
	Height   int
	Channels int
	Pixels   []float64
}

// BayerPattern returns the colour filter array pattern declared by BAYERPAT
func (img *Image) BayerPattern() (string, bool) {
	pattern, ok := img.Header.String("BAYERPAT")
	if !ok || pattern == "" {
		return "", false
	}
	return pattern, true
}

// Plane returns the pixels of channel c
func (img *Image) Plane(c int) []float64 {
	n := img.Width * img.Height
	return img.Pixels[c*n : (c+1)*n]
}

// Mean is the arithmetic mean over all raw pixel values
func (img *Image) Mean() float64 {
	if len(img.Pixels) == 0 {
		return 0
	}
	var sum float64
	for _, v := range img.Pixels {
		sum += v
	}
	return sum / float64(len(img.Pixels))
}
