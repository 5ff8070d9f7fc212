package sim

// render draws a colour ramp with a vertical bar that moves one step per
// frame, laid out in the requested pixel format.
func render(format string, w, h int, seq uint64) []byte {
	bar := int(seq*8) % w
	color := func(x, y int) (r, g, b byte) {
		if x >= bar && x < bar+8 {
			return 255, 255, 255
		}
		return byte(x * 255 / w), byte(y * 255 / h), byte((x + y) * 255 / (w + h))
	}

	switch format {
	case "Mono8":
		out := make([]byte, w*h)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r, g, b := color(x, y)
				out[y*w+x] = byte((int(r) + int(g) + int(b)) / 3)
			}
		}
		return out
	case "RGB8Packed":
		out := make([]byte, w*h*3)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				p := 3 * (y*w + x)
				out[p], out[p+1], out[p+2] = color(x, y)
			}
		}
		return out
	default:
		// BayerRG8: R G / G B
		out := make([]byte, w*h)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r, g, b := color(x, y)
				switch {
				case y%2 == 0 && x%2 == 0:
					out[y*w+x] = r
				case y%2 == 1 && x%2 == 1:
					out[y*w+x] = b
				default:
					out[y*w+x] = g
				}
			}
		}
		return out
	}
}

// demosaic reconstructs RGB from an RGGB mosaic by replicating each 2x2 cell.
func demosaic(bayer []byte, w, h int) []byte {
	out := make([]byte, w*h*3)
	at := func(x, y int) byte {
		if x >= w {
			x = w - 1
		}
		if y >= h {
			y = h - 1
		}
		return bayer[y*w+x]
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			cx, cy := x&^1, y&^1
			r := at(cx, cy)
			g := byte((int(at(cx+1, cy)) + int(at(cx, cy+1))) / 2)
			b := at(cx+1, cy+1)
			p := 3 * (y*w + x)
			out[p], out[p+1], out[p+2] = r, g, b
		}
	}
	return out
}
