package detect

import "image"

// component is one connected blob of set mask pixels with its bounding box in
// absolute frame coordinates.
type component struct {
	rect   image.Rectangle
	pixels int
}

// findComponents scans a binary mask and collects 8-connected components with
// at least minPixels set pixels. Collection stops once maxComponents blobs
// have been found so a noisy frame cannot blow up the pass.
func findComponents(mask *image.Gray, minPixels, maxComponents int) []component {
	b := mask.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil
	}
	visited := make([]bool, w*h)
	stack := make([]image.Point, 0, 256)
	var comps []component
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx := y*w + x
			if visited[idx] || !maskOn(mask, b.Min.X+x, b.Min.Y+y) {
				continue
			}
			visited[idx] = true
			stack = append(stack[:0], image.Pt(x, y))
			minX, minY, maxX, maxY := x, y, x, y
			count := 0
			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				count++
				if p.X < minX {
					minX = p.X
				}
				if p.X > maxX {
					maxX = p.X
				}
				if p.Y < minY {
					minY = p.Y
				}
				if p.Y > maxY {
					maxY = p.Y
				}
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						if dx == 0 && dy == 0 {
							continue
						}
						nx, ny := p.X+dx, p.Y+dy
						if nx < 0 || ny < 0 || nx >= w || ny >= h {
							continue
						}
						nidx := ny*w + nx
						if visited[nidx] || !maskOn(mask, b.Min.X+nx, b.Min.Y+ny) {
							continue
						}
						visited[nidx] = true
						stack = append(stack, image.Pt(nx, ny))
					}
				}
			}
			if count < minPixels {
				continue
			}
			comps = append(comps, component{
				rect:   image.Rect(b.Min.X+minX, b.Min.Y+minY, b.Min.X+maxX+1, b.Min.Y+maxY+1),
				pixels: count,
			})
			if len(comps) >= maxComponents {
				return comps
			}
		}
	}
	return comps
}
