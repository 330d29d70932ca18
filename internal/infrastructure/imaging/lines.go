package imaging

import (
	"image"
	"math"
	"sort"
)

// LineStats summarizes straight lines detected on a page. Angles are line
// directions in degrees within [-90, 90), where 0 is horizontal.
type LineStats struct {
	Horizontal int
	Vertical   int
	Angles     []float64
}

const (
	houghThetaSteps = 180
	// Votes required before an accumulator cell counts as a line, as a
	// fraction of the strongest cell.
	houghPeakRatio = 0.5
	houghMinVotes  = 40

	gradientThreshold = 96
	maxDetectDim      = 1024
)

// DetectLines runs a Hough transform over the strong-gradient pixels of img.
// Large pages are sampled down first; angles are scale invariant.
func DetectLines(img *image.Gray) LineStats {
	if img == nil {
		return LineStats{}
	}
	src := shrinkForDetection(img)
	edges := edgePoints(src)
	if len(edges) == 0 {
		return LineStats{}
	}

	b := src.Bounds()
	diag := int(math.Ceil(math.Hypot(float64(b.Dx()), float64(b.Dy()))))
	rhoBins := 2*diag + 1

	sin := make([]float64, houghThetaSteps)
	cos := make([]float64, houghThetaSteps)
	for t := 0; t < houghThetaSteps; t++ {
		rad := float64(t) * math.Pi / float64(houghThetaSteps)
		sin[t] = math.Sin(rad)
		cos[t] = math.Cos(rad)
	}

	acc := make([]int32, houghThetaSteps*rhoBins)
	for _, p := range edges {
		x, y := float64(p.X), float64(p.Y)
		for t := 0; t < houghThetaSteps; t++ {
			rho := int(math.Round(x*cos[t]+y*sin[t])) + diag
			acc[t*rhoBins+rho]++
		}
	}

	var maxVotes int32
	for _, v := range acc {
		if v > maxVotes {
			maxVotes = v
		}
	}
	threshold := int32(houghMinVotes)
	if scaled := int32(float64(maxVotes) * houghPeakRatio); scaled > threshold {
		threshold = scaled
	}

	var stats LineStats
	for t := 0; t < houghThetaSteps; t++ {
		row := acc[t*rhoBins : (t+1)*rhoBins]
		for r, votes := range row {
			if votes < threshold {
				continue
			}
			if !isLocalPeak(acc, t, r, rhoBins, votes) {
				continue
			}
			// theta is the normal direction; the line itself runs at
			// theta-90 relative to the x axis.
			dir := float64(t) - 90
			if dir < -90 {
				dir += 180
			}
			stats.Angles = append(stats.Angles, dir)
			switch {
			case math.Abs(dir) <= 10:
				stats.Horizontal++
			case math.Abs(dir) >= 80:
				stats.Vertical++
			}
		}
	}
	return stats
}

// SkewAngle estimates the page skew as the median direction of detected
// near-horizontal lines. ok is false when nothing usable was found.
func SkewAngle(img *image.Gray) (angle float64, ok bool) {
	stats := DetectLines(img)
	var candidates []float64
	for _, dir := range stats.Angles {
		if math.Abs(dir) <= 45 {
			candidates = append(candidates, dir)
		}
	}
	if len(candidates) == 0 {
		return 0, false
	}
	sort.Float64s(candidates)
	mid := len(candidates) / 2
	if len(candidates)%2 == 1 {
		return candidates[mid], true
	}
	return (candidates[mid-1] + candidates[mid]) / 2, true
}

func isLocalPeak(acc []int32, t, r, rhoBins int, votes int32) bool {
	for dt := -1; dt <= 1; dt++ {
		nt := t + dt
		if nt < 0 || nt >= houghThetaSteps {
			continue
		}
		for dr := -2; dr <= 2; dr++ {
			nr := r + dr
			if nr < 0 || nr >= rhoBins {
				continue
			}
			neighbor := acc[nt*rhoBins+nr]
			if neighbor > votes {
				return false
			}
			// Ties break toward the lexicographically first cell so a
			// plateau yields exactly one peak.
			if neighbor == votes && (nt < t || (nt == t && nr < r)) {
				return false
			}
		}
	}
	return true
}

func edgePoints(img *image.Gray) []image.Point {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	var points []image.Point
	for y := 1; y < h-1; y++ {
		row := img.Pix[y*img.Stride:]
		above := img.Pix[(y-1)*img.Stride:]
		below := img.Pix[(y+1)*img.Stride:]
		for x := 1; x < w-1; x++ {
			gx := int(row[x+1]) - int(row[x-1])
			gy := int(below[x]) - int(above[x])
			if abs(gx)+abs(gy) >= gradientThreshold {
				points = append(points, image.Point{X: x, Y: y})
			}
		}
	}
	return points
}

func shrinkForDetection(img *image.Gray) *image.Gray {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	longest := w
	if h > longest {
		longest = h
	}
	if longest <= maxDetectDim {
		return normalizeBounds(img)
	}
	step := (longest + maxDetectDim - 1) / maxDetectDim
	out := image.NewGray(image.Rect(0, 0, (w+step-1)/step, (h+step-1)/step))
	for y := 0; y < h; y += step {
		for x := 0; x < w; x += step {
			out.SetGray(x/step, y/step, img.GrayAt(b.Min.X+x, b.Min.Y+y))
		}
	}
	return out
}

// normalizeBounds re-origins img at (0,0) so pixel math can index Pix directly.
func normalizeBounds(img *image.Gray) *image.Gray {
	b := img.Bounds()
	if b.Min.X == 0 && b.Min.Y == 0 {
		return img
	}
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		copy(out.Pix[y*out.Stride:y*out.Stride+b.Dx()], img.Pix[y*img.Stride:])
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
