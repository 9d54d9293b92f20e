package calibrator

// weightedLineFit fits col = m*row + x0 by weighted least squares over the
// rows whose weight is nonzero. Roles are inverted from the usual y = mx+b
// because calibration beams are near-vertical lines in (row, col) space.
func weightedLineFit(rows []int, cols []colValue, weights []float64) (m, x0 float64) {
	var sw, swx, swy, swxx, swxy float64
	for i, row := range rows {
		w := weights[i]
		if w == 0 {
			continue
		}
		x := float64(row)
		y := float64(cols[i].col)
		sw += w
		swx += w * x
		swy += w * y
		swxx += w * x * x
		swxy += w * x * y
	}
	if sw == 0 {
		return 0, 0
	}
	denom := sw*swxx - swx*swx
	if denom == 0 {
		return 0, swy / sw
	}
	m = (sw*swxy - swx*swy) / denom
	x0 = (swy - m*swx) / sw
	return m, x0
}
