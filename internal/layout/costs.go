package layout

// Metrics is the polled cost data for one stage, supplied by the reconciler.
type Metrics struct {
	Cost       float64
	DurationMs int64
}

// ColorBand classifies a stage's cost relative to the cascade average.
type ColorBand string

const (
	BandNeutral ColorBand = "neutral"
	BandCool    ColorBand = "cool"
	BandWarm    ColorBand = "warm"
	BandHot     ColorBand = "hot"
)

// scaleFor maps a cost delta percentage to a visual scale factor. Bands are
// checked in this exact order; first match wins.
func scaleFor(deltaPct float64) float64 {
	switch {
	case deltaPct > 100:
		return 1.3
	case deltaPct > 50:
		return 1.2
	case deltaPct > 10:
		return 1.1
	case deltaPct < -50:
		return 0.85
	case deltaPct < -20:
		return 0.9
	default:
		return 1.0
	}
}

// bandFor maps a cost delta percentage to a color band.
func bandFor(deltaPct float64) ColorBand {
	switch {
	case deltaPct > 50:
		return BandHot
	case deltaPct > 10:
		return BandWarm
	case deltaPct < -20:
		return BandCool
	default:
		return BandNeutral
	}
}

// deltaPct returns the percentage deviation of cost from the average, or 0
// when the average is 0.
func deltaPct(cost, avg float64) float64 {
	if avg == 0 {
		return 0
	}
	return (cost - avg) / avg * 100
}

// averageCost computes the mean cost over stages that have polled cost data.
// Stages absent from metrics do not drag the average down.
func averageCost(metrics map[string]Metrics) float64 {
	if len(metrics) == 0 {
		return 0
	}
	var sum float64
	for _, m := range metrics {
		sum += m.Cost
	}
	return sum / float64(len(metrics))
}
