package codec

import "math"

// Compression levels accepted from the CLI. Level 0 favors the smallest
// output, level 5 the best quality.
const (
	MinLevel = 0
	MaxLevel = 5
)

// fallbackQuality is used for any level outside MinLevel..MaxLevel.
const fallbackQuality = 0.80

var qualityLevels = [MaxLevel + 1]float64{0.20, 0.40, 0.50, 0.60, 0.75, 0.90}

// QualityFor maps a compression level to a quality fraction in [0,1].
// Only lossy encoders (JPEG, HEIC) use the result.
func QualityFor(level int) float64 {
	if level < MinLevel || level > MaxLevel {
		return fallbackQuality
	}
	return qualityLevels[level]
}

// percent converts a quality fraction to the 1–100 scale used by encoders.
func percent(q float64) int {
	p := int(math.Round(q * 100))
	switch {
	case p < 1:
		return 1
	case p > 100:
		return 100
	}
	return p
}
