package assess

import "math"

const (
	// qualityWeight scales the catalog's 0-100 data quality score.
	qualityWeight = 0.6

	// verificationCap bounds the verification contribution; additional
	// verifications have diminishing returns.
	verificationCap = 20.0

	// completenessFull / completenessPartial reward ingredient text that
	// tokenized into a usable number of mentions.
	completenessFull    = 20.0
	completenessPartial = 10.0
	minFullTokens       = 3

	// lowConfidenceCeiling caps the score when tokenization produced no
	// mentions at all: "no data" is never the same as "verified safe".
	lowConfidenceCeiling = 40

	// safeConfidenceThreshold is the minimum score at which an empty
	// risk-factor list may be reported as safe rather than caution.
	safeConfidenceThreshold = 50
)

// confidenceScore derives a 0-100 trustworthiness measure from catalog
// data quality, community verification count, and how complete the
// ingredient text looked after tokenization. It measures the data, not
// the restriction matching.
func confidenceScore(dataQuality, verificationCount, textTokens int) int {
	quality := float64(clamp(dataQuality, 0, 100)) * qualityWeight

	// count/(count+3) rises steeply for the first few verifications and
	// flattens out, so a heavily verified record cannot dominate quality.
	verification := 0.0
	if verificationCount > 0 {
		verification = verificationCap * float64(verificationCount) / float64(verificationCount+3)
	}

	completeness := 0.0
	switch {
	case textTokens >= minFullTokens:
		completeness = completenessFull
	case textTokens > 0:
		completeness = completenessPartial
	}

	score := int(math.Round(quality + verification + completeness))
	return clamp(score, 0, 100)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
