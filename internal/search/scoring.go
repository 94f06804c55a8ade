package search

import "math"

const (
	k1 = 1.2
	b  = 0.75
)

// rankParams carries the collection statistics BM25 needs, captured once per
// search from the snapshot.
type rankParams struct {
	totalDocs    int
	avgDocLength float64
}

func computeIDF(totalDocs, docFreq int) float64 {
	numerator := float64(totalDocs) - float64(docFreq)
	denominator := float64(docFreq) + 0.5
	return math.Log(numerator/denominator + 1)
}

func computeTFNorm(termFreq, docLength, avgDocLength float64) float64 {
	if avgDocLength == 0 {
		return 0
	}
	lengthRatio := docLength / avgDocLength
	denominator := termFreq + k1*(1-b+b*lengthRatio)
	return (termFreq * (k1 + 1)) / denominator
}
