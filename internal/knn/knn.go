// Package knn implements a small k-nearest-neighbour classifier with
// inverse-distance weighting.
package knn

import (
	"math"
	"sort"
)

// Sample is a labelled point already measured against the query
type Sample[L comparable] struct {
	Label    L
	Distance float64
}

// Result is the outcome of a classification
type Result[L comparable] struct {
	Label L
	// Score is the summed inverse distance of the winning label
	Score float64
	// Index of the nearest input sample carrying Label
	Index int
}

// Classify votes among the k nearest samples. Each neighbour adds 1/distance
// to its label's score and the highest score wins; a neighbour at distance
// zero outweighs everything else. Ties go to the label met first when
// scanning neighbours nearest first (input order breaks distance ties).
// It returns false when samples is empty or k < 1.
func Classify[L comparable](samples []Sample[L], k int) (Result[L], bool) {
	if len(samples) == 0 || k < 1 {
		return Result[L]{}, false
	}
	if k > len(samples) {
		k = len(samples)
	}

	order := make([]int, len(samples))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return samples[order[a]].Distance < samples[order[b]].Distance
	})
	neighbours := order[:k]

	scores := make(map[L]float64, k)
	nearest := make(map[L]int, k)
	labels := make([]L, 0, k)
	for _, idx := range neighbours {
		sample := samples[idx]
		if _, seen := scores[sample.Label]; !seen {
			labels = append(labels, sample.Label)
			nearest[sample.Label] = idx
		}
		scores[sample.Label] += weight(sample.Distance)
	}

	best := Result[L]{Label: labels[0], Score: scores[labels[0]], Index: nearest[labels[0]]}
	for _, label := range labels[1:] {
		if scores[label] > best.Score {
			best = Result[L]{Label: label, Score: scores[label], Index: nearest[label]}
		}
	}
	return best, true
}

func weight(distance float64) float64 {
	if distance <= 0 {
		return math.Inf(1)
	}
	return 1 / distance
}
