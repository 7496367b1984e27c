// Package match ranks candidate strings by similarity to a query.
//
// Similarity is the Ratcliff/Obershelp ratio 2*M/T computed per rune, where M
// is the number of characters in matching blocks and T the combined length.
// Matching is case-sensitive and applies no normalization.
//
// Key functions:
//   - Similarity: ratio of two strings in [0, 1]
//   - ClosestMatches: best candidates above a cutoff, best first
package match
