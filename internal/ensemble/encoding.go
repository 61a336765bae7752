package ensemble

import (
	"fmt"
	"strings"
)

// AminoAcids is the alphabet of the one-hot encoding. X stands for any
// unknown residue.
const AminoAcids = "ACDEFGHIKLMNPQRSTVWYX"

var aminoIndex = func() map[rune]int {
	m := make(map[rune]int, len(AminoAcids))
	for i, a := range AminoAcids {
		m[a] = i
	}
	return m
}()

// OneHot encodes peptides of equal length into flat 0/1 feature vectors.
func OneHot(peptides []string, length int) ([][]float64, error) {
	out := make([][]float64, len(peptides))
	for i, p := range peptides {
		p = strings.ToUpper(p)
		if len(p) != length {
			return nil, fmt.Errorf("ensemble: peptide %q has length %d, want %d", p, len(p), length)
		}
		row := make([]float64, length*len(AminoAcids))
		for pos, r := range p {
			idx, ok := aminoIndex[r]
			if !ok {
				idx = aminoIndex['X']
			}
			row[pos*len(AminoAcids)+idx] = 1
		}
		out[i] = row
	}
	return out, nil
}
