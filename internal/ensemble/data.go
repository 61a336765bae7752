package ensemble

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Measurement is one row of an affinity training table.
type Measurement struct {
	Allele  string
	Peptide string
	// Value is the IC50 in nM.
	Value float64
	Type  string
}

// Required columns of a measurement table. measurement_type is optional.
const (
	colAllele  = "allele"
	colPeptide = "peptide"
	colValue   = "measurement_value"
	colType    = "measurement_type"
)

// ReadMeasurements parses a CSV table with at least the allele, peptide and
// measurement_value columns, in any order.
func ReadMeasurements(r io.Reader) ([]Measurement, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("ensemble: empty measurement table")
		}
		return nil, fmt.Errorf("ensemble: read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(h)] = i
	}
	for _, c := range []string{colAllele, colPeptide, colValue} {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("ensemble: measurement table lacks column %q", c)
		}
	}
	typeCol, hasType := cols[colType]

	var out []Measurement
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("ensemble: line %d: %w", line, err)
		}

		v, err := strconv.ParseFloat(strings.TrimSpace(rec[cols[colValue]]), 64)
		if err != nil {
			return nil, fmt.Errorf("ensemble: line %d: measurement_value: %w", line, err)
		}
		m := Measurement{
			Allele:  strings.TrimSpace(rec[cols[colAllele]]),
			Peptide: strings.ToUpper(strings.TrimSpace(rec[cols[colPeptide]])),
			Value:   v,
		}
		if hasType {
			m.Type = strings.TrimSpace(rec[typeCol])
		}
		out = append(out, m)
	}
}

// Filter keeps the measurements of allele whose peptides have the given
// length. A non-empty measurementType also restricts the type.
func Filter(ms []Measurement, allele string, length int, measurementType string) []Measurement {
	var out []Measurement
	for _, m := range ms {
		if m.Allele != allele || len(m.Peptide) != length {
			continue
		}
		if measurementType != "" && m.Type != measurementType {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Split returns the peptides and values of ms.
func Split(ms []Measurement) (peptides []string, values []float64) {
	peptides = make([]string, len(ms))
	values = make([]float64, len(ms))
	for i, m := range ms {
		peptides[i] = m.Peptide
		values[i] = m.Value
	}
	return peptides, values
}
