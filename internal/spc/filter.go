package spc

import (
	"extruder/domain/spc"
)

// DefaultLabelColumn is the timestamp column written by the extruder loggers.
const DefaultLabelColumn = "MCGS_TIME"

// Filter builds the working sample for one column. Steps run in a fixed
// order because each one changes which positions the next one sees:
//
//  1. range trim: drop ExcludeFirst leading and ExcludeLast trailing records
//  2. subsample: keep every ModuloFactor-th trimmed position, bounding the
//     sample to about spc.SampleTarget points
//  3. parse and threshold: drop non-numeric cells, operator-excluded
//     positions, and values on the wrong side of the threshold band
//
// Positions are indices into the trimmed sequence. Filter never mutates
// its inputs.
func Filter(ds spc.Dataset, column, labelColumn string, cfg spc.FilterConfig) spc.Sample {
	trimmed := trimRange(ds.Records, cfg.ExcludeFirst, cfg.ExcludeLast)
	modulo := ModuloFactor(len(trimmed))

	sample := spc.Sample{
		Column:        column,
		LabelColumn:   labelColumn,
		TrimmedLength: len(trimmed),
		ModuloFactor:  modulo,
		Points:        make([]spc.Point, 0, len(trimmed)/modulo+1),
	}

	for i := 0; i < len(trimmed); i += modulo {
		record := trimmed[i]
		value, ok := record.Float(column)
		if !ok {
			continue
		}
		if cfg.Excluded(i) {
			continue
		}
		within := value >= cfg.LowerThreshold && value <= cfg.UpperThreshold
		if within == cfg.ExcludeWithinThreshold {
			continue
		}
		sample.Points = append(sample.Points, spc.Point{
			Position: i,
			Value:    value,
			Label:    record[labelColumn],
		})
	}

	return sample
}

// TrimmedValues returns every numeric value of the range-trimmed column with
// no subsampling or threshold filtering. It feeds the raw histogram.
func TrimmedValues(ds spc.Dataset, column string, cfg spc.FilterConfig) []float64 {
	trimmed := trimRange(ds.Records, cfg.ExcludeFirst, cfg.ExcludeLast)
	values := make([]float64, 0, len(trimmed))
	for _, record := range trimmed {
		if value, ok := record.Float(column); ok {
			values = append(values, value)
		}
	}
	return values
}

// ModuloFactor is the subsampling stride for a trimmed sequence length.
func ModuloFactor(trimmedLength int) int {
	factor := trimmedLength / spc.SampleTarget
	if factor < 1 {
		return 1
	}
	return factor
}

func trimRange(records []spc.Record, first, last int) []spc.Record {
	if first < 0 {
		first = 0
	}
	if last < 0 {
		last = 0
	}
	end := len(records) - last
	if first >= end {
		return nil
	}
	return records[first:end]
}
