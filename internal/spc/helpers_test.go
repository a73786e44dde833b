package spc

import (
	"strconv"

	"extruder/domain/spc"
)

// datasetOf builds a dataset with a value column "xValue" and a label column
func datasetOf(values ...string) spc.Dataset {
	ds := spc.Dataset{Columns: []string{DefaultLabelColumn, "xValue"}}
	for i, v := range values {
		ds.Records = append(ds.Records, spc.Record{
			DefaultLabelColumn: "t" + strconv.Itoa(i),
			"xValue":           v,
		})
	}
	return ds
}

func floatDataset(n int, value func(i int) float64) spc.Dataset {
	values := make([]string, n)
	for i := range values {
		values[i] = strconv.FormatFloat(value(i), 'f', -1, 64)
	}
	return datasetOf(values...)
}
