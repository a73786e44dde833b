package spc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"extruder/domain/spc"
)

func TestResolveColumn(t *testing.T) {
	ds := spc.Dataset{
		Columns: []string{"xValue", "xY2", "yValue"},
		Records: []spc.Record{{"xValue": "1", "xY2": "2", "yValue": "3"}},
	}

	tests := []struct {
		name     string
		columns  []string
		token    string
		expected string
	}{
		{"prefix not followed by Y", ds.Columns, "x", "xValue"},
		{"skips Y suffixed family", []string{"xY2", "xValue"}, "x", "xValue"},
		{"case insensitive token", []string{"XDiameter"}, "x", "XDiameter"},
		{"exact name", []string{"MCGS_TIME", "x"}, "x", "x"},
		{"y token", ds.Columns, "y", "yValue"},
		{"xy token", []string{"x_diameter", "xy_ovality"}, "xy", "xy_ovality"},
		{"lowercase y is rejected too", []string{"xyOvality", "xDiameter"}, "x", "xDiameter"},
		{"first match in declared order", []string{"x1", "x2"}, "x", "x1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := spc.Dataset{Columns: tt.columns, Records: []spc.Record{{}}}
			got, err := ResolveColumn(in, tt.token)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestResolveColumn_NotFound(t *testing.T) {
	ds := spc.Dataset{
		Columns: []string{"xY2", "yValue"},
		Records: []spc.Record{{"xY2": "1", "yValue": "2"}},
	}

	_, err := ResolveColumn(ds, "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, spc.ErrColumnNotFound))
	assert.Equal(t, "Data type 'x' not found in CSV", err.Error())

	var notFound *spc.ColumnNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "x", notFound.Token)
	assert.False(t, notFound.Empty)
}

func TestResolveColumn_EmptyDataset(t *testing.T) {
	_, err := ResolveColumn(spc.Dataset{Columns: []string{"xValue"}}, "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, spc.ErrColumnNotFound))

	var notFound *spc.ColumnNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.True(t, notFound.Empty)
}

func TestResolveColumn_FallsBackToRecordKeys(t *testing.T) {
	ds := spc.Dataset{Records: []spc.Record{{"yValue": "1", "xValue": "2"}}}

	got, err := ResolveColumn(ds, "x")
	require.NoError(t, err)
	assert.Equal(t, "xValue", got)
}
