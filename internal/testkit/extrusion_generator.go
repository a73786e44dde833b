package testkit

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"extruder/domain/spc"
)

// Column names written by the generator. "XY_Average" exercises the rule
// that token "x" must not pick up an "xY..." column.
const (
	ColumnTime = "MCGS_TIME"
	ColumnX    = "X_Diameter"
	ColumnY    = "Y_Diameter"
	ColumnXY   = "XY_Average"
)

// ExtrusionGeneratorConfig configures synthetic diameter gauge data
type ExtrusionGeneratorConfig struct {
	Rows         int           `json:"rows"`
	Target       float64       `json:"target"`        // nominal diameter, mm
	Sigma        float64       `json:"sigma"`         // steady-state noise
	WarmupRows   int           `json:"warmup_rows"`   // leading rows drifting in from WarmupOffset
	WarmupOffset float64       `json:"warmup_offset"` // initial deviation from Target
	CooldownRows int           `json:"cooldown_rows"` // trailing rows drifting away
	DropoutRate  float64       `json:"dropout_rate"`  // share of blank or garbled gauge cells
	Interval     time.Duration `json:"interval"`
	Start        time.Time     `json:"start"`
	Seed         int64         `json:"seed"`
}

// DefaultExtrusionConfig returns a line run of 20,000 one-second readings
// around 1.75 mm with 300 rows of start-up and shut-down drift.
func DefaultExtrusionConfig() ExtrusionGeneratorConfig {
	return ExtrusionGeneratorConfig{
		Rows:         20000,
		Target:       1.75,
		Sigma:        0.006,
		WarmupRows:   300,
		WarmupOffset: 0.08,
		CooldownRows: 300,
		DropoutRate:  0.002,
		Interval:     time.Second,
		Start:        time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
		Seed:         42,
	}
}

// ExtrusionDataGenerator generates diameter gauge readings
type ExtrusionDataGenerator struct {
	config ExtrusionGeneratorConfig
	rng    *rand.Rand
}

// NewExtrusionDataGenerator creates a deterministic generator
func NewExtrusionDataGenerator(config ExtrusionGeneratorConfig) *ExtrusionDataGenerator {
	return &ExtrusionDataGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Rows generates the header and data rows
func (g *ExtrusionDataGenerator) Rows() [][]string {
	cfg := g.config
	rows := make([][]string, 0, cfg.Rows+1)
	rows = append(rows, []string{ColumnTime, ColumnX, ColumnY, ColumnXY})

	for i := 0; i < cfg.Rows; i++ {
		drift := g.drift(i)
		x := cfg.Target + drift + g.rng.NormFloat64()*cfg.Sigma
		y := cfg.Target + drift + g.rng.NormFloat64()*cfg.Sigma
		rows = append(rows, []string{
			cfg.Start.Add(time.Duration(i) * cfg.Interval).Format("2006-01-02 15:04:05"),
			g.cell(x),
			g.cell(y),
			g.cell((x + y) / 2),
		})
	}
	return rows
}

// Dataset generates the readings as an in-memory dataset
func (g *ExtrusionDataGenerator) Dataset() spc.Dataset {
	rows := g.Rows()
	ds := spc.Dataset{Columns: rows[0], Records: make([]spc.Record, 0, len(rows)-1)}
	for _, row := range rows[1:] {
		record := make(spc.Record, len(row))
		for j, cell := range row {
			record[rows[0][j]] = cell
		}
		ds.Records = append(ds.Records, record)
	}
	return ds
}

// WriteCSV writes the readings as CSV
func (g *ExtrusionDataGenerator) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(g.Rows()); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}

// WriteXLSX writes the readings to the first sheet of a workbook
func (g *ExtrusionDataGenerator) WriteXLSX(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	sw, err := f.NewStreamWriter("Sheet1")
	if err != nil {
		return fmt.Errorf("failed to open stream writer: %w", err)
	}
	for i, row := range g.Rows() {
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, cells); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}
	_, err = f.WriteTo(w)
	return err
}

// drift models the line settling at start-up and wandering at shut-down
func (g *ExtrusionDataGenerator) drift(i int) float64 {
	cfg := g.config
	if cfg.WarmupRows > 0 && i < cfg.WarmupRows {
		return cfg.WarmupOffset * float64(cfg.WarmupRows-i) / float64(cfg.WarmupRows)
	}
	if tail := cfg.Rows - i; cfg.CooldownRows > 0 && tail <= cfg.CooldownRows {
		return -cfg.WarmupOffset * float64(cfg.CooldownRows-tail+1) / float64(cfg.CooldownRows)
	}
	return 0
}

func (g *ExtrusionDataGenerator) cell(v float64) string {
	if g.config.DropoutRate > 0 && g.rng.Float64() < g.config.DropoutRate {
		if g.rng.Intn(2) == 0 {
			return ""
		}
		return "ERR"
	}
	return strconv.FormatFloat(v, 'f', 4, 64)
}
