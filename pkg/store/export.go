package store

import (
	"fmt"
	"io"

	"github.com/chewxy/math32"
	"github.com/xuri/excelize/v2"

	"github.com/itohio/humidistat/pkg/sample"
)

const xlsxSheet = "data"

var xlsxColumns = []any{
	"time", "elapsed [s]",
	"valve_1", "valve_2", "pump",
	"humi_1 [pct]", "temp_1 [°C]", "pres_1 [mbar]",
	"humi_2 [pct]", "temp_2 [°C]", "pres_2 [mbar]",
}

// ExportXLSX writes samples as a spreadsheet with one row per sample.
// NaN readings are left as empty cells.
func ExportXLSX(w io.Writer, samples []sample.Sample) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(xlsxSheet, "A1", &xlsxColumns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, s := range samples {
		row := []any{
			s.Timestamp,
			s.Elapsed.Seconds(),
			bit(s.Valve1), bit(s.Valve2), bit(s.Pump),
			cell(s.Humidity[0]), cell(s.Temperature[0]), cell(s.Pressure[0]),
			cell(s.Humidity[1]), cell(s.Temperature[1]), cell(s.Pressure[1]),
		}
		if err := f.SetSheetRow(xlsxSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func cell(v float32) any {
	if math32.IsNaN(v) {
		return nil
	}
	return float64(v)
}
