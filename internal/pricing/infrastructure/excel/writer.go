package excel

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"broker-pricing/internal/pricing/application"
)

const (
	defaultSheet = "Sheet1"
	emptySheet   = "Prices"
	dateFormat   = "dd/mm/yyyy"
	columnWidth  = 18
)

// WriteBrokerWorkbook renders the broker output as an xlsx workbook with one
// sheet per table. Nil cells are left empty.
func WriteBrokerWorkbook(out application.BrokerOutput) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("excel writer: header style: %w", err)
	}
	numFmt := dateFormat
	dateStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &numFmt})
	if err != nil {
		return nil, fmt.Errorf("excel writer: date style: %w", err)
	}

	if len(out.Tables) == 0 {
		if err := f.SetSheetName(defaultSheet, emptySheet); err != nil {
			return nil, err
		}
	}
	for i, table := range out.Tables {
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, table.Name); err != nil {
				return nil, err
			}
		} else if _, err := f.NewSheet(table.Name); err != nil {
			return nil, fmt.Errorf("excel writer: sheet %s: %w", table.Name, err)
		}
		if err := writeTable(f, table, headerStyle, dateStyle); err != nil {
			return nil, fmt.Errorf("excel writer: sheet %s: %w", table.Name, err)
		}
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("excel writer: %w", err)
	}
	return buf.Bytes(), nil
}

func writeTable(f *excelize.File, table application.Table, headerStyle, dateStyle int) error {
	sheet := table.Name
	for col, name := range table.Columns {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return err
		}
	}
	if len(table.Columns) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(table.Columns), 1)
		if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
			return err
		}
		lastCol, _, _ := excelize.SplitCellName(last)
		if err := f.SetColWidth(sheet, "A", lastCol, columnWidth); err != nil {
			return err
		}
		if err := f.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		}); err != nil {
			return err
		}
	}

	for r, row := range table.Rows {
		for c, value := range row {
			if value == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return err
			}
			if _, ok := value.(time.Time); ok {
				if err := f.SetCellStyle(sheet, cell, cell, dateStyle); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
