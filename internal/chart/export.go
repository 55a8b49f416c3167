package chart

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/sleepydogo/peceto-trading-bot/internal/model"
)

const (
	sheetIndicators = "Indicators"
	sheetBuys       = "Buy Signals"
	sheetSells      = "Sell Signals"

	timeLayout = "2006-01-02 15:04:05"
)

// ExportFileName returns "<SYMBOL>_<INTERVAL>_chart.xlsx".
func ExportFileName(symbol, interval string) string {
	return fmt.Sprintf("%s_%s_chart.xlsx", strings.ToUpper(symbol), interval)
}

// ExportWorkbook writes the indicator rows and both marker logs to an xlsx
// workbook at path. Undefined indicator values are left blank.
func ExportWorkbook(path string, rows []model.IndicatorRow, buys, sells []model.Marker) error {
	fx := excelize.NewFile()
	defer fx.Close()

	if err := fx.SetSheetName(fx.GetSheetName(0), sheetIndicators); err != nil {
		return errors.Wrap(err, "chart: rename sheet")
	}
	for _, name := range []string{sheetBuys, sheetSells} {
		if _, err := fx.NewSheet(name); err != nil {
			return errors.Wrapf(err, "chart: new sheet %s", name)
		}
	}

	headStyle, err := fx.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return errors.Wrap(err, "chart: header style")
	}

	headers := append([]string{"time"}, model.FieldNames...)
	writeHeader(fx, sheetIndicators, headers, headStyle)
	for r, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		fx.SetCellValue(sheetIndicators, cell, row.Timestamp.UTC().Format(timeLayout))
		for c, name := range model.FieldNames {
			v, _ := row.Field(name)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(c+2, r+2)
			fx.SetCellValue(sheetIndicators, cell, v)
		}
	}

	writeMarkers(fx, sheetBuys, buys, headStyle)
	writeMarkers(fx, sheetSells, sells, headStyle)

	if err := fx.SaveAs(path); err != nil {
		return errors.Wrapf(err, "chart: save %s", path)
	}
	return nil
}

func writeHeader(fx *excelize.File, sheet string, headers []string, style int) {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		fx.SetCellValue(sheet, cell, h)
		fx.SetCellStyle(sheet, cell, cell, style)
	}
}

func writeMarkers(fx *excelize.File, sheet string, markers []model.Marker, style int) {
	writeHeader(fx, sheet, []string{"time", "price", "strength"}, style)
	for r, m := range markers {
		values := []interface{}{m.Timestamp.UTC().Format(timeLayout), m.Price, m.Strength}
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			fx.SetCellValue(sheet, cell, v)
		}
	}
}
