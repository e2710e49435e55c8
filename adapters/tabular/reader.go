package tabular

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"gesturelab/domain/core"
	"gesturelab/domain/gesture"
	"gesturelab/internal/errors"
)

// expectedHeader is the fixed input schema. Column order and naming are
// assumed fixed; there is no schema versioning.
var expectedHeader = []string{"participant", "context", "dur", "language", "gender", "gestures"}

// DataReader handles reading CSV and Excel gesture tables
type DataReader struct {
	sheet string // sheet name for xlsx files
}

// NewDataReader creates a new data reader that handles both CSV and Excel files
func NewDataReader() *DataReader {
	return &DataReader{sheet: "Sheet1"}
}

// Read parses the file at path into a typed dataset
func (r *DataReader) Read(ctx context.Context, path string) (*gesture.Dataset, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, errors.NotFound(fmt.Sprintf("data file %s", path))
	}

	var rows [][]string
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err = r.readExcelRows(path)
	default:
		rows, err = r.readCSVRows(path)
	}
	if err != nil {
		return nil, err
	}

	if len(rows) < 2 {
		return nil, errors.ParseError(fmt.Sprintf("%s must have a header row and at least one data row", path))
	}

	if err := checkHeader(rows[0]); err != nil {
		return nil, err
	}

	ds := &gesture.Dataset{Source: path}
	for i, record := range rows[1:] {
		obs, err := parseRow(record, i+2) // 1-based line numbers, after header
		if err != nil {
			return nil, err
		}
		ds.Rows = append(ds.Rows, obs)
	}

	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

func (r *DataReader) readCSVRows(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open CSV file %s", path)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	// FieldsPerRecord stays at the default so a ragged row surfaces as a
	// csv.ErrFieldCount, which we translate to a parse error.
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.ParseError(fmt.Sprintf("malformed CSV in %s: %v", path, err))
	}
	return records, nil
}

func (r *DataReader) readExcelRows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open Excel file %s", path)
	}
	defer f.Close()

	rows, err := f.GetRows(r.sheet)
	if err != nil {
		return nil, errors.ParseError(fmt.Sprintf("failed to read sheet %s of %s: %v", r.sheet, path, err))
	}
	return rows, nil
}

func checkHeader(header []string) error {
	if len(header) != len(expectedHeader) {
		return errors.ParseError(fmt.Sprintf(
			"expected %d columns %v, got %d", len(expectedHeader), expectedHeader, len(header)))
	}
	for i, name := range header {
		if strings.TrimSpace(strings.ToLower(name)) != expectedHeader[i] {
			return errors.ParseError(fmt.Sprintf(
				"column %d: expected header %q, got %q", i+1, expectedHeader[i], name))
		}
	}
	return nil
}

func parseRow(record []string, line int) (gesture.Observation, error) {
	if len(record) != len(expectedHeader) {
		return gesture.Observation{}, errors.ParseError(fmt.Sprintf(
			"line %d: expected %d columns, got %d", line, len(expectedHeader), len(record)))
	}

	participant, err := core.ParseParticipantID(record[0])
	if err != nil {
		return gesture.Observation{}, errors.ParseError(fmt.Sprintf("line %d: %v", line, err))
	}

	condition := gesture.Condition(strings.TrimSpace(record[1]))

	dur, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
	if err != nil {
		return gesture.Observation{}, errors.ParseError(fmt.Sprintf(
			"line %d: duration %q is not a number", line, record[2]))
	}

	gestures, err := strconv.Atoi(strings.TrimSpace(record[5]))
	if err != nil {
		return gesture.Observation{}, errors.ParseError(fmt.Sprintf(
			"line %d: gesture count %q is not an integer", line, record[5]))
	}

	return gesture.Observation{
		Participant: participant,
		Condition:   condition,
		DurationSec: dur,
		Language:    strings.TrimSpace(record[3]),
		Gender:      strings.TrimSpace(record[4]),
		Gestures:    gestures,
	}, nil
}
