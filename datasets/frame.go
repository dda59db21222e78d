// Package datasets loads delimited numeric tables and the red wine quality
// dataset.
package datasets

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/randsearch/pkg/errors"
)

// Frame is a numeric table with named columns.
type Frame struct {
	Columns []string
	Data    *mat.Dense
}

// ReadCSV parses a delimited table with one header row. Every cell must be
// numeric. source names the input in errors.
func ReadCSV(r io.Reader, sep rune, source string) (*Frame, error) {
	reader := csv.NewReader(r)
	reader.Comma = sep
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = 0

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.NewDataError(source, 1, errors.ErrEmptyData)
	}
	if err != nil {
		return nil, errors.NewDataError(source, 1, err)
	}
	columns := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			return nil, errors.NewDataError(source, 1, errors.Newf("column %d has an empty name", i))
		}
		if seen[name] {
			return nil, errors.NewDataError(source, 1, errors.Newf("duplicate column %q", name))
		}
		seen[name] = true
		columns[i] = name
	}

	var data []float64
	rows := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			line := 0
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				line = pe.Line
			}
			return nil, errors.NewDataError(source, line, err)
		}
		line, _ := reader.FieldPos(0)
		for j, cell := range record {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, errors.NewDataError(source, line,
					errors.Newf("column %q: %q is not a number", columns[j], cell))
			}
			data = append(data, v)
		}
		rows++
	}
	if rows == 0 {
		return nil, errors.NewDataError(source, 0, errors.ErrEmptyData)
	}
	return &Frame{Columns: columns, Data: mat.NewDense(rows, len(columns), data)}, nil
}

// Index returns the position of column name, or -1.
func (f *Frame) Index(name string) int {
	for i, c := range f.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns a copy of the named column.
func (f *Frame) Column(name string) ([]float64, error) {
	j := f.Index(name)
	if j < 0 {
		return nil, errors.NewValueError("Frame.Column", fmt.Sprintf("no column %q", name))
	}
	return mat.Col(nil, j, f.Data), nil
}

// Rows returns the number of rows.
func (f *Frame) Rows() int {
	r, _ := f.Data.Dims()
	return r
}

// WithBinaryLabel returns a frame with column dst set to rule(src). dst is
// appended when absent and overwritten otherwise, so applying the same
// rule twice gives the same frame.
func (f *Frame) WithBinaryLabel(src, dst string, rule func(float64) float64) (*Frame, error) {
	values, err := f.Column(src)
	if err != nil {
		return nil, err
	}
	rows, cols := f.Data.Dims()
	j := f.Index(dst)
	columns := append([]string(nil), f.Columns...)
	if j < 0 {
		j = cols
		cols++
		columns = append(columns, dst)
	}

	out := mat.NewDense(rows, cols, nil)
	out.Slice(0, rows, 0, len(f.Columns)).(*mat.Dense).Copy(f.Data)
	for i, v := range values {
		out.Set(i, j, rule(v))
	}
	return &Frame{Columns: columns, Data: out}, nil
}

// XY splits the frame into a feature matrix and a label column. The label
// and every dropped column are excluded from X. Feature names are returned
// in column order.
func (f *Frame) XY(label string, drop ...string) (*mat.Dense, *mat.Dense, []string, error) {
	y, err := f.Column(label)
	if err != nil {
		return nil, nil, nil, err
	}
	excluded := map[string]bool{label: true}
	for _, d := range drop {
		if f.Index(d) < 0 {
			return nil, nil, nil, errors.NewValueError("Frame.XY", fmt.Sprintf("no column %q", d))
		}
		excluded[d] = true
	}

	var features []int
	var names []string
	for j, c := range f.Columns {
		if !excluded[c] {
			features = append(features, j)
			names = append(names, c)
		}
	}
	if len(features) == 0 {
		return nil, nil, nil, errors.NewValueError("Frame.XY", "no feature columns left")
	}

	rows := f.Rows()
	X := mat.NewDense(rows, len(features), nil)
	for k, j := range features {
		X.SetCol(k, mat.Col(nil, j, f.Data))
	}
	return X, mat.NewDense(rows, 1, y), names, nil
}
