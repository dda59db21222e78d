package datasets

import (
	"context"
	"io"
	"os"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/randsearch/pkg/errors"
	"github.com/YuminosukeSato/randsearch/pkg/log"
)

const (
	// WineQualityRedURL is the UCI red wine quality table.
	WineQualityRedURL = "https://archive.ics.uci.edu/ml/machine-learning-databases/wine-quality/winequality-red.csv"

	// QualityColumn is the raw score column.
	QualityColumn = "quality"

	// LabelColumn is the derived binary label.
	LabelColumn = "quality_is_high"

	// HighQuality is the smallest score labelled 1.
	HighQuality = 6.0
)

// QualityIsHigh returns 1 when q >= 6, else 0. Labels are themselves
// below the threshold, so re-applying it to its own output is stable.
func QualityIsHigh(q float64) float64 {
	if q >= HighQuality {
		return 1
	}
	return 0
}

// Wine is the loaded dataset ready for modelling.
type Wine struct {
	X        *mat.Dense
	Y        *mat.Dense
	Features []string
}

// LoadWineQuality downloads the table into cachePath (once), parses it,
// derives quality_is_high and drops the raw quality column from X.
func LoadWineQuality(ctx context.Context, url, cachePath string, logger log.Logger) (*Wine, error) {
	if logger == nil {
		logger = log.GetLoggerWithName("datasets")
	}
	if url == "" {
		url = WineQualityRedURL
	}
	if err := Fetch(ctx, url, cachePath, logger); err != nil {
		return nil, err
	}

	f, err := os.Open(cachePath)
	if err != nil {
		return nil, errors.NewDataError(cachePath, 0, err)
	}
	defer f.Close()

	return ParseWine(f, cachePath, logger)
}

// ParseWine builds a Wine from a semicolon separated table.
func ParseWine(r io.Reader, source string, logger log.Logger) (*Wine, error) {
	if logger == nil {
		logger = log.GetLoggerWithName("datasets")
	}
	frame, err := ReadCSV(r, ';', source)
	if err != nil {
		return nil, err
	}
	if frame.Index(QualityColumn) < 0 {
		return nil, errors.NewDataError(source, 1, errors.Newf("missing %q column", QualityColumn))
	}
	frame, err = frame.WithBinaryLabel(QualityColumn, LabelColumn, QualityIsHigh)
	if err != nil {
		return nil, err
	}
	X, y, names, err := frame.XY(LabelColumn, QualityColumn)
	if err != nil {
		return nil, errors.NewDataError(source, 0, err)
	}

	rows, cols := X.Dims()
	positives := 0
	for i := 0; i < rows; i++ {
		if y.At(i, 0) == 1 {
			positives++
		}
	}
	logger.Info("Dataset loaded",
		log.SourceKey, source,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.PositivesKey, positives,
	)
	return &Wine{X: X, Y: y, Features: names}, nil
}
