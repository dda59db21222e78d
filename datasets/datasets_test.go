package datasets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/randsearch/pkg/errors"
	"github.com/YuminosukeSato/randsearch/pkg/log"
)

const wineSample = `"fixed acidity";"volatile acidity";"citric acid";"residual sugar";"chlorides";"free sulfur dioxide";"total sulfur dioxide";"density";"pH";"sulphates";"alcohol";"quality"
7.4;0.7;0;1.9;0.076;11;34;0.9978;3.51;0.56;9.4;5
7.8;0.88;0;2.6;0.098;25;67;0.9968;3.2;0.68;9.8;5
7.8;0.76;0.04;2.3;0.092;15;54;0.997;3.26;0.65;9.8;5
11.2;0.28;0.56;1.9;0.075;17;60;0.998;3.16;0.58;9.8;6
7.4;0.7;0;1.9;0.076;11;34;0.9978;3.51;0.56;9.4;5
7.3;0.65;0;1.2;0.065;15;21;0.9946;3.39;0.47;10;7
`

func TestReadCSV(t *testing.T) {
	frame, err := ReadCSV(strings.NewReader(wineSample), ';', "sample")
	require.NoError(t, err)
	assert.Len(t, frame.Columns, 12)
	assert.Equal(t, "fixed acidity", frame.Columns[0])
	assert.Equal(t, 6, frame.Rows())

	quality, err := frame.Column("quality")
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 5, 5, 6, 5, 7}, quality)

	_, err = frame.Column("colour")
	var ve *errors.ValueError
	assert.True(t, errors.As(err, &ve))
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		line  int
	}{
		{"empty", "", 1},
		{"header only", "a;b\n", 0},
		{"ragged row", "a;b\n1;2\n3\n", 3},
		{"not a number", "a;b\n1;2\n1;x\n", 3},
		{"duplicate column", "a;a\n1;2\n", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.input), ';', "input")
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrData))
			var de *errors.DataError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, tt.line, de.Line)
			assert.Equal(t, "input", de.Source)
		})
	}
}

func TestQualityIsHigh(t *testing.T) {
	tests := []struct {
		q    float64
		want float64
	}{
		{3, 0}, {5, 0}, {5.99, 0}, {6, 1}, {6.5, 1}, {8, 1}, {-1, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, QualityIsHigh(tt.q), "q=%g", tt.q)
		assert.Equal(t, QualityIsHigh(tt.want), QualityIsHigh(QualityIsHigh(tt.want)))
	}
}

func TestWithBinaryLabel_Idempotent(t *testing.T) {
	frame, err := ReadCSV(strings.NewReader(wineSample), ';', "sample")
	require.NoError(t, err)

	once, err := frame.WithBinaryLabel(QualityColumn, LabelColumn, QualityIsHigh)
	require.NoError(t, err)
	twice, err := once.WithBinaryLabel(QualityColumn, LabelColumn, QualityIsHigh)
	require.NoError(t, err)

	assert.Equal(t, once.Columns, twice.Columns)
	assert.Len(t, once.Columns, 13)
	assert.Equal(t, once.Data.RawMatrix().Data, twice.Data.RawMatrix().Data)

	labels, err := once.Column(LabelColumn)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 1, 0, 1}, labels)

	// the source frame is untouched
	assert.Len(t, frame.Columns, 12)
}

func TestParseWine(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelDebug)
	wine, err := ParseWine(strings.NewReader(wineSample), "sample", logger)
	require.NoError(t, err)

	rows, cols := wine.X.Dims()
	assert.Equal(t, 6, rows)
	assert.Equal(t, 11, cols)
	assert.NotContains(t, wine.Features, QualityColumn)
	assert.NotContains(t, wine.Features, LabelColumn)
	assert.Equal(t, 11.2, wine.X.At(3, 0))
	assert.Equal(t, 1.0, wine.Y.At(3, 0))
	assert.True(t, logger.ContainsMessage("Dataset loaded"))

	_, err = ParseWine(strings.NewReader("a;b\n1;2\n"), "noquality", logger)
	assert.True(t, errors.Is(err, errors.ErrData))
}

func TestFetch_DownloadsOnce(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(wineSample))
	}))
	defer srv.Close()

	cache := filepath.Join(t.TempDir(), "data", "winequality-red.csv")
	logger, _ := log.NewTestLogger(log.LevelDebug)

	wine, err := LoadWineQuality(context.Background(), srv.URL, cache, logger)
	require.NoError(t, err)
	rows, _ := wine.X.Dims()
	assert.Equal(t, 6, rows)

	_, err = LoadWineQuality(context.Background(), srv.URL, cache, logger)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
	assert.True(t, logger.ContainsMessage("Using cached dataset"))

	body, err := os.ReadFile(cache)
	require.NoError(t, err)
	assert.Equal(t, wineSample, string(body))
}

func TestFetch_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	cache := filepath.Join(t.TempDir(), "wine.csv")
	err := Fetch(context.Background(), srv.URL, cache, nil)
	assert.True(t, errors.Is(err, errors.ErrData))
	_, statErr := os.Stat(cache)
	assert.True(t, os.IsNotExist(statErr))

	var ve *errors.ValidationError
	assert.True(t, errors.As(Fetch(context.Background(), srv.URL, "", nil), &ve))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = Fetch(ctx, srv.URL, cache, nil)
	assert.True(t, errors.Is(err, errors.ErrData))
}
