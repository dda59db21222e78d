package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	r.ObserveTrial("random_forest", "random", 120*time.Millisecond)
	r.ObserveTrial("random_forest", "random", 80*time.Millisecond)
	r.ObserveTrial("svm", "grid", -time.Second)
	r.SetBestScore("random_forest", "random", 0.81)
	r.SetTestAccuracy("random_forest", 0.79)
	r.ObserveRejection("random_forest", "random")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.trialsTotal.WithLabelValues("random_forest", "random")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.trialsTotal.WithLabelValues("svm", "grid")))
	assert.Equal(t, 0.81, testutil.ToFloat64(r.bestCVScore.WithLabelValues("random_forest", "random")))
	assert.Equal(t, 0.79, testutil.ToFloat64(r.testAccuracy.WithLabelValues("random_forest")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.rejectedTotal.WithLabelValues("random_forest", "random")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.trialFitSeconds))

	expected := `
# HELP randsearch_test_accuracy Held-out accuracy of the refitted best model.
# TYPE randsearch_test_accuracy gauge
randsearch_test_accuracy{model="random_forest"} 0.79
`
	require.NoError(t, testutil.GatherAndCompare(r.Registry(), strings.NewReader(expected), "randsearch_test_accuracy"))
}

func TestRecorder_WriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.SetBestScore("logistic_regression", "grid", 0.75)

	path := filepath.Join(t.TempDir(), "randsearch.prom")
	require.NoError(t, r.WriteTextfile(path))

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(body), `randsearch_best_cv_score{model="logistic_regression",strategy="grid"} 0.75`)

	assert.Error(t, r.WriteTextfile(filepath.Join(t.TempDir(), "missing", "dir", "x.prom")))
}
