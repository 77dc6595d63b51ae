package evaluation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const groundTruthCSV = `date,amount,currency,vendor,source
2024-01-05,100.00,EUR,Acme,inv1.json
2024-01-06,20.00,EUR,Globex,inv2.json
2024-01-07,35.50,USD,Initech,inv3.json
2024-01-08,12.00,EUR,Hooli,
`

func mustTable(t *testing.T, csv string) Table {
	t.Helper()
	tbl, err := ReadTable(strings.NewReader(csv))
	require.NoError(t, err)
	return tbl
}

func TestBenchmark_PerfectPredictions(t *testing.T) {
	gt := mustTable(t, groundTruthCSV)
	pred := mustTable(t, groundTruthCSV)

	report := Benchmark(gt, pred)
	require.NotNil(t, report)

	assert.Equal(t, 4, report.Joined)
	assert.InDelta(t, 100, report.Accuracy, 1e-9)
	assert.InDelta(t, 100, report.Precision, 1e-9)
	assert.InDelta(t, 100, report.Recall, 1e-9)
	assert.InDelta(t, 100, report.F1, 1e-9)
	assert.Equal(t, []string{"", "inv1.json", "inv2.json", "inv3.json"}, report.Labels)
}

func TestBenchmark_WeightedMetrics(t *testing.T) {
	gt := mustTable(t, groundTruthCSV)
	// Amounts and dates written differently still join; inv3 is predicted as inv2.
	pred := mustTable(t, `Date,Amount,Currency,Vendor,Source
2024/01/05,100,EUR,Acme,inv1.json
2024-01-06,20.0,eur,Globex,inv2.json
2024-01-07,35.5,USD,Initech,inv2.json
2024-02-01,1.00,EUR,Nobody,inv9.json
`)

	report := Benchmark(gt, pred)
	require.NotNil(t, report)

	assert.Equal(t, 3, report.Joined)
	assert.Equal(t, []string{"inv1.json", "inv2.json", "inv3.json"}, report.Labels)
	assert.Equal(t, [][]int{
		{1, 0, 0},
		{0, 1, 0},
		{0, 1, 0},
	}, report.Matrix)

	// Per class: inv1 P=100 R=100, inv2 P=50 R=100, inv3 P=0 R=0; each support 1.
	assert.InDelta(t, 200.0/3, report.Accuracy, 1e-9)
	assert.InDelta(t, 50, report.Precision, 1e-9)
	assert.InDelta(t, 200.0/3, report.Recall, 1e-9)
	assert.InDelta(t, (100+200.0/3)/3, report.F1, 1e-9)

	require.Len(t, report.Classes, 3)
	assert.Equal(t, ClassReport{Label: "inv3.json", Support: 1}, report.Classes[2])
}

func TestBenchmark_PredictedOnlyLabelHasZeroWeight(t *testing.T) {
	gt := mustTable(t, `date,amount,currency,vendor,source
2024-01-05,10,EUR,Acme,a
2024-01-06,10,EUR,Acme,a
`)
	pred := mustTable(t, `date,amount,currency,vendor,source
2024-01-05,10,EUR,Acme,a
2024-01-06,10,EUR,Acme,b
`)

	report := Benchmark(gt, pred)
	require.NotNil(t, report)
	assert.Equal(t, []string{"a", "b"}, report.Labels)
	assert.Equal(t, 0, report.Classes[1].Support)
	// Only "a" carries weight: P=100, R=50.
	assert.InDelta(t, 100, report.Precision, 1e-9)
	assert.InDelta(t, 50, report.Recall, 1e-9)
}

func TestBenchmark_ManyToManyJoin(t *testing.T) {
	gt := mustTable(t, `date,amount,currency,vendor,source
2024-01-05,10,EUR,Acme,a
2024-01-05,10,EUR,Acme,b
`)
	pred := mustTable(t, `date,amount,currency,vendor,source
2024-01-05,10,EUR,Acme,a
2024-01-05,10,EUR,Acme,a
`)

	report := Benchmark(gt, pred)
	require.NotNil(t, report)
	assert.Equal(t, 4, report.Joined)
	assert.InDelta(t, 50, report.Accuracy, 1e-9)
}

func TestBenchmark_Absent(t *testing.T) {
	gt := mustTable(t, groundTruthCSV)

	tests := []struct {
		name string
		pred string
	}{
		{
			name: "no overlapping rows",
			pred: "date,amount,currency,vendor,source\n2030-01-01,1,EUR,Nobody,x\n",
		},
		{
			name: "missing label column",
			pred: "date,amount,currency,vendor\n2024-01-05,100.00,EUR,Acme\n",
		},
		{
			name: "missing join column",
			pred: "date,amount,vendor,source\n2024-01-05,100.00,Acme,inv1.json\n",
		},
		{
			name: "header only",
			pred: "date,amount,currency,vendor,source\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, Benchmark(gt, mustTable(t, tt.pred)))
		})
	}
}

func TestBenchmarkReport_String(t *testing.T) {
	gt := mustTable(t, groundTruthCSV)
	report := Benchmark(gt, gt)
	require.NotNil(t, report)

	out := report.String()
	assert.Contains(t, out, "precision")
	assert.Contains(t, out, "inv1.json")
	assert.Contains(t, out, "(none)")
	assert.Contains(t, out, "weighted avg")
}

func TestReadTable(t *testing.T) {
	tbl, err := ReadTable(strings.NewReader("\ufeffDate, Amount ,x\n2024-01-01,5\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"date", "amount", "x"}, tbl.Columns)
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, "5", tbl.Rows[0]["amount"])
	assert.Equal(t, "", tbl.Rows[0]["x"])

	_, err = ReadTable(strings.NewReader(""))
	assert.Error(t, err)
}
