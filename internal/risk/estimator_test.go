package risk

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/stat"
)

type memTable struct {
	names []string
	cols  map[string][]float64
}

func newMemTable(names []string, cols ...[]float64) *memTable {
	t := &memTable{names: names, cols: make(map[string][]float64, len(names))}
	for i, name := range names {
		t.cols[name] = cols[i]
	}
	return t
}

func (t *memTable) Columns() []string {
	return append([]string(nil), t.names...)
}

func (t *memTable) Column(name string) []float64 {
	return t.cols[name]
}

func mustEstimator(t *testing.T, table Table) *Estimator {
	t.Helper()
	est, err := NewEstimator(table)
	if err != nil {
		t.Fatalf("NewEstimator returned error: %v", err)
	}
	return est
}

func mustValue(t *testing.T, s Series, name string) float64 {
	t.Helper()
	v, ok := s.Value(name)
	if !ok {
		t.Fatalf("column %q missing from result %v", name, s.Names())
	}
	return v
}

func gaussianSample(seed int64, n int, mu, sigma float64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = mu + sigma*rng.NormFloat64()
	}
	return out
}

func standardize(xs []float64) []float64 {
	mean, std := stat.MeanStdDev(xs, nil)
	out := make([]float64, len(xs))
	for i, v := range xs {
		out[i] = (v - mean) / std
	}
	return out
}

func TestEstimator_ParametricReturnsStandardized(t *testing.T) {
	col := standardize([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 12, 15})
	est := mustEstimator(t, newMemTable([]string{"S"}, col))

	varSeries, err := est.VaR(0.99, MethodParametric, DataTypeReturns)
	if err != nil {
		t.Fatalf("VaR returned error: %v", err)
	}
	if got := mustValue(t, varSeries, "S"); math.Abs(got-2.3263478740408408) > 1e-8 {
		t.Errorf("unexpected VaR: got %.10f want 2.3263478740", got)
	}

	cvarSeries, err := est.CVaR(0.99, MethodParametric, DataTypeReturns)
	if err != nil {
		t.Fatalf("CVaR returned error: %v", err)
	}
	got := mustValue(t, cvarSeries, "S")
	// -(μ + σ·φ(z)/α) 在 μ=0、σ=1 时幅度为 2.6652，符号为负。
	if math.Abs(math.Abs(got)-2.6652) > 1e-4 {
		t.Errorf("unexpected CVaR magnitude: got %.6f want 2.6652", got)
	}
	if got >= 0 {
		t.Errorf("expected returns CVaR -(mean + std*es_factor) to be negative, got %f", got)
	}
}

func TestEstimator_ParametricFormulas(t *testing.T) {
	a := gaussianSample(1, 252, 0.0008, 0.02)
	b := gaussianSample(2, 252, 800, 20000)
	est := mustEstimator(t, newMemTable([]string{"A", "B"}, a, b))

	tail, err := newGaussianTail(0.05)
	if err != nil {
		t.Fatalf("newGaussianTail returned error: %v", err)
	}

	cases := []struct {
		name     string
		measure  Measure
		dataType DataType
		expected func(mean, std float64) float64
	}{
		{"var returns", MeasureVaR, DataTypeReturns, func(m, s float64) float64 { return -(m + tail.Z*s) }},
		{"var pnl", MeasureVaR, DataTypePnL, func(m, s float64) float64 { return m + tail.Z*s }},
		{"cvar returns", MeasureCVaR, DataTypeReturns, func(m, s float64) float64 { return -(m + s*tail.ESFactor) }},
		{"cvar pnl", MeasureCVaR, DataTypePnL, func(m, s float64) float64 { return m + s*tail.ESFactor }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := est.Compute(tc.measure, Params{Confidence: 0.95, Method: MethodParametric, DataType: tc.dataType})
			if err != nil {
				t.Fatalf("Compute returned error: %v", err)
			}
			for name, col := range map[string][]float64{"A": a, "B": b} {
				mean, std := stat.MeanStdDev(col, nil)
				want := tc.expected(mean, std)
				got := mustValue(t, res, name)
				if math.Abs(got-want) > 1e-9*math.Max(1, math.Abs(want)) {
					t.Errorf("column %s: got %v want %v", name, got, want)
				}
			}
		})
	}
}

func TestEstimator_HistoricalReturnsScenario(t *testing.T) {
	col := []float64{-0.10, -0.05, -0.02, 0.00, 0.01, 0.02, 0.03, 0.04, 0.05, 0.08}
	est := mustEstimator(t, newMemTable([]string{"R"}, col))

	varSeries, err := est.VaR(0.95, MethodHistorical, DataTypeReturns)
	if err != nil {
		t.Fatalf("VaR returned error: %v", err)
	}
	if got := mustValue(t, varSeries, "R"); math.Abs(got-0.0775) > 1e-12 {
		t.Errorf("unexpected historical VaR: got %.12f want 0.0775", got)
	}

	cvarSeries, err := est.CVaR(0.95, MethodHistorical, DataTypeReturns)
	if err != nil {
		t.Fatalf("CVaR returned error: %v", err)
	}
	if got := mustValue(t, cvarSeries, "R"); math.Abs(got-0.10) > 1e-12 {
		t.Errorf("unexpected historical CVaR: got %.12f want 0.10", got)
	}
}

func TestEstimator_HistoricalIgnoresDataType(t *testing.T) {
	col := []float64{-1200, 300, -450, 800, 50, -75, 1500, -2500, 600, 10}
	est := mustEstimator(t, newMemTable([]string{"P"}, col))

	for _, measure := range []Measure{MeasureVaR, MeasureCVaR} {
		returns, err := est.Compute(measure, Params{Confidence: 0.9, Method: MethodHistorical, DataType: DataTypeReturns})
		if err != nil {
			t.Fatalf("Compute returned error: %v", err)
		}
		pnl, err := est.Compute(measure, Params{Confidence: 0.9, Method: MethodHistorical, DataType: DataTypePnL})
		if err != nil {
			t.Fatalf("Compute returned error: %v", err)
		}
		if mustValue(t, returns, "P") != mustValue(t, pnl, "P") {
			t.Errorf("%s: historical result should not depend on data type", measure)
		}
		if mustValue(t, pnl, "P") <= 0 {
			t.Errorf("%s: expected negated loss quantile to be positive, got %v", measure, mustValue(t, pnl, "P"))
		}
	}
}

func TestEstimator_MultiColumnIndependence(t *testing.T) {
	a := gaussianSample(10, 500, 0.001, 0.01)
	b := gaussianSample(11, 500, -0.002, 0.03)

	both := mustEstimator(t, newMemTable([]string{"A", "B"}, a, b))
	onlyA := mustEstimator(t, newMemTable([]string{"A"}, a))
	onlyB := mustEstimator(t, newMemTable([]string{"B"}, b))

	for _, method := range []Method{MethodParametric, MethodHistorical} {
		full, err := both.VaR(0.99, method, DataTypeReturns)
		if err != nil {
			t.Fatalf("VaR returned error: %v", err)
		}
		ra, _ := onlyA.VaR(0.99, method, DataTypeReturns)
		rb, _ := onlyB.VaR(0.99, method, DataTypeReturns)

		if mustValue(t, full, "A") != mustValue(t, ra, "A") {
			t.Errorf("%s: column A changed when computed alongside B", method)
		}
		if mustValue(t, full, "B") != mustValue(t, rb, "B") {
			t.Errorf("%s: column B changed when computed alongside A", method)
		}
		if mustValue(t, full, "B") <= mustValue(t, full, "A") {
			t.Errorf("%s: expected wider column B to carry larger VaR", method)
		}
	}
}

func TestEstimator_InvalidParameters(t *testing.T) {
	est := mustEstimator(t, newMemTable([]string{"A"}, []float64{0.1, -0.2, 0.05}))

	cases := []struct {
		name    string
		measure Measure
		params  Params
	}{
		{"monte carlo", MeasureVaR, Params{Confidence: 0.99, Method: Method("monte-carlo"), DataType: DataTypeReturns}},
		{"confidence one", MeasureVaR, Params{Confidence: 1.0, Method: MethodParametric, DataType: DataTypeReturns}},
		{"confidence zero", MeasureCVaR, Params{Confidence: 0.0, Method: MethodHistorical, DataType: DataTypeReturns}},
		{"confidence negative", MeasureVaR, Params{Confidence: -0.5, Method: MethodHistorical, DataType: DataTypeReturns}},
		{"confidence nan", MeasureVaR, Params{Confidence: math.NaN(), Method: MethodParametric, DataType: DataTypeReturns}},
		{"unknown data type", MeasureVaR, Params{Confidence: 0.95, Method: MethodParametric, DataType: DataType("prices")}},
		{"historical unknown data type", MeasureCVaR, Params{Confidence: 0.95, Method: MethodHistorical, DataType: DataType("")}},
		{"unknown measure", Measure("mdd"), Params{Confidence: 0.95, Method: MethodParametric, DataType: DataTypeReturns}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := est.Compute(tc.measure, tc.params)
			if err == nil {
				t.Fatalf("expected error, got result %v", res.Values())
			}
			if !errors.Is(err, ErrInvalidParameter) {
				t.Errorf("expected ErrInvalidParameter, got %v", err)
			}
			if res.Len() != 0 {
				t.Errorf("expected no partial result, got %d entries", res.Len())
			}
		})
	}
}

func TestEstimator_MissingData(t *testing.T) {
	nan := math.NaN()
	table := newMemTable(
		[]string{"empty", "single", "valid"},
		[]float64{nan, nan, nan, nan},
		[]float64{nan, -0.03, nan, nan},
		[]float64{0.01, nan, -0.02, 0.015},
	)
	est := mustEstimator(t, table)

	for _, method := range []Method{MethodParametric, MethodHistorical} {
		for _, measure := range []Measure{MeasureVaR, MeasureCVaR} {
			res, err := est.Compute(measure, Params{Confidence: 0.95, Method: method, DataType: DataTypeReturns})
			if err != nil {
				t.Fatalf("Compute returned error: %v", err)
			}
			if !res.IsMissing("empty") {
				t.Errorf("%s/%s: expected all-missing column to be NaN", method, measure)
			}
			if res.IsMissing("valid") {
				t.Errorf("%s/%s: expected valid column to be finite", method, measure)
			}
		}
	}

	par, _ := est.VaR(0.95, MethodParametric, DataTypeReturns)
	if !par.IsMissing("single") {
		t.Errorf("expected parametric VaR to be missing for a single observation")
	}
	hist, _ := est.VaR(0.95, MethodHistorical, DataTypeReturns)
	if got := mustValue(t, hist, "single"); got != 0.03 {
		t.Errorf("expected historical VaR of single observation to be 0.03, got %v", got)
	}
	if missing := hist.MissingColumns(); len(missing) != 1 || missing[0] != "empty" {
		t.Errorf("unexpected missing columns: %v", missing)
	}
}

func TestEstimator_MissingDataIsolation(t *testing.T) {
	a := gaussianSample(20, 100, 0, 0.02)
	b := gaussianSample(21, 100, 0, 0.02)
	est := mustEstimator(t, newMemTable([]string{"A", "B"}, a, b))

	aWithGap := append([]float64(nil), a...)
	aWithGap[7] = math.NaN()
	gapped := mustEstimator(t, newMemTable([]string{"A", "B"}, aWithGap, b))

	for _, method := range []Method{MethodParametric, MethodHistorical} {
		before, _ := est.CVaR(0.975, method, DataTypeReturns)
		after, _ := gapped.CVaR(0.975, method, DataTypeReturns)
		if mustValue(t, before, "B") != mustValue(t, after, "B") {
			t.Errorf("%s: missing entry in A changed result for B", method)
		}
	}
}

func TestEstimator_MonotonicInConfidence(t *testing.T) {
	col := gaussianSample(30, 400, 0.0005, 0.015)
	est := mustEstimator(t, newMemTable([]string{"A"}, col))
	levels := []float64{0.8, 0.9, 0.95, 0.975, 0.99, 0.999}

	for _, method := range []Method{MethodParametric, MethodHistorical} {
		prev := math.Inf(-1)
		for _, c := range levels {
			res, err := est.VaR(c, method, DataTypeReturns)
			if err != nil {
				t.Fatalf("VaR returned error: %v", err)
			}
			got := mustValue(t, res, "A")
			if method == MethodParametric && got <= prev {
				t.Errorf("parametric VaR not strictly increasing at c=%v: %v <= %v", c, got, prev)
			}
			if method == MethodHistorical && got < prev {
				t.Errorf("historical VaR decreased at c=%v: %v < %v", c, got, prev)
			}
			prev = got
		}
	}
}

func TestEstimator_HistoricalCVaRDominatesVaR(t *testing.T) {
	table := newMemTable(
		[]string{"A", "B"},
		gaussianSample(40, 300, 0, 0.01),
		gaussianSample(41, 300, 0.002, 0.04),
	)
	est := mustEstimator(t, table)

	for _, c := range []float64{0.9, 0.95, 0.99} {
		v, _ := est.VaR(c, MethodHistorical, DataTypeReturns)
		cv, _ := est.CVaR(c, MethodHistorical, DataTypeReturns)
		for _, name := range []string{"A", "B"} {
			if mustValue(t, cv, name) < mustValue(t, v, name) {
				t.Errorf("c=%v column %s: CVaR %v < VaR %v", c, name, mustValue(t, cv, name), mustValue(t, v, name))
			}
		}
	}
}

func TestEstimator_ShapeAndOrder(t *testing.T) {
	names := []string{"zeta", "alpha", "mid"}
	est := mustEstimator(t, newMemTable(names,
		gaussianSample(50, 30, 0, 1),
		gaussianSample(51, 30, 0, 1),
		gaussianSample(52, 30, 0, 1),
	))

	res, err := est.CVaR(0.95, MethodHistorical, DataTypePnL)
	if err != nil {
		t.Fatalf("CVaR returned error: %v", err)
	}
	if res.Len() != len(names) {
		t.Fatalf("expected %d entries, got %d", len(names), res.Len())
	}
	for i, want := range names {
		if got, _ := res.At(i); got != want {
			t.Errorf("entry %d: got column %q want %q", i, got, want)
		}
	}
}

func TestEstimator_Deterministic(t *testing.T) {
	nan := math.NaN()
	est := mustEstimator(t, newMemTable([]string{"A", "B"},
		gaussianSample(60, 200, 0.001, 0.02),
		[]float64{nan, nan},
	))

	for _, method := range []Method{MethodParametric, MethodHistorical} {
		first, _ := est.CVaR(0.99, method, DataTypeReturns)
		second, _ := est.CVaR(0.99, method, DataTypeReturns)
		fv, sv := first.Values(), second.Values()
		for i := range fv {
			if math.Float64bits(fv[i]) != math.Float64bits(sv[i]) {
				t.Errorf("%s: entry %d differs between calls: %v vs %v", method, i, fv[i], sv[i])
			}
		}
	}
}

func TestEstimator_ParametricConventionDuality(t *testing.T) {
	col := gaussianSample(70, 252, 500, 15000)
	est := mustEstimator(t, newMemTable([]string{"P"}, col))

	for _, c := range []float64{0.95, 0.99} {
		returns, _ := est.VaR(c, MethodParametric, DataTypeReturns)
		pnl, _ := est.VaR(c, MethodParametric, DataTypePnL)
		if mustValue(t, returns, "P") != -mustValue(t, pnl, "P") {
			t.Errorf("c=%v: returns VaR %v is not the negation of pnl VaR %v", c, mustValue(t, returns, "P"), mustValue(t, pnl, "P"))
		}
		if mustValue(t, pnl, "P") >= 0 {
			t.Errorf("c=%v: expected pnl VaR to be a negative threshold, got %v", c, mustValue(t, pnl, "P"))
		}
	}
}

func TestEstimator_DoesNotMutateTable(t *testing.T) {
	col := []float64{0.05, -0.1, math.NaN(), 0.02, -0.03}
	snapshot := append([]float64(nil), col...)
	est := mustEstimator(t, newMemTable([]string{"A"}, col))

	if _, err := est.CVaR(0.9, MethodHistorical, DataTypeReturns); err != nil {
		t.Fatalf("CVaR returned error: %v", err)
	}
	for i := range col {
		if math.Float64bits(col[i]) != math.Float64bits(snapshot[i]) {
			t.Fatalf("column mutated at %d: %v != %v", i, col[i], snapshot[i])
		}
	}
}

func TestEstimator_Moments(t *testing.T) {
	nan := math.NaN()
	est := mustEstimator(t, newMemTable([]string{"A", "B"},
		[]float64{1, 2, nan, 3, 4},
		[]float64{nan, 7},
	))

	moments := est.Moments()
	if len(moments) != 2 {
		t.Fatalf("expected 2 moment entries, got %d", len(moments))
	}
	a := moments[0]
	if a.Column != "A" || a.Count != 4 || a.Mean != 2.5 {
		t.Errorf("unexpected moments for A: %+v", a)
	}
	// 无偏方差 (2.25+0.25+0.25+2.25)/3 = 5/3
	if math.Abs(a.StdDev-math.Sqrt(5.0/3.0)) > 1e-12 {
		t.Errorf("unexpected std for A: %v", a.StdDev)
	}
	b := moments[1]
	if b.Count != 1 || b.Mean != 7 || !math.IsNaN(b.StdDev) {
		t.Errorf("unexpected moments for B: %+v", b)
	}
}

func TestNewEstimator_NilTable(t *testing.T) {
	if _, err := NewEstimator(nil); !errors.Is(err, ErrNilTable) {
		t.Fatalf("expected ErrNilTable, got %v", err)
	}
}
