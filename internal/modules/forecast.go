package modules

import (
	"github.com/dop251/goja"
	"gonum.org/v1/gonum/stat"

	"github.com/nextlevelbuilder/tsagent/internal/executor"
)

// LinearTrend fits y = intercept + slope*t by ordinary least squares
// and extrapolates periods steps past the end of the series.
func LinearTrend(vals []float64, periods int) (forecast []float64, slope, intercept float64) {
	xs := make([]float64, len(vals))
	for i := range xs {
		xs[i] = float64(i)
	}
	intercept, slope = stat.LinearRegression(xs, vals, nil, false)

	forecast = make([]float64, periods)
	for i := 0; i < periods; i++ {
		t := float64(len(vals) + i)
		forecast[i] = intercept + slope*t
	}
	return forecast, slope, intercept
}

// SeasonalNaive repeats the last observed season. A season longer than
// the series falls back to repeating the last value.
func SeasonalNaive(vals []float64, periods, season int) []float64 {
	out := make([]float64, periods)
	if len(vals) == 0 {
		return out
	}
	if season <= 0 || season > len(vals) {
		season = 1
	}
	lastSeason := vals[len(vals)-season:]
	for i := 0; i < periods; i++ {
		out[i] = lastSeason[i%season]
	}
	return out
}

// forecastLoader builds the "forecast" module. Deliberately not part
// of the baseline install: first use goes through the dependency
// resolver, the same way the original stack installed its forecasting
// library on demand.
func forecastLoader(ns *executor.Namespace) (goja.Value, error) {
	rt := ns.Runtime()
	exports := rt.NewObject()

	values := func(v goja.Value) []float64 {
		var vals []float64
		if err := rt.ExportTo(v, &vals); err == nil && len(vals) > 0 {
			return vals
		}
		// Not an array: assume a frame object and call its values().
		obj := v.ToObject(rt)
		fn, ok := goja.AssertFunction(obj.Get("values"))
		if !ok {
			throwData(rt, "forecast input must be a numeric array or a frame")
		}
		res, err := fn(obj)
		if err != nil {
			panic(err)
		}
		if err := rt.ExportTo(res, &vals); err != nil || len(vals) == 0 {
			throwData(rt, "forecast input has no numeric values")
		}
		return vals
	}

	exports.Set("linear", func(call goja.FunctionCall) goja.Value {
		vals := values(call.Argument(0))
		periods := int(call.Argument(1).ToInteger())
		if periods <= 0 {
			periods = 10
		}
		fc, slope, intercept := LinearTrend(vals, periods)
		out := rt.NewObject()
		out.Set("method", "linear")
		out.Set("values", rt.ToValue(fc))
		out.Set("slope", rt.ToValue(slope))
		out.Set("intercept", rt.ToValue(intercept))
		return out
	})

	exports.Set("seasonalNaive", func(call goja.FunctionCall) goja.Value {
		vals := values(call.Argument(0))
		periods := int(call.Argument(1).ToInteger())
		season := int(call.Argument(2).ToInteger())
		if periods <= 0 {
			periods = 10
		}
		out := rt.NewObject()
		out.Set("method", "seasonal_naive")
		out.Set("values", rt.ToValue(SeasonalNaive(vals, periods, season)))
		return out
	})

	return exports, nil
}
