package modules

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dop251/goja"

	"github.com/nextlevelbuilder/tsagent/internal/dataset"
	"github.com/nextlevelbuilder/tsagent/internal/executor"
)

// framesLoader builds the "frames" module: tabular frame operations
// over datasets bound into the namespace.
func framesLoader(ns *executor.Namespace) (goja.Value, error) {
	rt := ns.Runtime()
	exports := rt.NewObject()

	exports.Set("fromCSV", func(call goja.FunctionCall) goja.Value {
		path := call.Argument(0).String()
		target := call.Argument(1).String()
		seriesID := call.Argument(2).String()
		fr, err := dataset.Load(path, target, seriesID)
		if err != nil {
			throwData(rt, "%v", err)
		}
		return WrapFrame(ns, fr)
	})

	return exports, nil
}

// WrapFrame exposes a frame to generated code as an object with
// columns/length fields and series/filter/head/values/toTable methods.
func WrapFrame(ns *executor.Namespace, f *dataset.Frame) goja.Value {
	rt := ns.Runtime()
	obj := rt.NewObject()

	obj.Set("columns", rt.ToValue(f.Columns))
	obj.Set("length", rt.ToValue(f.Len()))
	obj.Set("target", rt.ToValue(f.Target))
	obj.Set("seriesId", rt.ToValue(f.SeriesID))

	obj.Set("series", func(call goja.FunctionCall) goja.Value {
		return rt.ToValue(f.Series())
	})

	obj.Set("filter", func(call goja.FunctionCall) goja.Value {
		id := call.Argument(0).String()
		return WrapFrame(ns, f.FilterSeries(id))
	})

	obj.Set("head", func(call goja.FunctionCall) goja.Value {
		n := int(call.Argument(0).ToInteger())
		if n <= 0 {
			n = 5
		}
		return WrapFrame(ns, f.Head(n))
	})

	obj.Set("column", func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		vals, ok := f.Column(name)
		if !ok {
			throwData(rt, "no such column %q", name)
		}
		return rt.ToValue(vals)
	})

	// values() parses the target column; values(name) any numeric column.
	obj.Set("values", func(call goja.FunctionCall) goja.Value {
		name := f.Target
		if len(call.Arguments) > 0 && !goja.IsUndefined(call.Argument(0)) {
			name = call.Argument(0).String()
		}
		vals, err := f.Floats(name)
		if err != nil {
			throwData(rt, "%v", err)
		}
		return rt.ToValue(vals)
	})

	obj.Set("toTable", func(call goja.FunctionCall) goja.Value {
		max := 10
		if len(call.Arguments) > 0 {
			if n := int(call.Argument(0).ToInteger()); n > 0 {
				max = n
			}
		}
		return rt.ToValue(renderTable(f, max))
	})

	return obj
}

func renderTable(f *dataset.Frame, maxRows int) string {
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(f.Columns, "\t"))
	for i, rec := range f.Records {
		if i >= maxRows {
			fmt.Fprintf(tw, "... (%d more rows)\n", f.Len()-maxRows)
			break
		}
		fmt.Fprintln(tw, strings.Join(rec, "\t"))
	}
	tw.Flush()
	return b.String()
}
