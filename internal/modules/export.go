package modules

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dop251/goja"

	"github.com/nextlevelbuilder/tsagent/internal/dataset"
	"github.com/nextlevelbuilder/tsagent/internal/executor"
	"github.com/nextlevelbuilder/tsagent/internal/session"
)

// exportLoader builds the "export" module: file output for generated
// code. Writes are real side effects under the session work dir and
// feed the empty-result heuristic.
func exportLoader(ns *executor.Namespace) (goja.Value, error) {
	rt := ns.Runtime()
	exports := rt.NewObject()

	exports.Set("writeCSV", func(call goja.FunctionCall) goja.Value {
		name := dataset.NormalizeName(call.Argument(0).String())
		rows := toRows(rt, call.Argument(1))

		path := filepath.Join(ns.WorkDir(), name+".csv")
		if err := writeCSV(path, rows); err != nil {
			throwData(rt, "write %s: %v", path, err)
		}

		ns.RecordFile(path)
		ns.RecordArtifact(name, session.KindTable, path)
		ns.Print("wrote " + path)
		return rt.ToValue(path)
	})

	exports.Set("print", func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, a := range call.Arguments {
			parts[i] = a.String()
		}
		ns.Print(strings.Join(parts, " "))
		return goja.Undefined()
	})

	return exports, nil
}

// toRows accepts an array of arrays or an array of flat objects.
func toRows(rt *goja.Runtime, v goja.Value) [][]string {
	var raw []any
	if err := rt.ExportTo(v, &raw); err != nil {
		throwData(rt, "writeCSV expects an array of rows")
	}

	var rows [][]string
	var header []string
	for _, item := range raw {
		switch row := item.(type) {
		case []any:
			rows = append(rows, stringify(row))
		case map[string]any:
			if header == nil {
				for k := range row {
					header = append(header, k)
				}
				sort.Strings(header)
				rows = append(rows, header)
			}
			rec := make([]string, len(header))
			for i, k := range header {
				rec[i] = fmt.Sprint(row[k])
			}
			rows = append(rows, rec)
		default:
			rows = append(rows, []string{fmt.Sprint(item)})
		}
	}
	return rows
}

func stringify(row []any) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = fmt.Sprint(v)
	}
	return out
}

func writeCSV(path string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
