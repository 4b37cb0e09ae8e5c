// Package render provides centralized output rendering for the canisnap CLI.
//
// Format selection rules:
//   - If output is a TTY, default to table
//   - If output is not a TTY, default to json
//   - --format flag always overrides defaults
//   - Invalid formats are errors
//
// Color handling:
//   - --no-color affects table output only
//   - TUI mode is unaffected by --no-color (uses its own styling)
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/pithecene-io/canisnap/cli/reader"
	"github.com/pithecene-io/canisnap/cli/tui"
)

// Format represents an output format.
type Format string

// Supported formats.
const (
	FormatJSON  Format = "json"
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
)

var formats = map[string]Format{
	"json":  FormatJSON,
	"table": FormatTable,
	"yaml":  FormatYAML,
}

// ParseFormat parses a format string. An empty string yields an empty
// Format so the caller can pick the TTY default.
func ParseFormat(s string) (Format, error) {
	if s == "" {
		return "", nil
	}
	if f, ok := formats[strings.ToLower(s)]; ok {
		return f, nil
	}
	return "", fmt.Errorf("invalid format: %q (must be json, table, or yaml)", s)
}

// Renderer writes view payloads in one output format.
type Renderer struct {
	format  Format
	noColor bool
	out     io.Writer
}

// NewRenderer creates a renderer for stdout from the --format and
// --no-color flags.
func NewRenderer(c *cli.Context) (*Renderer, error) {
	format, err := ParseFormat(c.String("format"))
	if err != nil {
		return nil, err
	}
	if format == "" {
		format = FormatJSON
		if isTTY(os.Stdout) {
			format = FormatTable
		}
	}
	return NewRendererWithWriter(format, c.Bool("no-color"), os.Stdout), nil
}

// NewRendererWithWriter creates a renderer writing to out.
func NewRendererWithWriter(format Format, noColor bool, out io.Writer) *Renderer {
	return &Renderer{format: format, noColor: noColor, out: out}
}

// Render outputs the data in the configured format.
func (r *Renderer) Render(data any) error {
	switch r.format {
	case FormatJSON:
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatYAML:
		enc := yaml.NewEncoder(r.out)
		enc.SetIndent(2)
		return enc.Encode(data)
	case FormatTable:
		return r.renderTable(data)
	default:
		return fmt.Errorf("unknown format: %s", r.format)
	}
}

// RenderTUI hands data to the interactive view registered for viewType.
func (r *Renderer) RenderTUI(viewType string, data any) error {
	if !tui.IsTUISupported(viewType) {
		return fmt.Errorf("--tui is not supported for %s", viewType)
	}
	return tui.Run(viewType, data)
}

// renderTable prints structs as "name: value" lines and slices as a
// header row plus one row per element. Snapshot and transfer views carry a
// nested list or summary that is printed as a second block.
func (r *Renderer) renderTable(data any) error {
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)

	switch v := data.(type) {
	case *reader.SnapshotView:
		writeFields(w, v, "artifacts")
		fmt.Fprintln(w)
		writeRows(w, reflect.ValueOf(v.Artifacts))
	case *reader.TransferView:
		writeFields(w, v, "metrics")
		if v.Metrics != nil {
			fmt.Fprintln(w)
			writeFields(w, v.Metrics)
		}
	default:
		if rv := reflect.ValueOf(data); rv.Kind() == reflect.Slice {
			writeRows(w, rv)
		} else {
			writeFields(w, data)
		}
	}
	return w.Flush()
}

// column is a struct field shown in table output, named by its json tag.
type column struct {
	name  string
	index int
}

func columnsOf(t reflect.Type, skip ...string) []column {
	cols := make([]column, 0, t.NumField())
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" || slices.Contains(skip, name) {
			continue
		}
		if name == "" {
			name = strings.ToLower(f.Name)
		}
		cols = append(cols, column{name: name, index: i})
	}
	return cols
}

func writeFields(w io.Writer, data any, skip ...string) {
	v := reflect.Indirect(reflect.ValueOf(data))
	if v.Kind() != reflect.Struct {
		fmt.Fprintf(w, "%v\n", data)
		return
	}
	for _, col := range columnsOf(v.Type(), skip...) {
		fmt.Fprintf(w, "%s:\t%s\n", col.name, cell(col.name, v.Field(col.index)))
	}
}

func writeRows(w io.Writer, rows reflect.Value) {
	if rows.Len() == 0 {
		fmt.Fprintln(w, "(no results)")
		return
	}

	elem := rows.Type().Elem()
	if elem.Kind() == reflect.Pointer {
		elem = elem.Elem()
	}
	if elem.Kind() != reflect.Struct {
		for i := range rows.Len() {
			fmt.Fprintln(w, cell("", rows.Index(i)))
		}
		return
	}

	cols := columnsOf(elem)
	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = col.name
	}
	fmt.Fprintln(w, strings.Join(names, "\t"))

	for i := range rows.Len() {
		row := reflect.Indirect(rows.Index(i))
		cells := make([]string, len(cols))
		for j, col := range cols {
			if row.IsValid() {
				cells[j] = cell(col.name, row.Field(col.index))
			}
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
}

var timeType = reflect.TypeFor[time.Time]()

// cell formats one value. Byte counts are humanized by field name; nested
// values collapse to a short summary.
func cell(name string, v reflect.Value) string {
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return ""
		}
		v = v.Elem()
	}

	switch {
	case v.Kind() == reflect.Uint64 && (name == "size" || strings.HasSuffix(name, "bytes")):
		return humanize.IBytes(v.Uint())
	case v.Kind() == reflect.Int64 && strings.HasPrefix(name, "bytes_"):
		return humanize.IBytes(uint64(max(v.Int(), 0)))
	case v.Type() == timeType:
		return v.Interface().(time.Time).Format(time.RFC3339)
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		return fmt.Sprintf("[%d items]", v.Len())
	case reflect.Map:
		pairs := make([]string, 0, v.Len())
		for it := v.MapRange(); it.Next(); {
			pairs = append(pairs, fmt.Sprintf("%v=%v", it.Key(), it.Value()))
		}
		slices.Sort(pairs)
		return strings.Join(pairs, " ")
	case reflect.Struct:
		return fmt.Sprintf("%+v", v.Interface())
	default:
		return fmt.Sprint(v.Interface())
	}
}

func isTTY(f *os.File) bool {
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}
