package reporting

import (
	"encoding/hex"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Formatter renders a value of one concrete type for failure output.
// It returns the rendered string and true, or false to fall through
// to the built-in rendering.
type Formatter func(v any) (string, bool)

var formatters []Formatter

// RegisterFormatter adds a custom value formatter. Formatters are tried
// in registration order before the built-in rendering.
func RegisterFormatter(f Formatter) {
	formatters = append(formatters, f)
}

// FormatValue renders a value for display in a failure message.
// ShowTypes appends the Go type after the value.
func FormatValue(v any, showTypes bool) string {
	s := formatValue(v)
	if showTypes {
		s += fmt.Sprintf(" (%T)", v)
	}
	return s
}

func formatValue(v any) string {
	for _, f := range formatters {
		if s, ok := f(v); ok {
			return s
		}
	}
	switch x := v.(type) {
	case nil:
		return "<nil>"
	case string:
		return strconv.Quote(x)
	case []byte:
		return "0x" + strings.ToUpper(hex.EncodeToString(x))
	case bool:
		return strconv.FormatBool(x)
	case error:
		return strconv.Quote(x.Error())
	case fmt.Stringer:
		return x.String()
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 32)
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 64)
	case reflect.Ptr, reflect.UnsafePointer, reflect.Chan, reflect.Func:
		if rv.IsNil() {
			return "<nil>"
		}
		return fmt.Sprintf("0x%X", rv.Pointer())
	default:
		return fmt.Sprintf("%+v", v)
	}
}
