package web

import (
	"math"
	"net/http"
	"reflect"
	"runtime"
	"strconv"
)

// handlerName names the function behind a route for the debug listing
func handlerName(h http.Handler) string {
	if hf, ok := h.(http.HandlerFunc); ok {
		return runtime.FuncForPC(reflect.ValueOf(hf).Pointer()).Name()
	}
	return reflect.TypeOf(h).String()
}

var sizeUnits = []string{"B", "KB", "MB", "GB", "TB"}

// formatSize renders a byte count like 10MB or 1.5KB
func formatSize(n int64) string {
	num := float64(n)
	var idx int
	for num >= 1024 && idx < len(sizeUnits)-1 {
		num /= 1024
		idx++
	}
	num = math.Round(num*100) / 100
	return strconv.FormatFloat(num, 'f', -1, 64) + sizeUnits[idx]
}
