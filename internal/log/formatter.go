package log

import (
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	logrusPackage = "github.com/sirupsen/logrus"
	selfPackage   = "firestige.xyz/tzspd/internal/log."
)

type formatter struct {
	pattern string
	time    string
}

// Format supports unified log output format that has %time, %level, %field, %msg, %caller, %func, %goroutine.
func (f *formatter) Format(entry *logrus.Entry) ([]byte, error) {
	output := f.pattern
	output = strings.Replace(output, "%time", entry.Time.Format(f.time), 1)
	output = strings.Replace(output, "%level", entry.Level.String(), 1)
	output = strings.Replace(output, "%field", buildFields(entry), 1)
	output = strings.Replace(output, "%msg", entry.Message, 1)
	if strings.Contains(output, "%caller") || strings.Contains(output, "%func") {
		frame, ok := callerFrame(entry)
		output = strings.Replace(output, "%caller", formatCaller(frame, ok), 1)
		output = strings.Replace(output, "%func", formatFunc(frame, ok), 1)
	}
	output = strings.Replace(output, "%goroutine", getGoroutineID(), 1)
	return []byte(output), nil
}

// callerFrame finds the first frame outside logrus and this package.
func callerFrame(entry *logrus.Entry) (runtime.Frame, bool) {
	if entry.HasCaller() {
		return *entry.Caller, true
	}
	var pcs [32]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !strings.HasPrefix(frame.Function, logrusPackage) && !strings.HasPrefix(frame.Function, selfPackage) {
			return frame, frame.Function != ""
		}
		if !more {
			return runtime.Frame{}, false
		}
	}
}

// formatCaller renders package/file.go:line.
func formatCaller(frame runtime.Frame, ok bool) string {
	if !ok {
		return "unknown"
	}
	file := frame.File
	if idx := strings.LastIndex(file, "/"); idx != -1 && idx+1 < len(file) {
		file = file[idx+1:]
	}
	pkg := frame.Function
	if idx := strings.LastIndex(pkg, "/"); idx != -1 {
		pkg = pkg[idx+1:]
	}
	if idx := strings.Index(pkg, "."); idx != -1 {
		pkg = pkg[:idx]
	}
	return fmt.Sprintf("%s/%s:%d", pkg, file, frame.Line)
}

// formatFunc keeps only the function or method name.
func formatFunc(frame runtime.Frame, ok bool) string {
	if !ok {
		return "unknown"
	}
	name := frame.Function
	if idx := strings.LastIndex(name, "."); idx != -1 && idx+1 < len(name) {
		return name[idx+1:]
	}
	return name
}

func getGoroutineID() string {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	stack := strings.TrimPrefix(string(buf[:n]), "goroutine ")
	idField := strings.Fields(stack)
	if len(idField) > 0 {
		return idField[0]
	}
	return "unknown"
}

func buildFields(entry *logrus.Entry) string {
	if len(entry.Data) == 0 {
		return ""
	}
	keys := make([]string, 0, len(entry.Data))
	for key := range entry.Data {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	fields := make([]string, 0, len(keys))
	for _, key := range keys {
		val := entry.Data[key]
		stringVal, ok := val.(string)
		if !ok {
			if err, isErr := val.(error); isErr {
				stringVal = err.Error()
			} else {
				stringVal = fmt.Sprint(val)
			}
		}
		fields = append(fields, key+"="+stringVal)
	}
	return strings.Join(fields, ",")
}
