package utils

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

// MarkerFormatter renders each entry as "<marker> message key=value ...", where
// the marker is [+] for info, [!] for warnings and errors and [*] for debug.
type MarkerFormatter struct {
	DisableColors bool
}

var (
	infoMarker  = markerColor(color.FgGreen)
	warnMarker  = markerColor(color.FgRed, color.Bold)
	debugMarker = markerColor(color.FgCyan)
)

// markerColor ignores color.NoColor, which is derived from stdout rather than
// the stream the logger writes to.
func markerColor(attrs ...color.Attribute) func(a ...interface{}) string {
	c := color.New(attrs...)
	c.EnableColor()
	return c.SprintFunc()
}

// Format implements logrus.Formatter.
func (f *MarkerFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var marker string
	var paint func(a ...interface{}) string
	switch entry.Level {
	case logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel, logrus.WarnLevel:
		marker, paint = "[!]", warnMarker
	case logrus.DebugLevel, logrus.TraceLevel:
		marker, paint = "[*]", debugMarker
	default:
		marker, paint = "[+]", infoMarker
	}
	if !f.DisableColors {
		marker = paint(marker)
	}

	var b bytes.Buffer
	b.WriteString(marker)
	b.WriteByte(' ')
	b.WriteString(entry.Message)

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, entry.Data[k])
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

// NewLogger returns a logger writing marker-formatted diagnostics to w.
// An unknown level falls back to info.
func NewLogger(w io.Writer, level string) *logrus.Logger {
	log := logrus.New()
	log.Out = w
	log.Formatter = &MarkerFormatter{DisableColors: !isTerminal(w)}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.Level = lvl
	return log
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
