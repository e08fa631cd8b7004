// Package recordlog appends one CSV row per calibrated cycle.
package recordlog

import (
	"encoding/csv"
	"errors"
	"os"
	"strconv"

	"airguard/internal/model"
)

// Header is the fixed column schema. It must stay stable across restarts
// since rows from several runs share one file.
var Header = []string{"Timestamp", "Temp", "Hum", "VOC", "AI_Event", "Trend"}

const timestampLayout = "2006-01-02 15:04:05"

type Writer struct {
	path string
}

func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

func (w *Writer) Path() string {
	return w.path
}

// Append writes rec, preceded by the header when the file is new.
func (w *Writer) Append(rec model.OutputRecord) error {
	if w.path == "" {
		return errors.New("record log path is empty")
	}
	_, statErr := os.Stat(w.path)
	isNew := errors.Is(statErr, os.ErrNotExist)
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(f)
	if isNew {
		if err := cw.Write(Header); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := cw.Write(Row(rec)); err != nil {
		_ = f.Close()
		return err
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Row renders rec in Header order. The timestamp is local wall-clock time.
func Row(rec model.OutputRecord) []string {
	return []string{
		rec.Timestamp.Local().Format(timestampLayout),
		formatFloat(rec.TemperatureC),
		formatFloat(rec.HumidityPct),
		formatFloat(rec.VOC),
		rec.EventName,
		string(rec.Trend),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
