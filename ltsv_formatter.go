package bonito

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// LtsvFormatter is ltsv format for logrus
type LtsvFormatter struct {
	DisableTimestamp bool
	TimestampFormat  string
	DisableSorting   bool
}

// Format entry
func (f *LtsvFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	prefixFieldClashes(entry.Data)

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}

	if !f.DisableSorting {
		sort.Strings(keys)
	}

	b := &bytes.Buffer{}

	timestampFormat := f.TimestampFormat
	if timestampFormat == "" {
		timestampFormat = time.RFC3339
	}

	f.appendKeyValue(b, "level", entry.Level.String())

	if entry.Message != "" {
		f.appendKeyValue(b, "msg", entry.Message)
	}

	for _, key := range keys {
		f.appendKeyValue(b, key, entry.Data[key])
	}

	if !f.DisableTimestamp {
		f.appendKeyValue(b, "time", entry.Time.Format(timestampFormat))
	}

	// the last tab is replaced with a newline
	b.Truncate(b.Len() - 1)
	b.WriteByte('\n')
	return b.Bytes(), nil
}

// isBare reports whether text can be written without quotes.
func isBare(text string) bool {
	if text == "" {
		return false
	}
	for _, ch := range text {
		if !((ch >= 'a' && ch <= 'z') ||
			(ch >= 'A' && ch <= 'Z') ||
			(ch >= '0' && ch <= '9') ||
			ch == '-' || ch == '.' || ch == '_') {
			return false
		}
	}
	return true
}

func writeString(b *bytes.Buffer, s string) {
	if isBare(s) {
		b.WriteString(s)
	} else {
		b.WriteString(strconv.Quote(s))
	}
}

func (f *LtsvFormatter) appendKeyValue(b *bytes.Buffer, key string, value interface{}) {
	b.WriteString(key)
	b.WriteByte(':')

	switch value := value.(type) {
	case string:
		writeString(b, value)
	case bool:
		b.WriteString(strconv.FormatBool(value))
	case int, int64, int32, uint, uint64, uint32:
		fmt.Fprintf(b, "%d", value)
	case float64, float32:
		fmt.Fprintf(b, "%f", value)
	case time.Duration:
		b.WriteString(strconv.FormatFloat(value.Seconds(), 'f', -1, 64))
	case error:
		writeString(b, value.Error())
	case fmt.Stringer:
		writeString(b, value.String())
	default:
		writeString(b, fmt.Sprintf("%v", value))
	}

	b.WriteByte('\t')
}

func prefixFieldClashes(data logrus.Fields) {
	for _, k := range []string{"time", "msg", "level"} {
		if v, ok := data[k]; ok {
			data["fields."+k] = v
			delete(data, k)
		}
	}
}
