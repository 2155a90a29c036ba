package bonito

import (
	"fmt"
	"runtime"

	"github.com/kayac/Bonito/fcmv1"
	"github.com/sirupsen/logrus"
)

// LogWithFields wraps logrus's WithFields
func LogWithFields(fields map[string]interface{}) *logrus.Entry {
	_, file, line, _ := runtime.Caller(1)

	fields["file"] = file
	fields["line"] = fmt.Sprintf("%d", line)

	return logrus.WithFields(fields)
}

// errorFields returns the classification of err as log fields.
func errorFields(err error) logrus.Fields {
	e, ok := fcmv1.AsError(err)
	if !ok {
		return logrus.Fields{"kind": "unknown"}
	}
	fields := logrus.Fields{
		"kind":      e.Kind.String(),
		"temporary": e.Temporary(),
	}
	if s := e.Status(); s != "" {
		fields["error_status"] = s
	}
	return fields
}
