package monitor

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
)

// cronLogger routes the scheduler's internal logging through arbor
type cronLogger struct {
	logger arbor.ILogger
}

var _ cron.Logger = cronLogger{}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Str("fields", formatKeysAndValues(keysAndValues)).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Str("fields", formatKeysAndValues(keysAndValues)).Msg("cron: " + msg)
}

func formatKeysAndValues(keysAndValues []interface{}) string {
	var b strings.Builder
	for i := 0; i < len(keysAndValues); i += 2 {
		if i > 0 {
			b.WriteString(" ")
		}
		if i+1 < len(keysAndValues) {
			fmt.Fprintf(&b, "%v=%v", keysAndValues[i], keysAndValues[i+1])
		} else {
			fmt.Fprintf(&b, "%v", keysAndValues[i])
		}
	}
	return b.String()
}
