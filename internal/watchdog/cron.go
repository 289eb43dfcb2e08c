package watchdog

import (
	"time"

	"github.com/robfig/cron/v3"
)

// digestParser accepts 5-field cron expressions (minute, hour, dom, month, dow).
var digestParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// nextCronDuration returns the time until a 5-field cron expression next
// fires, or 0 if the expression does not parse.
func nextCronDuration(expr string) time.Duration {
	sched, err := digestParser.Parse(expr)
	if err != nil {
		return 0
	}
	d := time.Until(sched.Next(time.Now()))
	if d < 0 {
		return 0
	}
	return d
}
