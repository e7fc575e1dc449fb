package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock abstracts time for billing-period arithmetic and tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

func NewSystemClock() Clock {
	return systemClock{}
}

var Module = fx.Module("clock",
	fx.Provide(NewSystemClock),
)

// LastMonth returns the month and year of the month preceding now.
func LastMonth(now time.Time) (month int, year int) {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 0, -1)
	return int(last.Month()), last.Year()
}
