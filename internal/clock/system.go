package clock

import (
	"time"

	"go.uber.org/fx"
)

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

var Module = fx.Module("clock",
	fx.Provide(New),
)
