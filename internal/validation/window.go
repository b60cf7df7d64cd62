package validation

import (
	"time"

	"github.com/yourorg/sui-wrapped/internal/model"
)

// MainnetLaunch is the Sui mainnet launch date.
var MainnetLaunch = time.Date(2023, time.May, 3, 0, 0, 0, 0, time.UTC)

// MaxWindow bounds an explicit report range to one calendar year of history.
const MaxWindow = 366 * 24 * time.Hour

// YearWindow validates year against the chain's lifetime and returns its UTC window.
func YearWindow(year int, now time.Time) (model.Window, error) {
	if year < MainnetLaunch.Year() || year > now.UTC().Year() {
		return model.Window{}, model.NewError(model.CodeInvalidWindow, nil,
			"year %d outside %d-%d", year, MainnetLaunch.Year(), now.UTC().Year())
	}
	return model.YearWindow(year), nil
}

// RangeWindow validates an explicit [start, end] range.
func RangeWindow(start, end time.Time) (model.Window, error) {
	if !end.After(start) {
		return model.Window{}, model.NewError(model.CodeInvalidWindow, nil, "window end must be after start")
	}
	if end.Sub(start) > MaxWindow {
		return model.Window{}, model.NewError(model.CodeInvalidWindow, nil,
			"window of %s exceeds one year", end.Sub(start).Round(time.Hour))
	}
	return model.Window{Start: start.UTC(), End: end.UTC()}, nil
}
