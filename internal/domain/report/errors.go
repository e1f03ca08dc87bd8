package report

import "errors"

// ErrNoData means the requested window holds no rows for the subject. It is
// not a failure of the lake; callers usually translate it to a 404.
var ErrNoData = errors.New("no telemetry data in window")
