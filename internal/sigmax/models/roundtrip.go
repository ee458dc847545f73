package models

import "time"

// Roundtrip records one case created in CityControl for a signal. Backfilled
// rows stand for cases CityControl reported that were never acknowledged here.
type Roundtrip struct {
	SignalID   int64
	Backfilled bool
	CreatedAt  time.Time
}
