package model

import "time"

// Tick is one base-resolution price sample (nominally one per minute).
type Tick struct {
	TS    time.Time `json:"ts"`
	Price float64   `json:"price"`
}
