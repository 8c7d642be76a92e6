// Package model holds the request/response data types shared by the
// geocoder, routing, scheduler, and front-end packages.
package model

import (
	"strings"

	"github.com/trasaroute/trasaroute/internal/geo"
)

// Building is a single addressable building: an exact street and number
// tied to coordinates. The building number is uppercased before exposure.
type Building struct {
	ID      int64     `json:"id"`
	Coords  geo.Point `json:"coords"`
	Country string    `json:"country"`
	City    string    `json:"city"`
	Zipcode string    `json:"zipcode"`
	Street  string    `json:"street"`
	Number  string    `json:"number"`
}

// NormalizedNumber returns the building number uppercased, matching the
// data model's exposure invariant.
func (b Building) NormalizedNumber() string {
	return strings.ToUpper(b.Number)
}
