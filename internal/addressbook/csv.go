// Package addressbook parses the region address book CSV source into
// buildings that the prefix-tree geocoder backend is built from. The FTS
// backend does not use it: it reads a pre-built database.
package addressbook

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/trasaroute/trasaroute/internal/geo"
	"github.com/trasaroute/trasaroute/internal/model"
)

// ParseCSV reads a semicolon-delimited address book source:
//
//	id;longitude;latitude;country;city;zipcode;street;number
//
// Rows with an empty coordinate, city, street, or number are skipped.
func ParseCSV(r io.Reader) ([]model.Building, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var out []model.Building
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, ";")
		if len(fields) < 8 {
			return nil, fmt.Errorf("addressbook: line %d: expected 8 fields, got %d", lineNo, len(fields))
		}

		idStr := strings.TrimSpace(fields[0])
		lngStr := strings.TrimSpace(fields[1])
		latStr := strings.TrimSpace(fields[2])
		country := strings.TrimSpace(fields[3])
		city := strings.TrimSpace(fields[4])
		zipcode := strings.TrimSpace(fields[5])
		street := strings.TrimSpace(fields[6])
		number := strings.TrimSpace(fields[7])

		if lngStr == "" || latStr == "" || city == "" || street == "" || number == "" {
			continue
		}

		lng, err := strconv.ParseFloat(lngStr, 64)
		if err != nil {
			continue
		}
		lat, err := strconv.ParseFloat(latStr, 64)
		if err != nil {
			continue
		}
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			continue
		}

		out = append(out, model.Building{
			ID:      id,
			Coords:  geo.Point{Lat: lat, Lng: lng},
			Country: country,
			City:    city,
			Zipcode: zipcode,
			Street:  street,
			Number:  number,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("addressbook: %w", err)
	}
	return out, nil
}
