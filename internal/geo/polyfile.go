package geo

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParsePolyFile reads an OSM "poly file" and extracts the ring belonging to
// the sub-polygon whose header line equals name (case-insensitive).
//
// A poly file nests one or more named sub-polygons:
//
//	województwo małopolskie
//	1
//	 19.5293411 49.5730542
//	 19.5183851 49.5734240
//	 ...
//	END
//	END
//
// Lines that don't start with whitespace either open a new context (name
// header at depth 0, ring index at depth 1) or, if they read "END", close
// one. Coordinate lines appear only at context depth 2 and are "longitude
// latitude" pairs, stored here as (latitude, longitude). Grounded on
// original_source's spacial/index.cc to_polygon().
func ParsePolyFile(r io.Reader, name string) (Polygon, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		points       []Point
		contextDepth int
		currentName  string
		lineNo       int
	)

	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		if !strings.HasPrefix(line, " ") && !strings.HasPrefix(line, "\t") {
			trimmed := strings.TrimSpace(line)
			if strings.HasPrefix(trimmed, "END") {
				contextDepth--
				if contextDepth < 0 {
					contextDepth = 0
				}
				if contextDepth == 0 {
					currentName = ""
				}
				continue
			}
			if contextDepth == 0 {
				currentName = trimmed
			}
			contextDepth++
			continue
		}

		if contextDepth == 2 && strings.EqualFold(currentName, name) {
			fields := strings.Fields(line)
			if len(fields) < 2 {
				return Polygon{}, fmt.Errorf("poly file: line %d: expected \"lng lat\", got %q", lineNo, line)
			}
			lng, err := strconv.ParseFloat(fields[0], 64)
			if err != nil {
				return Polygon{}, fmt.Errorf("poly file: line %d: bad longitude: %w", lineNo, err)
			}
			lat, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return Polygon{}, fmt.Errorf("poly file: line %d: bad latitude: %w", lineNo, err)
			}
			points = append(points, Point{Lat: lat, Lng: lng})
		}
	}
	if err := scanner.Err(); err != nil {
		return Polygon{}, fmt.Errorf("poly file: %w", err)
	}
	if len(points) == 0 {
		return Polygon{}, fmt.Errorf("poly file: no ring found for region %q", name)
	}
	return Polygon{Points: points}, nil
}
