// Package geo implements the geospatial primitives used by the graph
// engine: base-32 geohash encoding, prefix-precision selection for radius
// queries and great-circle distance.
package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const base32 = "0123456789bcdefghjkmnpqrstuvwxyz"

// MaxPrecision is the geohash length stored in the index. Nine characters
// disambiguate to roughly city-block resolution (~5 m cells).
const MaxPrecision = 9

// cellSizeKm maps geohash precision to the approximate size of one cell.
// A prefix of that precision bounds a region at least this wide.
var cellSizeKm = [MaxPrecision + 1]float64{
	0, 5000, 1250, 156, 39.1, 4.89, 1.22, 0.153, 0.0382, 0.00477,
}

// Encode returns the geohash of a coordinate at the given precision.
func Encode(lat, lon float64, precision int) string {
	if precision < 1 {
		precision = 1
	}
	if precision > MaxPrecision {
		precision = MaxPrecision
	}

	latRange := [2]float64{-90, 90}
	lonRange := [2]float64{-180, 180}
	bits := [5]int{16, 8, 4, 2, 1}

	var sb strings.Builder
	sb.Grow(precision)
	bit, ch := 0, 0
	even := true

	for sb.Len() < precision {
		if even {
			mid := (lonRange[0] + lonRange[1]) / 2
			if lon >= mid {
				ch |= bits[bit]
				lonRange[0] = mid
			} else {
				lonRange[1] = mid
			}
		} else {
			mid := (latRange[0] + latRange[1]) / 2
			if lat >= mid {
				ch |= bits[bit]
				latRange[0] = mid
			} else {
				latRange[1] = mid
			}
		}
		even = !even
		if bit < 4 {
			bit++
		} else {
			sb.WriteByte(base32[ch])
			bit, ch = 0, 0
		}
	}

	return sb.String()
}

// DecodeBox returns the bounding box of a geohash cell.
func DecodeBox(hash string) (minLat, maxLat, minLon, maxLon float64, err error) {
	latRange := [2]float64{-90, 90}
	lonRange := [2]float64{-180, 180}
	even := true

	for _, c := range hash {
		idx := strings.IndexRune(base32, c)
		if idx < 0 {
			return 0, 0, 0, 0, fmt.Errorf("invalid geohash character %q", c)
		}
		for _, mask := range [5]int{16, 8, 4, 2, 1} {
			if even {
				mid := (lonRange[0] + lonRange[1]) / 2
				if idx&mask != 0 {
					lonRange[0] = mid
				} else {
					lonRange[1] = mid
				}
			} else {
				mid := (latRange[0] + latRange[1]) / 2
				if idx&mask != 0 {
					latRange[0] = mid
				} else {
					latRange[1] = mid
				}
			}
			even = !even
		}
	}

	return latRange[0], latRange[1], lonRange[0], lonRange[1], nil
}

// Neighbors returns the geohashes of the up-to-8 cells surrounding hash, at
// the same precision. Cells beyond the poles are skipped; longitude wraps
// at the antimeridian.
func Neighbors(hash string) []string {
	minLat, maxLat, minLon, maxLon, err := DecodeBox(hash)
	if err != nil {
		return nil
	}
	latStep := maxLat - minLat
	lonStep := maxLon - minLon
	centerLat := (minLat + maxLat) / 2
	centerLon := (minLon + maxLon) / 2

	seen := map[string]struct{}{hash: {}}
	var out []string
	for _, dLat := range [3]float64{-1, 0, 1} {
		for _, dLon := range [3]float64{-1, 0, 1} {
			if dLat == 0 && dLon == 0 {
				continue
			}
			lat := centerLat + dLat*latStep
			if lat <= -90 || lat >= 90 {
				continue
			}
			lon := centerLon + dLon*lonStep
			if lon < -180 {
				lon += 360
			} else if lon >= 180 {
				lon -= 360
			}
			n := Encode(lat, lon, len(hash))
			if _, dup := seen[n]; dup {
				continue
			}
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	return out
}

// PrecisionForRadius picks the finest geohash precision whose cell still
// covers the given radius, so a prefix search over that cell and its
// neighbors is an over-inclusive bound for the radius.
func PrecisionForRadius(radiusKm float64) int {
	if radiusKm <= 0 {
		return MaxPrecision
	}
	for precision := MaxPrecision; precision >= 1; precision-- {
		if cellSizeKm[precision] >= radiusKm {
			return precision
		}
	}
	return 1
}

const earthRadiusKm = 6371.0

// Haversine returns the great-circle distance between two coordinates in
// kilometers.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Point is a latitude/longitude pair. Nodes carry it serialized as a single
// "lat,lon" data field.
type Point struct {
	Lat float64
	Lon float64
}

// ParsePoint parses a "lat,lon" string.
func ParsePoint(value string) (Point, error) {
	parts := strings.SplitN(value, ",", 2)
	if len(parts) != 2 {
		return Point{}, fmt.Errorf("location must be \"lat,lon\", got %q", value)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Point{}, fmt.Errorf("invalid latitude in %q", value)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Point{}, fmt.Errorf("invalid longitude in %q", value)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return Point{}, fmt.Errorf("coordinates out of range in %q", value)
	}
	return Point{Lat: lat, Lon: lon}, nil
}

func (p Point) String() string {
	return strconv.FormatFloat(p.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lon, 'f', -1, 64)
}

// Geohash returns the point's geohash at full index precision.
func (p Point) Geohash() string {
	return Encode(p.Lat, p.Lon, MaxPrecision)
}
