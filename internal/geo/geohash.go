package geo

import "strings"

// DefaultPrecision is the geohash length exposed for shelter locations.
// Five characters is roughly a 5km cell, coarse enough that a shelter's
// street address cannot be recovered from the feed.
const DefaultPrecision = 5

// base32 is the geohash alphabet.
const base32 = "0123456789bcdefghjkmnpqrstuvwxyz"

// Encode encodes latitude and longitude into a geohash of the given length.
// A precision below 1 falls back to DefaultPrecision.
func Encode(lat, lng float64, precision int) string {
	if precision < 1 {
		precision = DefaultPrecision
	}

	lat0, lat1 := -90.0, 90.0
	lng0, lng1 := -180.0, 180.0

	var sb strings.Builder
	sb.Grow(precision)

	var ch, bit uint
	lngTurn := true
	for sb.Len() < precision {
		ch <<= 1
		if lngTurn {
			if mid := (lng0 + lng1) / 2; lng > mid {
				ch |= 1
				lng0 = mid
			} else {
				lng1 = mid
			}
		} else {
			if mid := (lat0 + lat1) / 2; lat > mid {
				ch |= 1
				lat0 = mid
			} else {
				lat1 = mid
			}
		}
		lngTurn = !lngTurn

		if bit++; bit == 5 {
			sb.WriteByte(base32[ch])
			ch, bit = 0, 0
		}
	}

	return sb.String()
}

// CoarseCell returns the DefaultPrecision geohash of p.
func CoarseCell(p Point) string {
	return Encode(p.Lat, p.Lon, DefaultPrecision)
}
