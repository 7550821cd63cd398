// Package geo converts projected coordinates and builds map features.
package geo

import "math"

// Coordinate kinds reported in Conversion.OriginalType.
const (
	TypeUTM    = "utm"
	TypeLatLng = "latlng"
)

// WGS84 ellipsoid and UTM projection constants.
const (
	semiMajorAxis = 6378137.0
	flattening    = 1 / 298.257223563
	scaleFactor   = 0.9996
	falseEasting  = 500000.0
	falseNorthing = 10000000.0
)

// Zones either side of the 102°W meridian.
const (
	utmZoneWest = 13
	utmZoneEast = 14
)

// Conversion is the result of ConvertToLatLong.
type Conversion struct {
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	WasConverted bool    `json:"wasConverted"`
	OriginalType string  `json:"originalType"`
}

// ConvertToLatLong classifies (x, y) as UTM or lat/lng and returns WGS84
// degrees. It returns nil when either input is missing or not finite.
//
// Values above 1000 in magnitude are UTM. Values inside the lng/lat ranges
// pass through unchanged. Anything else is treated as UTM. The UTM zone is
// guessed as 13 when x > 500000 and 14 otherwise, which only holds for the
// region straddling the 102°W meridian; use ConvertUTM elsewhere.
func ConvertToLatLong(x, y *float64) *Conversion {
	if x == nil || y == nil || !finite(*x) || !finite(*y) {
		return nil
	}
	ax, ay := math.Abs(*x), math.Abs(*y)

	if ax <= 180 && ay <= 90 {
		return &Conversion{Lat: *y, Lng: *x, OriginalType: TypeLatLng}
	}

	zone := utmZoneEast
	if *x > falseEasting {
		zone = utmZoneWest
	}
	lat, lng := ConvertUTM(*x, *y, zone, true)
	return &Conversion{Lat: lat, Lng: lng, WasConverted: true, OriginalType: TypeUTM}
}

// ConvertZone converts a northern-hemisphere UTM pair in an explicit zone.
// It returns nil when either input is missing or not finite, or when zone
// is outside 1..60.
func ConvertZone(x, y *float64, zone int) *Conversion {
	if x == nil || y == nil || !finite(*x) || !finite(*y) || zone < 1 || zone > 60 {
		return nil
	}
	lat, lng := ConvertUTM(*x, *y, zone, true)
	return &Conversion{Lat: lat, Lng: lng, WasConverted: true, OriginalType: TypeUTM}
}

// ConvertUTM converts a UTM easting/northing in the given zone to WGS84
// latitude and longitude using the inverse footpoint-latitude series.
func ConvertUTM(easting, northing float64, zone int, northern bool) (lat, lng float64) {
	e2 := flattening * (2 - flattening)
	ep2 := e2 / (1 - e2)

	x := easting - falseEasting
	y := northing
	if !northern {
		y -= falseNorthing
	}

	m := y / scaleFactor
	mu := m / (semiMajorAxis * (1 - e2/4 - 3*e2*e2/64 - 5*e2*e2*e2/256))

	sq := math.Sqrt(1 - e2)
	e1 := (1 - sq) / (1 + sq)
	phi1 := mu +
		(3*e1/2-27*math.Pow(e1, 3)/32)*math.Sin(2*mu) +
		(21*e1*e1/16-55*math.Pow(e1, 4)/32)*math.Sin(4*mu) +
		(151*math.Pow(e1, 3)/96)*math.Sin(6*mu) +
		(1097*math.Pow(e1, 4)/512)*math.Sin(8*mu)

	sinPhi, cosPhi, tanPhi := math.Sin(phi1), math.Cos(phi1), math.Tan(phi1)
	denom := 1 - e2*sinPhi*sinPhi
	n1 := semiMajorAxis / math.Sqrt(denom)
	t1 := tanPhi * tanPhi
	c1 := ep2 * cosPhi * cosPhi
	r1 := semiMajorAxis * (1 - e2) / math.Pow(denom, 1.5)
	d := x / (n1 * scaleFactor)

	latRad := phi1 - (n1*tanPhi/r1)*(d*d/2-
		(5+3*t1+10*c1-4*c1*c1-9*ep2)*math.Pow(d, 4)/24+
		(61+90*t1+298*c1+45*t1*t1-252*ep2-3*c1*c1)*math.Pow(d, 6)/720)

	lngRad := (d -
		(1+2*t1+c1)*math.Pow(d, 3)/6 +
		(5-2*c1+28*t1-3*c1*c1+8*ep2+24*t1*t1)*math.Pow(d, 5)/120) / cosPhi

	centralMeridian := float64((zone-1)*6 - 180 + 3)
	return latRad * 180 / math.Pi, centralMeridian + lngRad*180/math.Pi
}

// ValidLatLng reports whether lat/lng is a plottable coordinate. The 0/0
// pair is rejected because it is what empty upstream fields decode to.
func ValidLatLng(lat, lng float64) bool {
	if !finite(lat) || !finite(lng) {
		return false
	}
	if lat == 0 && lng == 0 {
		return false
	}
	return math.Abs(lat) <= 90 && math.Abs(lng) <= 180
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
