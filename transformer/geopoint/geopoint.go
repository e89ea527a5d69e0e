// Package geopoint turns latitude/longitude fields into a point geometry.
package geopoint

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/encoding/wkt"

	"github.com/vocabstream/vocabstream/message"
	"github.com/vocabstream/vocabstream/transformer"
)

const (
	FormatGeom    = "geom"
	FormatWKT     = "wkt"
	FormatGeoJSON = "geojson"
)

var (
	_ transformer.Transformer = &GeoPoint{}
)

// CoordinateError is returned when a coordinate is missing, unparsable or out of range.
type CoordinateError struct {
	Field string
	Value interface{}
	Err   string
}

func (e CoordinateError) Error() string {
	return fmt.Sprintf("invalid coordinate %s (%v), %s", e.Field, e.Value, e.Err)
}

func init() {
	transformer.Add(
		"geopoint",
		func() transformer.Transformer {
			return &GeoPoint{Lat: "lat", Lng: "lng", Field: "location", Format: FormatGeoJSON}
		},
	)
}

// GeoPoint replaces the Lat and Lng fields with a point stored under Field.
// Entries carrying neither field pass through untouched.
type GeoPoint struct {
	Lat    string `json:"lat" validate:"required"`
	Lng    string `json:"lng" validate:"required"`
	Field  string `json:"field" validate:"required"`
	Format string `json:"format" validate:"oneof=geom wkt geojson"`
	Keep   bool   `json:"keep"`
}

func (g *GeoPoint) Description() string {
	return "builds a point from latitude/longitude fields, as a geometry, WKT or GeoJSON"
}

func (g *GeoPoint) SampleConfig() string {
	return `lat: latitude
lng: longitude
field: location
# geom keeps a go-geom point for the mysql writer
format: geojson
`
}

func (g *GeoPoint) Apply(e *message.Entry) (*message.Entry, error) {
	d, ok := e.Map()
	if !ok {
		return nil, transformer.NotAMappingError{ID: e.ID, Data: e.Data}
	}
	rawLat, hasLat := d.Has(g.Lat)
	rawLng, hasLng := d.Has(g.Lng)
	if !hasLat && !hasLng {
		return e, nil
	}
	lat, err := coordinate(g.Lat, rawLat, 90)
	if err != nil {
		return nil, err
	}
	lng, err := coordinate(g.Lng, rawLng, 180)
	if err != nil {
		return nil, err
	}

	p, err := geom.NewPoint(geom.XY).SetCoords(geom.Coord{lng, lat})
	if err != nil {
		return nil, err
	}
	v, err := g.encode(p)
	if err != nil {
		return nil, err
	}

	if !g.Keep {
		d.Delete(g.Lat)
		d.Delete(g.Lng)
	}
	d.Set(g.Field, v)
	return message.New(e.ID, d), nil
}

func (g *GeoPoint) encode(p *geom.Point) (interface{}, error) {
	switch g.Format {
	case FormatGeom:
		return p, nil
	case FormatWKT:
		return wkt.Marshal(p)
	default:
		b, err := geojson.Marshal(p)
		if err != nil {
			return nil, err
		}
		var out map[string]interface{}
		err = json.Unmarshal(b, &out)
		return out, err
	}
}

func coordinate(field string, v interface{}, limit float64) (float64, error) {
	var f float64
	switch n := v.(type) {
	case nil:
		return 0, CoordinateError{field, v, "missing"}
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, CoordinateError{field, v, err.Error()}
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, CoordinateError{field, v, "not a number"}
		}
		f = parsed
	default:
		return 0, CoordinateError{field, v, fmt.Sprintf("unsupported type %T", v)}
	}
	if f < -limit || f > limit {
		return 0, CoordinateError{field, v, fmt.Sprintf("outside [-%g, %g]", limit, limit)}
	}
	return f, nil
}
