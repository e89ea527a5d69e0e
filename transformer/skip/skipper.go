// Package skip filters mapping entries with a field predicate. Entries whose
// field does not match are filtered, not failed.
package skip

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/vocabstream/vocabstream/message"
	"github.com/vocabstream/vocabstream/message/data"
	"github.com/vocabstream/vocabstream/transformer"
)

// UnknownOperatorError is returned for operators skip does not implement.
type UnknownOperatorError struct {
	Op string
}

func (e UnknownOperatorError) Error() string {
	return fmt.Sprintf("unkown operator, %s", e.Op)
}

// WrongTypeError is returned when a value cannot be compared numerically.
type WrongTypeError struct {
	Wanted string
	Got    string
}

func (e WrongTypeError) Error() string {
	return fmt.Sprintf("value is of incompatible type, wanted %s, got %s", e.Wanted, e.Got)
}

var operators = map[string]string{
	"==": "eq", "eq": "eq", "$eq": "eq",
	"!=": "ne", "ne": "ne", "$ne": "ne",
	"=~": "re",
	">": "gt", "gt": "gt", "$gt": "gt",
	">=": "gte", "gte": "gte", "$gte": "gte",
	"<": "lt", "lt": "lt", "$lt": "lt",
	"<=": "lte", "lte": "lte", "$lte": "lte",
	"exists": "exists", "$exists": "exists",
}

func init() {
	transformer.Add(
		"skip",
		func() transformer.Transformer {
			return &Skip{}
		},
	)
	transformer.Add(
		"filter",
		func() transformer.Transformer {
			return &Skip{}
		},
	)
}

// Skip keeps the entries whose Field matches Match under Operator. Field may
// be a dotted path into nested mappings.
type Skip struct {
	Field    string      `json:"field" validate:"required"`
	Operator string      `json:"operator" validate:"required"`
	Match    interface{} `json:"match"`

	re *regexp.Regexp
}

func (s *Skip) Description() string {
	return "filters entries whose field does not match a predicate"
}

func (s *Skip) SampleConfig() string {
	return "field: status\noperator: ==\nmatch: active\n"
}

// Validate checks the operator and compiles regular expressions.
func (s *Skip) Validate() error {
	op, ok := operators[s.Operator]
	if !ok {
		return UnknownOperatorError{s.Operator}
	}
	if op == "re" {
		pattern, ok := s.Match.(string)
		if !ok {
			return WrongTypeError{"string", fmt.Sprintf("%T", s.Match)}
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return err
		}
		s.re = re
	}
	return nil
}

func (s *Skip) Apply(e *message.Entry) (*message.Entry, error) {
	d, ok := e.Map()
	if !ok {
		return nil, transformer.NotAMappingError{ID: e.ID, Data: e.Data}
	}
	val, present := lookup(d, s.Field)
	keep, err := s.matches(val, present)
	if err != nil {
		return nil, err
	}
	if !keep {
		return transformer.Filter(e), nil
	}
	return e, nil
}

func (s *Skip) matches(val interface{}, present bool) (bool, error) {
	switch operators[s.Operator] {
	case "eq":
		return reflect.DeepEqual(val, s.Match), nil
	case "ne":
		return !reflect.DeepEqual(val, s.Match), nil
	case "exists":
		want, _ := s.Match.(bool)
		return present == want, nil
	case "re":
		str, ok := val.(string)
		if !ok {
			return false, nil
		}
		re := s.re
		if re == nil {
			var err error
			if re, err = regexp.Compile(fmt.Sprint(s.Match)); err != nil {
				return false, err
			}
		}
		return re.MatchString(str), nil
	case "gt", "gte", "lt", "lte":
		if !present {
			return false, nil
		}
		v, m, err := convertForComparison(val, s.Match)
		if err != nil {
			return false, err
		}
		switch operators[s.Operator] {
		case "gt":
			return v > m, nil
		case "gte":
			return v >= m, nil
		case "lt":
			return v < m, nil
		default:
			return v <= m, nil
		}
	}
	return false, UnknownOperatorError{s.Operator}
}

func lookup(d data.Data, path string) (interface{}, bool) {
	var cur interface{} = d
	for _, part := range strings.Split(path, ".") {
		var m map[string]interface{}
		switch t := cur.(type) {
		case data.Data:
			m = t
		case map[string]interface{}:
			m = t
		default:
			return nil, false
		}
		v, ok := m[part]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func convertForComparison(in1, in2 interface{}) (float64, float64, error) {
	float1, err := convertToFloat(in1)
	if err != nil {
		return math.NaN(), math.NaN(), err
	}
	float2, err := convertToFloat(in2)
	if err != nil {
		return math.NaN(), math.NaN(), err
	}
	return float1, float2, nil
}

func convertToFloat(in interface{}) (float64, error) {
	switch i := in.(type) {
	case float64:
		return i, nil
	case int:
		return float64(i), nil
	case int64:
		return float64(i), nil
	case string:
		return strconv.ParseFloat(i, 64)
	default:
		return math.NaN(), WrongTypeError{"float64 or int", fmt.Sprintf("%T", i)}
	}
}
