package data

// Data is an alias for a map so we can add functions unique to vocabstream.
type Data map[string]interface{}

// Get returns the value associated with the provided key.
func (d Data) Get(key string) interface{} {
	return d[key]
}

// Set will sets the value based on the key.
func (d Data) Set(key string, value interface{}) {
	d[key] = value
}

// Has returns to two value from of the key lookup on a map.
func (d Data) Has(key string) (interface{}, bool) {
	val, ok := d[key]
	return val, ok
}

// Delete removes the data from the map based on the provided key.
func (d Data) Delete(key string) {
	delete(d, key)
}

// AsMap converts the underlying Data d to a map[string]interface{}.
func (d Data) AsMap() map[string]interface{} {
	m := make(map[string]interface{})
	for key := range d {
		m[key] = d[key]
	}
	return m
}

// Copy returns a deep copy of d. Nested maps and slices are copied, scalar
// values are shared.
func (d Data) Copy() Data {
	if d == nil {
		return nil
	}
	out := make(Data, len(d))
	for k, v := range d {
		out[k] = CopyValue(v)
	}
	return out
}

// CopyValue deep copies the map, slice and []byte shapes produced by the
// decoders and the normalizer.
func CopyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case Data:
		return t.Copy()
	case map[string]interface{}:
		return map[string]interface{}(Data(t).Copy())
	case []interface{}:
		out := make([]interface{}, len(t))
		for i := range t {
			out[i] = CopyValue(t[i])
		}
		return out
	case []map[string]interface{}:
		out := make([]map[string]interface{}, len(t))
		for i := range t {
			out[i] = Data(t[i]).Copy().AsMap()
		}
		return out
	case []string:
		return append([]string(nil), t...)
	case []byte:
		return append([]byte(nil), t...)
	default:
		return v
	}
}

// Plain converts v so that every mapping is a map[string]interface{} and
// every list a []interface{}. Libraries that switch on concrete map types
// need this form.
func Plain(v interface{}) interface{} {
	switch t := v.(type) {
	case Data:
		return Plain(map[string]interface{}(t))
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = Plain(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i := range t {
			out[i] = Plain(t[i])
		}
		return out
	default:
		return v
	}
}
