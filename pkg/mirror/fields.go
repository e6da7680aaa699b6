package mirror

// Legacy field compatibility. Earlier generations of the fetch step wrote
// different field names for the same logical values; the accessor lists
// below are the input schema's compatibility contract, tried strictly in
// priority order. Do not probe record objects ad hoc elsewhere.

// Accessor extracts one logical string field from a decoded record line.
type Accessor func(map[string]any) (string, bool)

// TimestampAliases lists every recognized retrieval-timestamp field name,
// newest first.
var TimestampAliases = []string{
	"retrievedAtUtc",
	"retrieved_at_utc",
	"retrievedAt",
	"retrieved",
}

// HashAccessors lists every recognized payload-hash location, newest first.
var HashAccessors = []Accessor{
	nestedString("rawPayloadHash", "hex"),
	nestedString("raw_payload_hash", "hex"),
}

var seriesIDAliases = []string{"seriesId", "series_id"}

// TimestampFromLine returns the retrieval timestamp of a decoded line.
func TimestampFromLine(obj map[string]any) (string, bool) {
	for _, alias := range TimestampAliases {
		if s, ok := obj[alias].(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

// PayloadHashFromLine returns the payload hash hex of a decoded line.
func PayloadHashFromLine(obj map[string]any) (string, bool) {
	for _, acc := range HashAccessors {
		if s, ok := acc(obj); ok {
			return s, true
		}
	}
	return "", false
}

// SeriesIDFromLine returns the series id of a decoded line, if present.
func SeriesIDFromLine(obj map[string]any) (string, bool) {
	for _, alias := range seriesIDAliases {
		if s, ok := obj[alias].(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

func nestedString(outer, inner string) Accessor {
	return func(obj map[string]any) (string, bool) {
		m, ok := obj[outer].(map[string]any)
		if !ok {
			return "", false
		}
		s, ok := m[inner].(string)
		if !ok || s == "" {
			return "", false
		}
		return s, true
	}
}
