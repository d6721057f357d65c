package protocol

// JSON numbers decode as float64 and ints round-trip through that. These
// helpers normalize values pulled out of envelope data objects.

func AsString(v any) string {
	s, _ := v.(string)
	return s
}

func AsFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

func AsInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	}
	return 0
}

func AsBool(v any) bool {
	b, _ := v.(bool)
	return b
}
