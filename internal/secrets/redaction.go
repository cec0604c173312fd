package secrets

// RedactedSecretValue replaces tracked secrets in logged command parameters.
const RedactedSecretValue = "[REDACTED_SECRET]"

// RedactTrackedSecrets returns a copy of a decoded wire value (nested maps,
// slices and strings) where every string containing a tracked secret is
// replaced by RedactedSecretValue. data is left untouched. The bool
// reports whether anything was replaced.
func RedactTrackedSecrets(data interface{}, tracker *SecretTracker) (interface{}, bool) {
	if data == nil || tracker == nil {
		return data, false
	}
	return redactValue(data, tracker)
}

func redactValue(data interface{}, tracker *SecretTracker) (interface{}, bool) {
	switch v := data.(type) {
	case string:
		if tracker.ContainsTrackedSecret(v) {
			return RedactedSecretValue, true
		}
		return v, false
	case map[string]interface{}:
		if v == nil {
			return v, false
		}
		hit := false
		out := make(map[string]interface{}, len(v))
		for k, val := range v {
			r, changed := redactValue(val, tracker)
			out[k] = r
			hit = hit || changed
		}
		return out, hit
	case []interface{}:
		if v == nil {
			return v, false
		}
		hit := false
		out := make([]interface{}, len(v))
		for i, val := range v {
			r, changed := redactValue(val, tracker)
			out[i] = r
			hit = hit || changed
		}
		return out, hit
	case []string:
		hit := false
		out := make([]string, len(v))
		for i, s := range v {
			if tracker.ContainsTrackedSecret(s) {
				out[i], hit = RedactedSecretValue, true
				continue
			}
			out[i] = s
		}
		return out, hit
	}
	return data, false
}
