package masking

import (
	"encoding/json"
	"strings"
)

// MaskedValue replaces a masked field's value.
const MaskedValue = "[MASKED]"

var sensitiveFieldNames = map[string]struct{}{
	"password": {}, "passwd": {}, "secret": {}, "token": {},
	"api_key": {}, "apikey": {}, "access_token": {}, "authorization": {},
}

// JSONFieldMasker redacts sensitive field values in a JSON object,
// leaving its structure and every other field untouched. Grounded on
// the teacher's structural-masker pattern (originally scoped to
// Kubernetes Secret manifests); generalized here to any JSON payload,
// since this service's error responses have no Kubernetes resources to
// special-case.
type JSONFieldMasker struct{}

func (m *JSONFieldMasker) Name() string { return "json_fields" }

func (m *JSONFieldMasker) AppliesTo(data string) bool {
	trimmed := strings.TrimSpace(data)
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}

func (m *JSONFieldMasker) Mask(data string) string {
	var doc any
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return data
	}
	maskValue(doc)
	out, err := json.Marshal(doc)
	if err != nil {
		return data
	}
	return string(out)
}

func maskValue(v any) {
	switch val := v.(type) {
	case map[string]any:
		for key, inner := range val {
			if _, sensitive := sensitiveFieldNames[strings.ToLower(key)]; sensitive {
				if _, isString := inner.(string); isString {
					val[key] = MaskedValue
					continue
				}
			}
			maskValue(inner)
		}
	case []any:
		for _, inner := range val {
			maskValue(inner)
		}
	}
}
