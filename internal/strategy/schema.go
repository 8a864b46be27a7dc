package strategy

// OutputSchema is the user-supplied, language-neutral output schema: a
// named property mapped to one of the JSON-Schema primitive type names
// ("string", "number", "integer", "boolean", "array", "object"). The
// Analyzer never interprets these beyond type-checking extracted records
// against them.
type OutputSchema map[string]string

// ToJSONSchema converts schema to the JSON-Schema object description
// handed to the LLM when prompting for extraction-code synthesis.
func ToJSONSchema(schema OutputSchema) map[string]interface{} {
	properties := make(map[string]interface{}, len(schema))
	required := make([]string, 0, len(schema))
	for name, typ := range schema {
		properties[name] = map[string]interface{}{"type": typ}
		required = append(required, name)
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

// Conform checks record against schema: every schema-typed field present in
// record must type-check; missing fields are allowed (optional); fields not
// named in schema are stripped from the returned record. ok is false if any
// present field fails its type check.
func Conform(record map[string]interface{}, schema OutputSchema) (map[string]interface{}, bool) {
	out := make(map[string]interface{}, len(schema))
	for name, typ := range schema {
		v, present := record[name]
		if !present {
			continue
		}
		if !typeMatches(v, typ) {
			return nil, false
		}
		out[name] = v
	}
	return out, true
}

func typeMatches(v interface{}, typ string) bool {
	switch typ {
	case "string":
		_, ok := v.(string)
		return ok
	case "number":
		_, ok := v.(float64)
		return ok
	case "integer":
		f, ok := v.(float64)
		return ok && f == float64(int64(f))
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "array":
		_, ok := v.([]interface{})
		return ok
	case "object":
		_, ok := v.(map[string]interface{})
		return ok
	default:
		return true // unknown declared type: don't reject records over it
	}
}

// ConformAll applies Conform to every record, discarding any that fail.
func ConformAll(records []map[string]interface{}, schema OutputSchema) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(records))
	for _, r := range records {
		if conformed, ok := Conform(r, schema); ok {
			out = append(out, conformed)
		}
	}
	return out
}
