package capture

import (
	"strconv"

	"github.com/tidwall/gjson"
)

// CandidateKind classifies a candidate pagination parameter by the shape
// of its observed value.
type CandidateKind string

const (
	// CandidateInteger parameters are potential page/limit/offset roles.
	CandidateInteger CandidateKind = "integer"
	// CandidateToken parameters are potential cursor roles: strings of
	// length >= minTokenLen, base64-like or structured.
	CandidateToken CandidateKind = "token"
)

// minTokenLen is the length floor for a string value to be considered a
// cursor candidate.
const minTokenLen = 8

// CandidateParameter is one (name, kind, value) triple gathered from a
// Request's query parameters or post-body, handed to the LLM classifier.
type CandidateParameter struct {
	Name  string
	Kind  CandidateKind
	Value string
}

// ExtractCandidates walks req's query parameters and post-body (flat and
// nested, when the body is JSON) and returns every value that looks like an
// integer or a long string token.
func ExtractCandidates(req Request) []CandidateParameter {
	var out []CandidateParameter

	for name, value := range req.Query {
		if c, ok := classify(name, value); ok {
			out = append(out, c)
		}
	}

	if req.PostBody != nil {
		out = append(out, candidatesFromMap("", req.PostBody)...)
	} else if len(req.RawPostBody) > 0 && gjson.ValidBytes(req.RawPostBody) {
		out = append(out, candidatesFromJSON(req.RawPostBody)...)
	}

	return out
}

func candidatesFromMap(prefix string, m map[string]interface{}) []CandidateParameter {
	var out []CandidateParameter
	for key, v := range m {
		name := key
		if prefix != "" {
			name = prefix + "." + key
		}
		switch val := v.(type) {
		case float64:
			out = append(out, CandidateParameter{Name: name, Kind: CandidateInteger, Value: strconv.FormatFloat(val, 'f', -1, 64)})
		case string:
			if c, ok := classify(name, val); ok {
				out = append(out, c)
			}
		case map[string]interface{}:
			out = append(out, candidatesFromMap(name, val)...)
		}
	}
	return out
}

// candidatesFromJSON walks a raw JSON post-body via gjson, collecting
// integer and long-string leaves at any nesting depth. Used when the body
// could not be unmarshaled into a concrete PostBody map (e.g. a
// replay-constructed Request carrying only raw bytes).
func candidatesFromJSON(raw []byte) []CandidateParameter {
	var out []CandidateParameter
	var walk func(key string, v gjson.Result)
	walk = func(key string, v gjson.Result) {
		switch {
		case v.IsObject():
			v.ForEach(func(k, val gjson.Result) bool {
				name := k.String()
				if key != "" {
					name = key + "." + name
				}
				walk(name, val)
				return true
			})
		case v.IsArray():
			// arrays of scalars/objects aren't addressable pagination
			// parameters by name; skip.
		case v.Type == gjson.Number:
			out = append(out, CandidateParameter{Name: key, Kind: CandidateInteger, Value: v.Raw})
		case v.Type == gjson.String:
			if c, ok := classify(key, v.String()); ok {
				out = append(out, c)
			}
		}
	}
	walk("", gjson.ParseBytes(raw))
	return out
}

func classify(name, value string) (CandidateParameter, bool) {
	if _, err := strconv.Atoi(value); err == nil {
		return CandidateParameter{Name: name, Kind: CandidateInteger, Value: value}, true
	}
	if len(value) >= minTokenLen {
		return CandidateParameter{Name: name, Kind: CandidateToken, Value: value}, true
	}
	return CandidateParameter{}, false
}
