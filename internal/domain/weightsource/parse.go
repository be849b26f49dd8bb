package weightsource

import (
	"bytes"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"

	"apar/internal/domain/weights"
)

type entry struct {
	Name        *string  `json:"name"`
	FieldWeight *float64 `json:"fieldWeight"`
	HQWeight    *float64 `json:"hqWeight"`
}

type channels struct {
	FieldWeight *float64 `json:"fieldWeight"`
	HQWeight    *float64 `json:"hqWeight"`
}

// ParseWeights decodes model output into raw KPI weights. Accepted shapes are
// {"weights":[{name,fieldWeight,hqWeight}]}, a bare array of those entries, or
// an object keyed by KPI name. Repeated keys are kept so the deduplicator can
// merge them. Anything else yields ErrInvalidOutput.
func ParseWeights(text string) ([]weights.KPIWeight, error) {
	body := stripFences(text)
	if body == "" {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidOutput)
	}

	var out []weights.KPIWeight
	var err error
	switch body[0] {
	case '[':
		out, err = decodeEntries([]byte(body))
	case '{':
		out, err = decodeObject([]byte(body))
	default:
		return nil, fmt.Errorf("%w: not a json document", ErrInvalidOutput)
	}
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no weights", ErrInvalidOutput)
	}
	return out, nil
}

func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func decodeEntries(data []byte) ([]weights.KPIWeight, error) {
	var entries []entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	out := make([]weights.KPIWeight, 0, len(entries))
	for i, e := range entries {
		if e.Name == nil || strings.TrimSpace(*e.Name) == "" {
			return nil, fmt.Errorf("%w: entry %d has no name", ErrInvalidOutput, i)
		}
		w, err := toWeight(*e.Name, channels{FieldWeight: e.FieldWeight, HQWeight: e.HQWeight})
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

// decodeObject walks the top-level object token by token so repeated keys
// survive decoding.
func decodeObject(data []byte) ([]weights.KPIWeight, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}

	var out []weights.KPIWeight
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected token %v", ErrInvalidOutput, tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
		}
		raw = bytes.TrimSpace(raw)

		if key == "weights" && len(raw) > 0 && raw[0] == '[' {
			entries, err := decodeEntries(raw)
			if err != nil {
				return nil, err
			}
			out = append(out, entries...)
			continue
		}

		var ch channels
		if len(raw) == 0 || raw[0] != '{' {
			return nil, fmt.Errorf("%w: value for %q is not an object", ErrInvalidOutput, key)
		}
		if err := json.Unmarshal(raw, &ch); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
		}
		w, err := toWeight(key, ch)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

func toWeight(name string, ch channels) (weights.KPIWeight, error) {
	if ch.FieldWeight == nil && ch.HQWeight == nil {
		return weights.KPIWeight{}, fmt.Errorf("%w: %q has no weights", ErrInvalidOutput, name)
	}
	w := weights.KPIWeight{Name: name}
	if ch.FieldWeight != nil {
		w.FieldWeight = *ch.FieldWeight
	}
	if ch.HQWeight != nil {
		w.HQWeight = *ch.HQWeight
	}
	return w, nil
}
