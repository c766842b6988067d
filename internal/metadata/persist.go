package metadata

import (
	"encoding/json"
	"os"

	coreerrors "github.com/agentmem/agentmem/internal/errors"
	"github.com/agentmem/agentmem/internal/pathutil"
)

// forbiddenKeys blocks prototype-pollution-style keys from a sidecar file
// written by an untrusted or older process.
var forbiddenKeys = map[string]struct{}{
	"__proto__":   {},
	"constructor": {},
	"prototype":   {},
}

// jsonValue is the wire form of Value: exactly one field populated per Kind.
type jsonValue struct {
	Kind        string   `json:"kind"`
	String      string   `json:"string,omitempty"`
	Number      float64  `json:"number,omitempty"`
	Bool        bool     `json:"bool,omitempty"`
	StringArray []string `json:"string_array,omitempty"`
}

func toJSONValue(v Value) jsonValue {
	switch v.Kind {
	case KindString:
		return jsonValue{Kind: "string", String: v.StringVal}
	case KindNumber:
		return jsonValue{Kind: "number", Number: v.NumberVal}
	case KindBool:
		return jsonValue{Kind: "bool", Bool: v.BoolVal}
	case KindStringArray:
		return jsonValue{Kind: "string_array", StringArray: v.StringArray}
	default:
		return jsonValue{}
	}
}

func fromJSONValue(jv jsonValue) Value {
	switch jv.Kind {
	case "string":
		return String(jv.String)
	case "number":
		return Number(jv.Number)
	case "bool":
		return Bool(jv.Bool)
	case "string_array":
		return StringArray(jv.StringArray)
	default:
		return Value{}
	}
}

// Save writes the sidecar metadata file: a flat JSON object whose top-level
// keys are ids and values are {field_name: typed value} maps.
func (s *Store) Save(path string) error {
	if err := pathutil.Validate(path); err != nil {
		return err
	}

	s.mu.RLock()
	doc := make(map[string]map[string]jsonValue, len(s.records))
	for id, rec := range s.records {
		fields := make(map[string]jsonValue, len(rec))
		for keyID, v := range rec {
			fields[s.fields.Name(keyID)] = toJSONValue(v)
		}
		doc[id] = fields
	}
	s.mu.RUnlock()

	data, err := json.Marshal(doc)
	if err != nil {
		return coreerrors.InternalError("failed to marshal metadata sidecar", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return coreerrors.IOError("failed to write metadata sidecar", err)
	}
	return nil
}

// Load reads a sidecar metadata file. A missing file is non-fatal and
// leaves the store untouched (empty, if freshly constructed). Keys
// __proto__, constructor, and prototype are rejected as field names.
func (s *Store) Load(path string) error {
	if err := pathutil.Validate(path); err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return coreerrors.IOError("failed to read metadata sidecar", err)
	}

	var doc map[string]map[string]jsonValue
	if err := json.Unmarshal(data, &doc); err != nil {
		return coreerrors.CorruptError("metadata sidecar is corrupt", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, fields := range doc {
		rec := make(Record, len(fields))
		for name, jv := range fields {
			if _, forbidden := forbiddenKeys[name]; forbidden {
				return coreerrors.ValidationError("metadata sidecar contains a forbidden key: "+name, nil)
			}
			rec[s.fields.Intern(name)] = fromJSONValue(jv)
		}
		s.records[id] = rec
	}
	return nil
}
