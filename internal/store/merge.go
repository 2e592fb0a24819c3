package store

import (
	"encoding/json"
	"errors"
)

// DeepMerge returns a new object with patch applied over base. Keys whose
// values are objects on both sides merge recursively; everything else,
// arrays included, is replaced by the patch value.
func DeepMerge(base, patch map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, pv := range patch {
		bObj, bOK := out[k].(map[string]any)
		pObj, pOK := pv.(map[string]any)
		if bOK && pOK {
			out[k] = DeepMerge(bObj, pObj)
			continue
		}
		out[k] = pv
	}
	return out
}

// Decode converts a generic JSON object into a typed value.
func Decode(obj map[string]any, dst any) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

// toObject normalizes a patch into plain JSON objects so typed nested values
// merge the same way as decoded ones.
func toObject(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, errors.New("patch must be a JSON object")
	}
	return out, nil
}
