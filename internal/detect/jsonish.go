package detect

import "encoding/json"

// parseJSONLikeObject attempts a strict JSON-object parse of raw, used by
// the channel/tagged/bracketed formats whose argument blob is usually
// already valid JSON emitted by the model.
func parseJSONLikeObject(raw string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil, false
	}
	return obj, true
}
