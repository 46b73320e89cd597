package event

// JSONValue is the sum type `{null, bool, number, string, array, object}`
// that crosses the delegate boundary as `inputs`/`outputs`. It is simply
// `any`, decoded by `encoding/json` into one of `nil`, `bool`, `float64`,
// `string`, `[]any`, `map[string]any` — callers type-switch as needed.
type JSONValue = any

// JSONObject is a string-keyed map of JSONValue, the shape of `inputs` and
// `outputs` on delegate and finish/reject actions.
type JSONObject = map[string]JSONValue
