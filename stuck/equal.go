package stuck

import "reflect"

// deepEqualVariant compares two same-tagged Action/Observation variants by
// their field values. Since variants carry no ids or timestamps (those live
// on the enclosing Event), a structural comparison is exactly "ignoring
// ids/timestamps" as spec §4.7 requires.
func deepEqualVariant(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
