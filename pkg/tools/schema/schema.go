// Package schema derives tool input schemas from Go structs so tool
// declarations cannot drift from the types their handlers decode into.
package schema

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// For returns the JSON Schema of T with every definition inlined. Fields
// without omitempty are required; descriptions come from the jsonschema tag
// (e.g. `jsonschema:"description=Company names"`). Commas separate tag
// options, so descriptions must not contain them.
func For[T any]() json.RawMessage {
	r := &jsonschema.Reflector{
		Anonymous:      true,
		DoNotReference: true,
		ExpandedStruct: true,
	}

	var v T
	s := r.Reflect(&v)
	s.Version = ""

	data, err := json.Marshal(s)
	if err != nil {
		// Reflected schemas are plain maps and slices; marshalling cannot fail.
		panic(err)
	}

	return data
}
