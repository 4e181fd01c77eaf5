package node

import (
	"encoding/json"
	"fmt"
	"strconv"

	"clipflow/internal/engine"
)

// Canonical renders a value as the string used when joining. Strings are kept as is, numbers use
// their shortest form and composite values are encoded as JSON, whose object keys are sorted.
func Canonical(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case []byte:
		return string(t), nil
	case bool:
		return strconv.FormatBool(t), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), nil
	case json.Number:
		return t.String(), nil
	case fmt.Stringer:
		return t.String(), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", engine.NewNodeError(engine.CodeInvalidInput, "cannot serialise %T: %v", v, err)
	}
	return string(b), nil
}
