package action

import (
	"fmt"
	"strconv"

	"task-agent/internal/domain/entity"
)

// stringArg reads a string argument. Numbers and booleans produced by the
// model are accepted and formatted.
func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return "", fmt.Errorf("%w: %q is missing", entity.ErrInvalidArgument, key)
	}
	switch val := v.(type) {
	case string:
		return val, nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(val), nil
	case int:
		return strconv.Itoa(val), nil
	}
	return "", fmt.Errorf("%w: %q must be a string, got %T", entity.ErrInvalidArgument, key, v)
}

func optionalStringArg(args map[string]any, key, fallback string) (string, error) {
	if v, ok := args[key]; !ok || v == nil {
		return fallback, nil
	}
	return stringArg(args, key)
}
