package scraper

import (
	"fmt"
	"github.com/maxaizer/car-tracker/internal/domain/models"
	"maps"
	"net/url"
	"slices"
	"strconv"
)

// ToURLValues flattens search params into a query string. Lists become
// repeated keys and empty values are dropped.
func ToURLValues(params models.Params) (url.Values, error) {

	values := url.Values{}

	for _, key := range slices.Sorted(maps.Keys(params)) {
		switch v := params[key].(type) {
		case nil:
		case []any:
			for _, item := range v {
				text, err := scalarText(item)
				if err != nil {
					return nil, fmt.Errorf("param %q: %w", key, err)
				}
				values.Add(key, text)
			}
		case []string:
			for _, item := range v {
				values.Add(key, item)
			}
		default:
			text, err := scalarText(v)
			if err != nil {
				return nil, fmt.Errorf("param %q: %w", key, err)
			}
			if text != "" {
				values.Add(key, text)
			}
		}
	}

	return values, nil
}

func scalarText(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", value)
	}
}
