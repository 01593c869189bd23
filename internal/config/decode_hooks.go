package config

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// StringToIntSliceHookFunc decodes "[5,10,20]" or "5,10,20" into []int.
func StringToIntSliceHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf([]int{}) {
			return data, nil
		}

		raw := strings.TrimSpace(data.(string))
		if raw == "" {
			return []int{}, nil
		}

		if strings.HasPrefix(raw, "[") {
			var out []int
			if err := json.Unmarshal([]byte(raw), &out); err != nil {
				return nil, fmt.Errorf("invalid integer list %q: %w", raw, err)
			}
			return out, nil
		}

		parts := strings.Split(raw, ",")
		out := make([]int, 0, len(parts))
		for _, p := range parts {
			n, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil {
				return nil, fmt.Errorf("invalid integer list %q: %w", raw, err)
			}
			out = append(out, n)
		}
		return out, nil
	}
}
