package generation

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"localllm/pkg/types"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their wire names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// resolveConfig applies defaults and rejects values no runtime can honour:
// a non-positive token budget or a negative temperature.
func resolveConfig(cfg types.GenerationConfig) (types.GenerationConfig, error) {
	cfg = cfg.WithDefaults()
	if err := validate.Struct(cfg); err != nil {
		var ves validator.ValidationErrors
		if errors.As(err, &ves) && len(ves) > 0 {
			fe := ves[0]
			return cfg, &ValidationError{
				Field: fe.Field(),
				Err:   fmt.Errorf("failed %s%s constraint", fe.Tag(), paramSuffix(fe.Param())),
			}
		}
		return cfg, &ValidationError{Err: err}
	}
	return cfg, nil
}

func paramSuffix(p string) string {
	if p == "" {
		return ""
	}
	return "=" + p
}

// ConfigFromMap converts a loosely typed option map, as accepted by
// provider SDKs, into a GenerationConfig. Unknown keys are ignored and
// missing keys keep their defaults; a value of the wrong type is a
// ValidationError.
func ConfigFromMap(m map[string]any) (types.GenerationConfig, error) {
	var cfg types.GenerationConfig
	if len(m) == 0 {
		return cfg, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return cfg, &ValidationError{Err: err}
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		var ute *json.UnmarshalTypeError
		if errors.As(err, &ute) {
			return cfg, &ValidationError{Field: ute.Field, Err: fmt.Errorf("want %s, got %s", ute.Type, ute.Value)}
		}
		return cfg, &ValidationError{Err: err}
	}
	return cfg, nil
}
