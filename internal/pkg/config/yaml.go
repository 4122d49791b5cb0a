package config

import (
	"fmt"
	"strings"

	"github.com/ardanlabs/conf"
	"gopkg.in/yaml.v3"
)

// yamlSource feeds a yaml document into conf. Nested keys are joined the way
// conf builds flag names, so
//
//	db:
//	  lock_timeout: 3s
//
// sets the same field as --db-lock-timeout.
type yamlSource struct {
	m map[string]string
}

func newYAMLSource(b []byte) (*yamlSource, error) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, err
	}

	src := yamlSource{m: map[string]string{}}
	src.flatten("", doc)

	return &src, nil
}

// Source implements conf.Sourcer.
func (y *yamlSource) Source(fld conf.Field) (string, bool) {
	k := strings.ToLower(strings.Join(fld.FlagKey, "-"))
	v, ok := y.m[k]
	return v, ok
}

func (y *yamlSource) flatten(prefix string, v interface{}) {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, inner := range t {
			key := strings.ToLower(strings.ReplaceAll(k, "_", "-"))
			if prefix != "" {
				key = prefix + "-" + key
			}
			y.flatten(key, inner)
		}
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, fmt.Sprint(item))
		}
		y.m[prefix] = strings.Join(parts, ";")
	case nil:
	default:
		y.m[prefix] = fmt.Sprint(t)
	}
}
