package runner

import (
	"encoding/json"
	"fmt"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"go-ml.dev/pkg/iokit"
	"go-ml.dev/pkg/zorros/zorros"
	"io"
	"io/ioutil"
	"math"
	"math/big"
	"path/filepath"
	"strings"
)

/*
RunConfig is an immutable set of scalar run parameters
values are int64, float64, string or bool
*/
type RunConfig struct {
	values map[string]interface{}
}

/*
NewRunConfig copies scalar values into new config, ints are widened to int64
*/
func NewRunConfig(m map[string]interface{}) RunConfig {
	c := RunConfig{values: make(map[string]interface{}, len(m))}
	for k, v := range m {
		switch x := v.(type) {
		case int:
			c.values[k] = int64(x)
		case int32:
			c.values[k] = int64(x)
		case float32:
			c.values[k] = float64(x)
		default:
			c.values[k] = v
		}
	}
	return c
}

/*
LoadConfig reads json or hcl config file selected by extension
*/
func LoadConfig(path string) (RunConfig, error) {
	rd, err := iokit.File(path).Open()
	if err != nil {
		return RunConfig{}, &ConfigError{Err: zorros.Trace(err)}
	}
	defer rd.Close()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ParseJSON(rd)
	case ".hcl":
		src, err := ioutil.ReadAll(rd)
		if err != nil {
			return RunConfig{}, &ConfigError{Err: zorros.Trace(err)}
		}
		return ParseHCL(src, path)
	}
	return RunConfig{}, &ConfigError{Err: zorros.Errorf("unsupported config file `%v`, expected .json or .hcl", path)}
}

/*
ParseJSON decodes json object keeping integers distinct from floats
*/
func ParseJSON(rd io.Reader) (RunConfig, error) {
	dec := json.NewDecoder(rd)
	dec.UseNumber()
	m := map[string]interface{}{}
	if err := dec.Decode(&m); err != nil {
		return RunConfig{}, &ConfigError{Err: zorros.Wrapf(err, "malformed json config: %v", err.Error())}
	}
	for k, v := range m {
		if n, ok := v.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				m[k] = i
			} else if f, err := n.Float64(); err == nil {
				m[k] = f
			} else {
				return RunConfig{}, &ConfigError{k, zorros.Trace(err)}
			}
		}
	}
	return RunConfig{values: m}, nil
}

/*
ParseHCL decodes top level attributes of hcl config
*/
func ParseHCL(src []byte, filename string) (RunConfig, error) {
	f, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return RunConfig{}, &ConfigError{Err: diags}
	}
	attrs, diags := f.Body.JustAttributes()
	if diags.HasErrors() {
		return RunConfig{}, &ConfigError{Err: diags}
	}
	m := map[string]interface{}{}
	for name, attr := range attrs {
		v, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return RunConfig{}, &ConfigError{name, diags}
		}
		if v.IsNull() {
			continue
		}
		if !v.IsKnown() {
			return RunConfig{}, &ConfigError{name, zorros.Errorf("value is unknown")}
		}
		switch v.Type() {
		case cty.String:
			m[name] = v.AsString()
		case cty.Bool:
			m[name] = v.True()
		case cty.Number:
			bf := v.AsBigFloat()
			if i, acc := bf.Int64(); bf.IsInt() && acc == big.Exact {
				m[name] = i
			} else {
				x, _ := bf.Float64()
				m[name] = x
			}
		default:
			return RunConfig{}, &ConfigError{name, zorros.Errorf("expected scalar value, got %v", v.Type().FriendlyName())}
		}
	}
	return RunConfig{values: m}, nil
}

/*
Has returns true if the key is set
*/
func (c RunConfig) Has(key string) bool {
	_, ok := c.values[key]
	return ok
}

/*
With returns new config with the key set to value, the original config is unchanged
*/
func (c RunConfig) With(key string, value interface{}) RunConfig {
	m := make(map[string]interface{}, len(c.values)+1)
	for k, v := range c.values {
		m[k] = v
	}
	m[key] = value
	return NewRunConfig(m)
}

/*
Keys returns all configured keys
*/
func (c RunConfig) Keys() []string {
	r := make([]string, 0, len(c.values))
	for k := range c.values {
		r = append(r, k)
	}
	return r
}

func (c RunConfig) Int(key string, dflt int) (int, error) {
	v, ok := c.values[key]
	if !ok {
		return dflt, nil
	}
	switch x := v.(type) {
	case int64:
		return int(x), nil
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return int(x), nil
		}
	}
	return dflt, &ConfigError{key, zorros.Errorf("expected integer, got %v", describe(v))}
}

func (c RunConfig) Float(key string, dflt float64) (float64, error) {
	v, ok := c.values[key]
	if !ok {
		return dflt, nil
	}
	switch x := v.(type) {
	case int64:
		return float64(x), nil
	case float64:
		return x, nil
	}
	return dflt, &ConfigError{key, zorros.Errorf("expected number, got %v", describe(v))}
}

func (c RunConfig) Bool(key string, dflt bool) (bool, error) {
	v, ok := c.values[key]
	if !ok {
		return dflt, nil
	}
	if x, ok := v.(bool); ok {
		return x, nil
	}
	return dflt, &ConfigError{key, zorros.Errorf("expected boolean, got %v", describe(v))}
}

func (c RunConfig) String(key string, dflt string) (string, error) {
	v, ok := c.values[key]
	if !ok {
		return dflt, nil
	}
	if x, ok := v.(string); ok {
		return x, nil
	}
	return dflt, &ConfigError{key, zorros.Errorf("expected string, got %v", describe(v))}
}

func describe(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case int64, float64:
		return "number"
	case string:
		return "string"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}
