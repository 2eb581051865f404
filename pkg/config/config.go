package config

import (
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config mirrors a configuration struct field by field. Precedence, highest
// first: environment, user file, embedded default yaml, global section,
// `default` tag.
type Config struct {
	Ptr     reflect.Value // the field being configured
	Env     any
	File    any
	Global  *Config
	Default any

	name     string // lower case
	propsMap map[string]*Config
	props    []*Config
	tag      reflect.StructTag
}

var durationType = reflect.TypeOf(time.Duration(0))

func (config *Config) Get(key string) (v *Config) {
	if config.propsMap == nil {
		config.propsMap = make(map[string]*Config)
	}
	if v, ok := config.propsMap[key]; ok {
		return v
	}
	v = &Config{
		name: key,
	}
	config.propsMap[key] = v
	config.props = append(config.props, v)
	return v
}

func (config *Config) Has(key string) (ok bool) {
	if config.propsMap == nil {
		return false
	}
	_, ok = config.propsMap[strings.ToLower(key)]
	return ok
}

func (config *Config) GetValue() any {
	return config.Ptr.Interface()
}

// Parse reads `default` tags and environment variables. prefix names the
// environment variable, fields append their upper case name to it.
func (config *Config) Parse(s any, prefix ...string) {
	var t reflect.Type
	var v reflect.Value
	if vv, ok := s.(reflect.Value); ok {
		t, v = vv.Type(), vv
	} else {
		t, v = reflect.TypeOf(s), reflect.ValueOf(s)
	}
	if t.Kind() == reflect.Pointer {
		t, v = t.Elem(), v.Elem()
	}

	config.Ptr = v
	config.Default = v.Interface()

	if l := len(prefix); l > 0 {
		name := strings.ToLower(prefix[l-1])
		if tag := config.tag.Get("default"); tag != "" {
			v.Set(config.assign(name, tag))
			config.Default = v.Interface()
		}
		if envValue := os.Getenv(strings.Join(prefix, "_")); envValue != "" {
			v.Set(config.assign(name, envValue))
			config.Env = v.Interface()
		}
	}

	if t.Kind() == reflect.Struct {
		for i, j := 0, t.NumField(); i < j; i++ {
			ft, fv := t.Field(i), v.Field(i)

			if !ft.IsExported() {
				continue
			}
			name := strings.ToLower(ft.Name)
			if name == "plugin" {
				continue
			}
			if tag := ft.Tag.Get("yaml"); tag != "" {
				if tag == "-" {
					continue
				}
				name, _, _ = strings.Cut(tag, ",")
			}
			if ft.Anonymous && ft.Type.Kind() == reflect.Struct {
				// promoted fields live at this level
				config.Parse(fv, prefix...)
				config.Ptr = v
				continue
			}
			prop := config.Get(name)
			prop.tag = ft.Tag
			prop.Parse(fv, append(prefix, strings.ToUpper(ft.Name))...)
		}
	}
}

// ParseGlobal takes values from the matching global section.
func (config *Config) ParseGlobal(g *Config) {
	config.Global = g
	if config.propsMap != nil {
		for k, v := range config.propsMap {
			if g.Has(k) {
				v.ParseGlobal(g.Get(k))
			}
		}
	} else if config.Env == nil {
		config.Ptr.Set(g.Ptr)
	}
}

// ParseDefaultYaml applies the defaults a plugin embeds as yaml.
func (config *Config) ParseDefaultYaml(defaultYaml map[string]any) {
	if defaultYaml == nil {
		return
	}
	for k, v := range defaultYaml {
		if k = strings.ToLower(k); config.Has(k) {
			if prop := config.Get(k); prop.props != nil {
				if m, ok := v.(map[string]any); ok {
					prop.ParseDefaultYaml(m)
				}
			} else {
				dv := prop.assign(k, v)
				prop.Default = dv.Interface()
				if prop.Env == nil {
					prop.Ptr.Set(dv)
				}
			}
		}
	}
}

// ParseUserFile applies the user's configuration file.
func (config *Config) ParseUserFile(conf map[string]any) {
	if conf == nil {
		return
	}
	config.File = conf
	for k, v := range conf {
		if k = strings.ToLower(k); config.Has(k) {
			if prop := config.Get(k); prop.props != nil {
				if m, ok := v.(map[string]any); ok {
					prop.ParseUserFile(m)
				}
			} else {
				fv := prop.assign(k, v)
				prop.File = fv.Interface()
				if prop.Env == nil {
					prop.Ptr.Set(fv)
				}
			}
		}
	}
}

// GetMap returns the effective values keyed like the configuration file.
func (config *Config) GetMap() map[string]any {
	m := make(map[string]any)
	for k, v := range config.propsMap {
		if v.props != nil {
			if vv := v.GetMap(); vv != nil {
				m[k] = vv
			}
		} else if v.GetValue() != nil {
			m[k] = v.GetValue()
		}
	}
	if len(m) > 0 {
		return m
	}
	return nil
}

var regexPureNumber = regexp.MustCompile(`^\d+$`)

func (config *Config) assign(k string, v any) (target reflect.Value) {
	ft := config.Ptr.Type()

	source := reflect.ValueOf(v)

	switch ft {
	case durationType:
		target = reflect.New(ft).Elem()
		if source.Type() == durationType {
			target.Set(source)
		} else if !source.IsValid() || source.IsZero() {
			target.SetInt(0)
		} else {
			timeStr := fmt.Sprint(v)
			if d, err := time.ParseDuration(timeStr); err == nil && !regexPureNumber.MatchString(timeStr) {
				target.SetInt(int64(d))
			} else {
				slog.Error("invalid duration value, add a unit (ms,s,m,h)", "key", k, "value", v)
			}
		}
	default:
		tmpStruct := reflect.StructOf([]reflect.StructField{
			{
				Name: strings.ToUpper(k),
				Type: ft,
			},
		})
		tmpValue := reflect.New(tmpStruct)
		if v != nil {
			var out []byte
			if vv, ok := v.(string); ok {
				out = []byte(fmt.Sprintf("%s: %s", k, vv))
			} else {
				out, _ = yaml.Marshal(map[string]any{k: v})
			}
			_ = yaml.Unmarshal(out, tmpValue.Interface())
		}
		target = tmpValue.Elem().Field(0)
	}
	return
}

// LoadFile reads a yaml configuration file into a generic map.
func LoadFile(path string) (conf map[string]any, err error) {
	if path == "" {
		return nil, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	err = yaml.Unmarshal(content, &conf)
	return
}

// Parse fills target from its defaults, the environment under prefix and conf.
func Parse(target any, prefix string, conf map[string]any) *Config {
	var c Config
	c.Parse(target, prefix)
	c.ParseUserFile(conf)
	return &c
}
