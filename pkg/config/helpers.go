package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/glorpus-work/urlcache/pkg/errutils"
)

// SetValue sets a configuration value by key
// Supported keys:
//   - cache_root: string - Directory objects are stored under
//   - index_backend: string - file or leveldb
//   - index_path: string - Index location, empty for the default
//   - default_port: int - Port dialed when the URL names none
//   - honor_url_port: bool - Whether a port in the URL is dialed
//   - dial_timeout, read_timeout: duration - e.g. 10s
//   - header_boundary: string - crlf or legacy
//   - max_header_bytes: int - Cap on the response head size
//   - hooks_dir: string - Directory with hook scripts
//   - log_level: string - Logging level (debug, info, warn, error)
//   - log_format: string - text or json
//
// The resulting configuration is validated.
func (c *Config) SetValue(key, value string) error {
	next := *c
	s := &next.Settings

	switch key {
	case "cache_root":
		s.CacheRoot = value
	case "index_backend":
		s.IndexBackend = value
	case "index_path":
		s.IndexPath = value
	case "default_port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return errutils.Wrapf(errutils.ErrInvalidPort, "%s: %s", key, value)
		}
		s.DefaultPort = port
	case "honor_url_port":
		boolVal, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w for %s: %s", errutils.ErrInvalidBoolValue, key, value)
		}
		s.HonorURLPort = &boolVal
	case "dial_timeout", "read_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return errutils.Wrapf(errutils.ErrConfigParse, "%s: %s", key, value)
		}
		if key == "dial_timeout" {
			s.DialTimeout = d
		} else {
			s.ReadTimeout = d
		}
	case "header_boundary":
		s.HeaderBoundary = value
	case "max_header_bytes":
		n, err := strconv.Atoi(value)
		if err != nil {
			return errutils.Wrapf(errutils.ErrHeaderLimitInvalid, "%s", value)
		}
		s.MaxHeaderBytes = n
	case "hooks_dir":
		s.HooksDir = value
	case "log_level":
		s.LogLevel = value
	case "log_format":
		s.LogFormat = value
	default:
		return fmt.Errorf("%w: %s", errutils.ErrUnknownConfigKey, key)
	}

	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

// GetValue returns the value for key as a string.
func (c *Config) GetValue(key string) (string, error) {
	values := c.ToMap()
	v, ok := values[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", errutils.ErrUnknownConfigKey, key)
	}
	return v, nil
}

// Keys returns the setting names accepted by GetValue and SetValue.
func Keys() []string {
	t := reflect.TypeOf(Settings{})
	keys := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		if key := yamlKey(t.Field(i)); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

// This is useful for displaying the configuration.
func (c *Config) ToMap() map[string]string {
	result := make(map[string]string)

	settingsValue := reflect.ValueOf(c.Settings)
	settingsType := settingsValue.Type()

	for i := 0; i < settingsValue.NumField(); i++ {
		key := yamlKey(settingsType.Field(i))
		if key == "" {
			continue
		}

		fieldValue := settingsValue.Field(i)
		var strValue string

		if d, ok := fieldValue.Interface().(time.Duration); ok {
			result[key] = d.String()
			continue
		}

		switch fieldValue.Kind() {
		case reflect.Bool:
			strValue = strconv.FormatBool(fieldValue.Bool())
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			strValue = strconv.FormatInt(fieldValue.Int(), 10)
		case reflect.Pointer:
			if fieldValue.IsNil() {
				strValue = ""
			} else {
				strValue = fmt.Sprintf("%v", fieldValue.Elem().Interface())
			}
		case reflect.String:
			strValue = fieldValue.String()
		default:
			strValue = fmt.Sprintf("%v", fieldValue.Interface())
		}

		result[key] = strValue
	}

	// unset means the default
	result["honor_url_port"] = strconv.FormatBool(c.HonorsURLPort())

	return result
}

// yamlKey handles yaml tags with options (e.g., "index_path,omitempty").
func yamlKey(field reflect.StructField) string {
	tag := field.Tag.Get("yaml")
	if tag == "" || tag == "-" {
		return ""
	}
	return strings.Split(tag, ",")[0]
}
