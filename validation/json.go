package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"reflect"
	"strings"
)

// DecodeJSON decodes a request body into v. An empty body leaves v untouched
// so that its own validation reports the missing fields. Malformed input,
// including an explicit null for one of v's fields, is reported as Errors.
func DecodeJSON(r io.Reader, v interface{}) error {
	body, err := io.ReadAll(r)
	if err != nil {
		return Errors{"body": "must be a valid JSON object"}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	if err := json.Unmarshal(body, v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return Errors{typeErr.Field: "must be a " + typeErr.Type.String()}
		}
		return Errors{"body": "must be a valid JSON object"}
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return Errors{"body": "must be a valid JSON object"}
	}

	errs := Errors{}
	for _, name := range jsonFields(v) {
		if value, ok := raw[name]; ok && string(bytes.TrimSpace(value)) == "null" {
			errs[name] = "must not be null"
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// jsonFields lists the JSON names of the exported fields of the struct v
// points to.
func jsonFields(v interface{}) []string {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}

	var names []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			continue
		case "":
			name = f.Name
		}
		names = append(names, name)
	}
	return names
}
