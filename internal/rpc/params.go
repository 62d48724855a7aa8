package rpc

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// parseParams decodes req.Params into target. Params may be an object or a
// positional array; array elements bind to target's JSON fields in
// declaration order.
func parseParams(req *Request, target any) *Error {
	if req.Params == nil {
		return &Error{Code: CodeInvalidParams, Message: "params required"}
	}
	params := req.Params
	if arr, ok := params.([]any); ok {
		named, err := positional(target, arr)
		if err != nil {
			return invalidParams(err)
		}
		params = named
	}
	data, err := json.Marshal(params)
	if err != nil {
		return invalidParams(err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return invalidParams(err)
	}
	return nil
}

// parseOptionalParams is parseParams for methods whose params may be
// omitted.
func parseOptionalParams(req *Request, target any) *Error {
	if req.Params == nil {
		return nil
	}
	return parseParams(req, target)
}

func invalidParams(err error) *Error {
	return &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid params: %v", err)}
}

// fieldNames lists the JSON names of t's exported fields.
func fieldNames(t reflect.Type) []string {
	var names []string
	for i := range t.NumField() {
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

func positional(target any, arr []any) (map[string]any, error) {
	t := reflect.TypeOf(target)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("positional params not supported")
	}
	names := fieldNames(t)
	out := make(map[string]any, len(names))
	if len(arr) > 0 {
		if req, ok := arr[0].(map[string]any); ok {
			if err := bindRequest(out, names, req); err != nil {
				return nil, err
			}
			arr = arr[1:]
		}
	}
	free := make([]string, 0, len(names))
	for _, name := range names {
		if _, set := out[name]; !set {
			free = append(free, name)
		}
	}
	if len(arr) > len(free) {
		return nil, fmt.Errorf("got %d positional params, want at most %d", len(arr), len(free))
	}
	for i, v := range arr {
		out[free[i]] = v
	}
	return out, nil
}

// bindRequest copies the keys of a leading wallet request object into out.
// Keys that name no field are refused.
func bindRequest(out map[string]any, names []string, req map[string]any) error {
	known := make(map[string]bool, len(names))
	for _, name := range names {
		known[name] = true
	}
	for k, v := range req {
		if !known[k] {
			return fmt.Errorf("unknown wallet request field %q", k)
		}
		out[k] = v
	}
	return nil
}
