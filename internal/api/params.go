package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/starford/taxon/internal/formdata"
)

const maxBodyBytes = 1 << 20

// params holds the decoded arguments of one action call.
type params map[string]any

// decodeParams reads action arguments from the query string for GET and
// from the body otherwise. The body may be a JSON object, a form, or a JSON
// object posted as a form key ("{...}=1").
func decodeParams(w http.ResponseWriter, r *http.Request) (params, error) {
	if r.Method == http.MethodGet {
		return fromValues(r.URL.Query()), nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return params{}, nil
	}

	if body[0] == '{' {
		if p, err := decodeObject(body); err == nil {
			return p, nil
		}
		if raw, ok := bytes.CutSuffix(body, []byte("=1")); ok {
			return decodeObject(raw)
		}
	}

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/x-www-form-urlencoded" {
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, fmt.Errorf("parse form: %w", err)
		}
		// A url-encoded JSON key.
		if len(values) == 1 {
			for k := range values {
				if strings.HasPrefix(k, "{") {
					return decodeObject([]byte(k))
				}
			}
		}
		return fromValues(values), nil
	}
	return decodeObject(body)
}

func decodeObject(raw []byte) (params, error) {
	var p params
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("JSON Error: %w", err)
	}
	if p == nil {
		p = params{}
	}
	return p, nil
}

func fromValues(values url.Values) params {
	p := make(params, len(values))
	for k, vs := range values {
		if len(vs) == 1 {
			p[k] = vs[0]
			continue
		}
		list := make([]any, len(vs))
		for i, v := range vs {
			list[i] = v
		}
		p[k] = list
	}
	return p
}

func (p params) str(name string) string {
	switch v := p[name].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func (p params) integer(name string) (int, error) {
	switch v := p[name].(type) {
	case nil:
		return 0, nil
	case float64:
		if v >= 0 && v == float64(int(v)) {
			return int(v), nil
		}
	case string:
		if v == "" {
			return 0, nil
		}
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n, nil
		}
	}
	return 0, &formdata.ValidationError{Key: formdata.Scalar(name), Message: "Invalid integer"}
}

func (p params) boolean(name string) bool {
	switch v := p[name].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(v))
		return b
	default:
		return false
	}
}

// tagNames reads a tag list given as names, as objects with a name, or as a
// comma separated string. It returns nil when the parameter is absent.
func (p params) tagNames(name string) ([]string, error) {
	v, ok := p[name]
	if !ok || v == nil {
		return nil, nil
	}
	switch t := v.(type) {
	case string:
		return []string{t}, nil
	case []any:
		out := make([]string, 0, len(t))
		for i, item := range t {
			switch it := item.(type) {
			case string:
				out = append(out, it)
			case map[string]any:
				s, ok := it["name"].(string)
				if !ok || strings.TrimSpace(s) == "" {
					return nil, &formdata.ValidationError{Key: formdata.Path(name, i, "name"), Message: "Missing value"}
				}
				out = append(out, s)
			default:
				return nil, &formdata.ValidationError{Key: formdata.Scalar(name), Message: "Tags must be names or objects with a name"}
			}
		}
		return out, nil
	default:
		return nil, &formdata.ValidationError{Key: formdata.Scalar(name), Message: "Tags must be a list"}
	}
}
