package api

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
)

const (
	maxBodyBytes  = 1 << 20
	maxFormMemory = 1 << 20
)

// readBody flattens a JSON object or form body into string values.
// JSON scalars become their string form and null counts as absent.
// Arrays, objects and unreadable bodies yield no values.
func readBody(w http.ResponseWriter, r *http.Request) map[string]string {
	out := make(map[string]string)
	if r.Body == nil {
		return out
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded":
		// http.Request.ParseForm ignores DELETE bodies, so parse directly.
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return out
		}
		values, err := url.ParseQuery(string(data))
		if err != nil {
			return out
		}
		return firstValues(values)
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxFormMemory); err != nil {
			return out
		}
		return firstValues(r.MultipartForm.Value)
	}

	var raw map[string]any
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return out
	}
	for key, v := range raw {
		if s, ok := scalarString(v); ok {
			out[key] = s
		}
	}
	return out
}

func firstValues(values map[string][]string) map[string]string {
	out := make(map[string]string, len(values))
	for key, vs := range values {
		if len(vs) > 0 {
			out[key] = vs[0]
		}
	}
	return out
}

func scalarString(v any) (string, bool) {
	switch v := v.(type) {
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	case json.Number:
		return v.String(), true
	}
	return "", false
}
