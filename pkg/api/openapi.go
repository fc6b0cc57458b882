package api

import (
	_ "embed"
	"encoding/json"
	"net/http"

	"gopkg.in/yaml.v3"
)

//go:embed openapi.yaml
var openAPIYAML []byte

// GetOpenAPISpec returns the embedded OpenAPI document as YAML.
func GetOpenAPISpec() []byte {
	return openAPIYAML
}

// GetOpenAPISpecAsJSON returns the OpenAPI document converted to JSON.
func GetOpenAPISpecAsJSON() ([]byte, error) {
	var spec interface{}
	if err := yaml.Unmarshal(openAPIYAML, &spec); err != nil {
		return nil, err
	}
	return json.Marshal(spec)
}

// OpenAPIHandler serves the OpenAPI document, as JSON when the client asks
// for it and YAML otherwise.
func OpenAPIHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") == "application/json" {
			jsonSpec, err := GetOpenAPISpecAsJSON()
			if err != nil {
				Error(w, http.StatusInternalServerError, CodeInternal, "Failed to convert OpenAPI spec to JSON")
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write(jsonSpec)
			return
		}

		w.Header().Set("Content-Type", "application/yaml")
		w.Write(openAPIYAML)
	}
}
