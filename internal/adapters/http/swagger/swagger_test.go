package swagger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/smartystreets/goconvey/convey"
)

func TestSwaggerHandler(t *testing.T) {
	convey.Convey("Given a swagger handler", t, func() {
		ctx := context.Background()
		mux := http.NewServeMux()

		convey.Convey("When registering the swagger handler", func() {
			Register(ctx, mux)

			convey.Convey("Then it should handle /openapi.yaml route", func() {
				req := httptest.NewRequest("GET", "/openapi.yaml", http.NoBody)
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, req)

				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(w.Header().Get("Content-Type"), convey.ShouldEqual, "application/yaml; charset=utf-8")
				convey.So(w.Body.Len(), convey.ShouldBeGreaterThan, 0)
			})

			convey.Convey("And it should reject writes", func() {
				req := httptest.NewRequest("POST", "/openapi.yaml", http.NoBody)
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, req)

				convey.So(w.Code, convey.ShouldEqual, http.StatusNotFound)
			})
		})

		convey.Convey("When registering on a nil mux", func() {
			convey.So(func() { Register(ctx, nil) }, convey.ShouldPanic)
		})
	})
}

func TestOpenAPIDocument(t *testing.T) {
	convey.Convey("Given the embedded document", t, func() {
		doc, err := yaml.Parser().Unmarshal(OpenAPI)

		convey.Convey("Then it parses and lists every route", func() {
			convey.So(err, convey.ShouldBeNil)
			paths, ok := doc["paths"].(map[string]interface{})
			convey.So(ok, convey.ShouldBeTrue)
			for _, p := range []string{"/activities", "/activities/{id}", "/markers", "/resolve", "/changes", "/stats", "/readyz", "/healthz"} {
				convey.So(paths, convey.ShouldContainKey, p)
			}
		})
	})
}

func TestOpenAPIValidates(t *testing.T) {
	convey.Convey("Given the embedded document loaded as OpenAPI 3", t, func() {
		loader := &openapi3.Loader{IsExternalRefsAllowed: false}
		doc, err := loader.LoadFromData(OpenAPI)
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then it passes schema validation", func() {
			convey.So(doc.Validate(context.Background()), convey.ShouldBeNil)
		})

		convey.Convey("Then the change webhook documents the idempotency header", func() {
			op := doc.Paths.Find("/changes").Post
			convey.So(op, convey.ShouldNotBeNil)
			found := false
			for _, p := range op.Parameters {
				if p.Value != nil && p.Value.Name == "Idempotency-Key" && p.Value.In == openapi3.ParameterInHeader {
					found = true
				}
			}
			convey.So(found, convey.ShouldBeTrue)
		})
	})
}
