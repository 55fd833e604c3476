package openapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formsync/pkg/model"
)

const partnerDocument = `
openapi: 3.0.0
info:
  title: Directory
  version: 1.0.0
paths:
  /partner/{slug}/update/:
    patch:
      x-formsync-entity: partner
      x-formsync-slug-source: name
      parameters:
        - name: slug
          in: path
          required: true
          schema:
            type: string
      requestBody:
        content:
          multipart/form-data:
            schema:
              type: object
              required: [name]
              properties:
                name:
                  type: string
                slug:
                  type: string
                about:
                  type: string
                  x-formsync:
                    richText: true
                verified:
                  type: boolean
                founded:
                  type: string
                  format: date
                logo:
                  type: string
                  format: binary
                  x-formsync:
                    removal: sentinel
                regions:
                  type: array
                  items:
                    type: string
                  x-formsync:
                    encoding: repeated
                    key: slug
                    target: district
                category_id:
                  type: integer
                  x-formsync:
                    kind: reference
                    name: category
                    target: partner-category
                internal_notes:
                  type: string
                  x-formsync:
                    ignore: true
                branches:
                  type: array
                  items:
                    type: object
                    properties:
                      id:
                        type: integer
                      branch_name:
                        type: string
                      phone:
                        type: string
                  x-formsync:
                    kind: subrecords
                    policy: json-list
      responses:
        "200":
          description: ok
  /partner/{slug}/:
    get:
      responses:
        "200":
          description: ok
`

func TestImportBuildsDeclarations(t *testing.T) {
	decls, err := Import(context.Background(), []byte(partnerDocument), Options{})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(decls) != 1 {
		t.Fatalf("expected one declaration, got %d", len(decls))
	}

	schema, err := model.NewBuilder().Build(decls[0])
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if schema.Resource != "partner" || schema.SlugSource != "name" {
		t.Fatalf("resource/slug source = %q/%q", schema.Resource, schema.SlugSource)
	}
	if schema.Endpoints.Create != "/partner/create/" {
		t.Fatalf("create endpoint = %q", schema.Endpoints.Create)
	}

	wantNames := []string{"about", "branches", "category", "founded", "logo", "name", "regions", "slug", "verified"}
	if diff := cmp.Diff(wantNames, schema.FieldNames()); diff != "" {
		t.Fatalf("field names mismatch (-want +got):\n%s", diff)
	}

	name, _ := schema.Field("name")
	if !name.Required {
		t.Errorf("name should be required")
	}
	about, _ := schema.Field("about")
	if !about.RichText {
		t.Errorf("about should be rich text")
	}
	founded, _ := schema.Field("founded")
	if founded.Kind != model.KindDate {
		t.Errorf("founded kind = %s", founded.Kind)
	}
	logo, _ := schema.Field("logo")
	if diff := cmp.Diff(&model.Removal{Mode: model.RemovalSentinel}, logo.Removal); diff != "" {
		t.Errorf("logo removal mismatch (-want +got):\n%s", diff)
	}
	regions, _ := schema.Field("regions")
	if regions.Encoding != model.EncodingRepeated || regions.RelationKeyOrDefault() != model.KeySlug {
		t.Errorf("regions = %+v", regions)
	}
	category, _ := schema.Field("category")
	if category.Kind != model.KindReference || category.Wire() != "category_id" {
		t.Errorf("category = %+v", category)
	}
	branches, _ := schema.Field("branches")
	wantBranchFields := []string{"branch_name", "phone"}
	var gotBranchFields []string
	for _, f := range branches.Subrecords.Fields {
		gotBranchFields = append(gotBranchFields, f.Name)
	}
	if diff := cmp.Diff(wantBranchFields, gotBranchFields); diff != "" {
		t.Errorf("branch fields mismatch (-want +got):\n%s", diff)
	}
}

func TestImportRequiresMultipartBody(t *testing.T) {
	const document = `{
  "openapi": "3.0.0",
  "info": {"title": "x", "version": "1"},
  "paths": {
    "/thing/{slug}/update/": {
      "patch": {
        "x-formsync-entity": "thing",
        "requestBody": {"content": {"application/json": {"schema": {"type": "object"}}}},
        "responses": {"200": {"description": "ok"}}
      }
    }
  }
}`
	_, err := Import(context.Background(), []byte(document), Options{})
	if !errors.Is(err, ErrNoMultipartBody) {
		t.Fatalf("expected ErrNoMultipartBody, got %v", err)
	}
}

func TestReadFSAndFetch(t *testing.T) {
	fsys := fstest.MapFS{"api/openapi.yaml": {Data: []byte(partnerDocument)}}
	data, err := ReadFS(context.Background(), fsys, "api/openapi.yaml")
	if err != nil {
		t.Fatalf("read fs: %v", err)
	}
	if string(data) != partnerDocument {
		t.Fatalf("unexpected document contents")
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/schema/" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(partnerDocument))
	}))
	defer server.Close()

	data, err = Fetch(context.Background(), server.Client(), server.URL+"/schema/", 0)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(data) != len(partnerDocument) {
		t.Fatalf("fetched %d bytes, want %d", len(data), len(partnerDocument))
	}

	if _, err := Fetch(context.Background(), server.Client(), server.URL+"/missing", 0); err == nil {
		t.Fatalf("expected error for non-2xx status")
	}
}
