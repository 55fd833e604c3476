package feedback

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/goliatone/go-formsync/pkg/auth"
	"github.com/goliatone/go-formsync/pkg/client"
	"github.com/goliatone/go-formsync/pkg/model"
)

func newsSchema() model.EntitySchema {
	return model.EntitySchema{
		Entity: "news",
		Fields: []model.Field{
			{Name: "title", Kind: model.KindText},
			{Name: "category", WireName: "category_id", Kind: model.KindReference},
			{Name: "branches", Kind: model.KindSubrecords, Subrecords: &model.Subrecords{
				Policy: model.PolicyJSONList,
				Fields: []model.Field{{Name: "location", Kind: model.KindText}},
			}},
			{Name: "gallery_images", Kind: model.KindSubrecords, Subrecords: &model.Subrecords{
				Policy:       model.PolicyTrackDeletions,
				FileField:    "image",
				DeletedField: "deleted_gallery_images",
			}},
		},
	}
}

func TestMapErrorPayload(t *testing.T) {
	payload := map[string][]string{
		"title":                  {" This field is required. ", "This field is required."},
		"category_id":            {"Invalid pk \"9\" - object does not exist."},
		"branches.1.location":    {"This field is required."},
		"gallery_images.0.image": {"Upload a valid image."},
		"deleted_gallery_images": {"Invalid id."},
		"non_field_errors":       {"Only one main branch allowed."},
		"unknown_field":          {"Ignored by the form."},
		"empty":                  {"  "},
	}

	got := MapErrorPayload(newsSchema(), payload)
	wantFields := map[string][]string{
		"title":             {"This field is required."},
		"category":          {"Invalid pk \"9\" - object does not exist."},
		"branches.location": {"This field is required."},
		"gallery_images":    {"Upload a valid image.", "Invalid id."},
	}
	if diff := cmp.Diff(wantFields, got.Fields, sortStrings); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
	wantForm := []string{"Ignored by the form.", "Only one main branch allowed."}
	if diff := cmp.Diff(wantForm, got.Form, sortStrings); diff != "" {
		t.Fatalf("form mismatch (-want +got):\n%s", diff)
	}
}

func TestMapErrorPayloadEmpty(t *testing.T) {
	got := MapErrorPayload(newsSchema(), nil)
	if got.Fields != nil || got.Form != nil {
		t.Fatalf("expected empty mapping, got %+v", got)
	}
}

func TestFromClientErrorKeepsMessageVerbatim(t *testing.T) {
	err := fmt.Errorf("submit: %w", &client.Error{
		Status:  400,
		Message: "Slug already exists.",
		Fields:  map[string][]string{"title": {"Too long."}},
	})
	got := FromError(newsSchema(), err)
	want := Feedback{Error: "Slug already exists.", Fields: map[string][]string{"title": {"Too long."}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("feedback mismatch (-want +got):\n%s", diff)
	}
	if !got.Failed() || got.FieldError("title") != "Too long." {
		t.Fatalf("accessors disagree with feedback %+v", got)
	}
}

func TestFromErrorVariants(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"transport", &client.Error{Message: "connection refused"}, "Network error: connection refused"},
		{"logged out", auth.ErrNotLoggedIn, "You are not logged in."},
		{"expired", fmt.Errorf("wrap: %w", auth.ErrRefreshFailed), "Your session has expired. Please log in again."},
		{"other", errors.New("form: submission in flight"), "form: submission in flight"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FromError(newsSchema(), tc.err).Error; got != tc.want {
				t.Fatalf("Error = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestMergeFormErrors(t *testing.T) {
	got := MergeFormErrors([]string{"a", " b "}, "b", "", "c")
	if diff := cmp.Diff([]string{"a", "b", "c"}, got); diff != "" {
		t.Fatalf("merge mismatch (-want +got):\n%s", diff)
	}
}

var sortStrings = cmpopts.SortSlices(func(a, b string) bool { return a < b })
