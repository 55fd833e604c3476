package normalize

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formsync/pkg/form"
	"github.com/goliatone/go-formsync/pkg/model"
)

func consultancySchema(t *testing.T) model.EntitySchema {
	t.Helper()
	return model.NewBuilder().MustBuild(model.EntitySchema{
		Entity: "consultancy",
		Fields: []model.Field{
			{Name: "name"},
			{Name: "website"},
			{Name: "establishment_date", Kind: model.KindDate},
			{Name: "priority", Kind: model.KindInteger},
			{Name: "latitude", Kind: model.KindNumber},
			{Name: "moe_certified", Kind: model.KindBoolean},
			{Name: "logo", Kind: model.KindFile},
			{Name: "brochure", Kind: model.KindFile},
			{Name: "districts", Kind: model.KindRelation},
			{Name: "partner_universities", Kind: model.KindRelation},
			{Name: "gallery_images", Kind: model.KindSubrecords, Subrecords: &model.Subrecords{
				FileField: "image",
				Policy:    model.PolicyTrackDeletions,
			}},
			{Name: "branches", Kind: model.KindSubrecords, Subrecords: &model.Subrecords{
				Policy: model.PolicyJSONList,
				Fields: []model.Field{{Name: "branch_name"}, {Name: "phone"}},
			}},
		},
	})
}

func TestEntityNormalizesNestedRelations(t *testing.T) {
	payload, err := Decode([]byte(`{
		"id": 7,
		"name": "Global Ed",
		"website": null,
		"priority": 3,
		"latitude": 27.7,
		"moe_certified": null,
		"logo": "https://cdn.example.com/logo.png",
		"brochure": null,
		"districts": [{"id": 1, "name": "Kathmandu"}, {"id": 3, "name": "Lalitpur"}],
		"gallery_images": [
			{"id": 11, "image": "https://cdn.example.com/g11.png"},
			"https://cdn.example.com/legacy.png"
		],
		"branches": [{"id": 5, "branch_name": "Pokhara", "phone": null}]
	}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	got := Entity(consultancySchema(t), payload)
	want := form.Values{
		"name":                 "Global Ed",
		"website":              "",
		"establishment_date":   "",
		"priority":             int64(3),
		"latitude":             27.7,
		"moe_certified":        false,
		"logo":                 "https://cdn.example.com/logo.png",
		"brochure":             nil,
		"districts":            []any{int64(1), int64(3)},
		"partner_universities": []any{},
		"gallery_images": []form.Subrecord{
			{ID: "11", File: "https://cdn.example.com/g11.png"},
			{ID: "https://cdn.example.com/legacy.png", File: "https://cdn.example.com/legacy.png"},
		},
		"branches": []form.Subrecord{
			{ID: "5", Fields: map[string]any{"branch_name": "Pokhara", "phone": ""}},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("normalized mismatch (-want +got):\n%s", diff)
	}
}

func TestEntityToleratesMalformedOptionalData(t *testing.T) {
	payload := map[string]any{
		"priority":      "not a number",
		"latitude":      map[string]any{"oops": true},
		"districts":     "1,2",
		"moe_certified": "true",
		"logo":          42,
		"gallery_images": []any{
			map[string]any{"image": "https://cdn.example.com/no-id.png"},
			7,
		},
	}
	got := Entity(consultancySchema(t), payload)

	if got["priority"] != "" || got["latitude"] != "" {
		t.Fatalf("bad numbers must normalize to empty: %#v %#v", got["priority"], got["latitude"])
	}
	if diff := cmp.Diff([]any{}, got["districts"]); diff != "" {
		t.Fatalf("districts mismatch (-want +got):\n%s", diff)
	}
	if got["moe_certified"] != false || got["logo"] != nil {
		t.Fatalf("unexpected values: %#v %#v", got["moe_certified"], got["logo"])
	}
	if diff := cmp.Diff([]form.Subrecord{}, got["gallery_images"]); diff != "" {
		t.Fatalf("gallery mismatch (-want +got):\n%s", diff)
	}
}

func TestEntitySlugRelationsAndReferences(t *testing.T) {
	schema := model.NewBuilder().MustBuild(model.EntitySchema{
		Entity: "event",
		Fields: []model.Field{
			{Name: "targeted_destinations", Kind: model.KindRelation, Encoding: model.EncodingRepeated,
				Relationship: &model.Relationship{Key: model.KeySlug}},
			{Name: "organizer_slug", SourcePath: "organizer.slug"},
			{Name: "organizer_type", SourcePath: "organizer.type"},
			{Name: "category", WireName: "category_id", Kind: model.KindReference},
			{Name: "price", Kind: model.KindNumber},
		},
	})
	payload, err := Decode([]byte(`{
		"targeted_destinations": [{"id": 1, "slug": "australia"}, {"id": 2, "slug": "canada"}, {"id": 3}],
		"organizer": {"slug": "global-ed", "type": "consultancy"},
		"category": {"id": 4, "name": "Visa"},
		"price": "1500.00"
	}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	got := Entity(schema, payload)
	want := form.Values{
		"targeted_destinations": []any{"australia", "canada", ""},
		"organizer_slug":        "global-ed",
		"organizer_type":        "consultancy",
		"category":              int64(4),
		"price":                 1500.0,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("normalized mismatch (-want +got):\n%s", diff)
	}
}

func TestEntityKeepsUnkeyedRelationItems(t *testing.T) {
	payload, err := Decode([]byte(`{"districts": [{"id": 1}, {"name": "Unknown"}, {"id": "x"}, 4]}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := Entity(consultancySchema(t), payload)
	if diff := cmp.Diff([]any{int64(1), "", "x", int64(4)}, got["districts"]); diff != "" {
		t.Fatalf("districts mismatch (-want +got):\n%s", diff)
	}
}

func TestEntityMissingRelationsBecomeEmptyLists(t *testing.T) {
	got := Entity(consultancySchema(t), map[string]any{})
	if diff := cmp.Diff([]any{}, got["districts"]); diff != "" {
		t.Fatalf("districts mismatch (-want +got):\n%s", diff)
	}
	if got["logo"] != nil {
		t.Fatalf("missing file should be nil")
	}
}

func TestDecodeKeepsLargeIDs(t *testing.T) {
	payload, err := Decode([]byte(`{"priority": 9007199254740993}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	schema := model.NewBuilder().MustBuild(model.EntitySchema{
		Entity: "x",
		Fields: []model.Field{{Name: "priority", Kind: model.KindInteger}},
	})
	got := Entity(schema, payload)
	if got["priority"] != int64(9007199254740993) {
		t.Fatalf("precision lost: %#v", got["priority"])
	}
	if _, err := Decode([]byte(`[`)); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestPresentOnlyCarriesReturnedFields(t *testing.T) {
	schema := consultancySchema(t)
	got := Present(schema, map[string]any{
		"name":      "Global Ed",
		"districts": []any{map[string]any{"id": float64(4)}},
		"extra":     "ignored",
	})
	want := form.Values{"name": "Global Ed", "districts": []any{int64(4)}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("present mismatch (-want +got):\n%s", diff)
	}
}
