package schema

import "github.com/goliatone/go-formsync/pkg/model"

// Field constructors used by the built-in catalog. They keep each entity
// declaration readable as a table of wire contracts.

func text(name string) model.Field {
	return model.Field{Name: name, Kind: model.KindText}
}

func required(field model.Field) model.Field {
	field.Required = true
	return field
}

func rich(name string) model.Field {
	return model.Field{Name: name, Kind: model.KindText, RichText: true}
}

func enum(name string, values ...string) model.Field {
	return model.Field{Name: name, Kind: model.KindText, Enum: values}
}

func integer(name string) model.Field {
	return model.Field{Name: name, Kind: model.KindInteger}
}

func number(name string) model.Field {
	return model.Field{Name: name, Kind: model.KindNumber}
}

func boolean(name string) model.Field {
	return model.Field{Name: name, Kind: model.KindBoolean}
}

func date(name string) model.Field {
	return model.Field{Name: name, Kind: model.KindDate}
}

// file declares an upload that is silently left alone when cleared: the
// endpoint only reads uploaded binaries.
func file(name string) model.Field {
	return model.Field{Name: name, Kind: model.KindFile, Removal: &model.Removal{Mode: model.RemovalOmit}}
}

// clearable declares an upload whose endpoint treats an empty value as
// "remove the stored file".
func clearable(name string) model.Field {
	return model.Field{Name: name, Kind: model.KindFile, Removal: &model.Removal{Mode: model.RemovalSentinel, Sentinel: ""}}
}

// ids declares a many-relation addressed by numeric id and sent as one JSON
// array string.
func ids(name, target string) model.Field {
	return model.Field{
		Name:         name,
		Kind:         model.KindRelation,
		Encoding:     model.EncodingJSON,
		Relationship: &model.Relationship{Kind: model.RelationshipHasMany, Target: target, Key: model.KeyID},
	}
}

// slugs declares a many-relation addressed by slug and sent as one multipart
// entry per slug.
func slugs(name, target string) model.Field {
	return model.Field{
		Name:         name,
		Kind:         model.KindRelation,
		Encoding:     model.EncodingRepeated,
		Relationship: &model.Relationship{Kind: model.RelationshipHasMany, Target: target, Key: model.KeySlug},
	}
}

// ref declares a single related entity sent by id under wire.
func ref(name, wire, target string) model.Field {
	return model.Field{
		Name:         name,
		WireName:     wire,
		Kind:         model.KindReference,
		Relationship: &model.Relationship{Kind: model.RelationshipBelongsTo, Target: target, Key: model.KeyID},
	}
}

// resend marks a field the update endpoint replaces with whatever the form
// carries, defaulting to empty when it is missing.
func resend(field model.Field) model.Field {
	field.Resend = true
	return field
}

func flattened(name, sourcePath string) model.Field {
	return model.Field{Name: name, Kind: model.KindText, SourcePath: sourcePath}
}

func gallery(policy model.SubrecordPolicy) model.Field {
	sub := &model.Subrecords{FileField: "image", Policy: policy, DeletedField: "deleted_gallery_images"}
	if policy == model.PolicyResendExisting {
		sub.ExistingField = "existing_gallery_images"
	}
	return model.Field{Name: "gallery_images", Kind: model.KindSubrecords, Subrecords: sub}
}

func branches() model.Field {
	return model.Field{
		Name: "branches",
		Kind: model.KindSubrecords,
		Subrecords: &model.Subrecords{
			Policy: model.PolicyJSONList,
			Fields: []model.Field{
				required(text("branch_name")),
				required(text("location")),
				text("phone"),
				text("email"),
			},
		},
	}
}
