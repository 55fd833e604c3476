// Package openapi imports entity schemas from an OpenAPI 3 document. Each
// PATCH operation tagged with `x-formsync-entity` contributes one schema,
// derived from its multipart/form-data request body. Properties carry their
// wire contract under the `x-formsync` extension:
//
//	x-formsync:
//	  kind: relation | reference | subrecords
//	  encoding: json | repeated
//	  key: id | slug
//	  target: destination
//	  removal: sentinel
//	  sentinel: ""
//	  richText: true
//	  policy: track-deletions
//	  fileField: image
//	  deletedField: deleted_gallery_images
//	  existingField: existing_gallery_images
package openapi
