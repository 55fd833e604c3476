// Package model defines the entity schema every generic component of
// go-formsync consumes: the normalizer, the form state controller, the
// payload serializer and the API client. A schema lists each editable field
// with its kind (scalar, file, relation, reference or sub-record list) plus
// the wire contract of the update endpoint: the multipart key, how relation
// lists are encoded (one JSON string or repeated entries), whether a cleared
// file sends a removal sentinel, and which sub-record policy applies.
//
// Builders reside in internal/model but return the types defined here.
package model
