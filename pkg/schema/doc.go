// Package schema holds the entity catalog: the built-in declarations for
// every directory entity the admin edits, plus loaders for additional
// declarations kept in JSON/YAML files. A Registry resolves entity names to
// built, validated schemas.
package schema
