/*
Package schema defines the core types for declarative data definitions.

A definition file declares one of three things: a model (fields, rules,
indexes), a custom type (a return shape), or a custom operation (a named
query or mutation routed to an external handler).

# Models

A minimal model definition in YAML:

	model: post

	fields:
	  title:     { type: string, required: true }
	  body:      { type: string }
	  published: { type: bool, default: false }
	  category:  { type: enum, values: [news, opinion, howto] }

	rules:
	  - allow: owner
	  - allow: authenticated
	    operations: [read]
	    when: { field: published, equals: true }

	indexes:
	  - { name: by_category, partition_key: category, sort_key: created_at }

Every record carries the system fields id, owner, created_at, and
updated_at in addition to the declared schema. Rules combine by logical
OR: each matching rule is independently sufficient, and an empty rule
set denies all access.

# Custom operations

Operations declare an argument schema, a return type (a model, a custom
type, or an array of either), a handler reference, and their own rules:

	operation: search_posts
	kind: query
	arguments:
	  - { name: term, type: string, required: true }
	  - { name: limit, type: int, default: 20 }
	returns: { name: post, array: true }
	handler: search.posts
	rules:
	  - allow: authenticated

The handler itself is registered by the host program; the engine
validates arguments and authorizes before the handler ever runs.

# Parsing

Load definitions from YAML:

	defs, err := schema.ParseFile("schemas/post.yaml")
	defs, err := schema.ParseDir("schemas/")

Each definition is validated in isolation on parse. Cross-definition
checks (duplicate names, unresolved type references) happen when the
registry is built.
*/
package schema
