// Package tools implements the tool registry and dispatch logic (spec
// component C3): argument decode, invocation, result encode, and the
// single/sequential/parallel dispatch modes a graph's tool-execute nodes
// use.
package tools

import (
	"bytes"
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// JSONCodec serializes and deserializes strongly typed values to and from
// JSON. Generated or hand-written tool registrations supply one per
// argument/result type so the registry never needs reflection at execution
// time (per the design notes' guidance against runtime reflection).
type JSONCodec[T any] struct {
	ToJSON   func(T) ([]byte, error)
	FromJSON func([]byte) (T, error)
}

// TypeSpec describes the payload or result schema for a tool: a reified
// type token (name + JSON schema) plus the codec used to move values in and
// out of JSON at the registry boundary.
type TypeSpec struct {
	// Name is the declared type's identifier. The registry and dispatcher
	// carry it but do not read it.
	Name string
	// Schema is the compiled JSON schema used to validate values of this
	// type before Decode hands them to a tool's Invoke function.
	Schema *jsonschema.Schema
	// Codec serializes/deserializes values of this type.
	Codec JSONCodec[any]
}

// CompileSchema parses and compiles a JSON schema document (as produced by
// codegen or hand-authored) for use in a TypeSpec. Returns an error if the
// document is not valid JSON schema.
func CompileSchema(name string, raw []byte) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	resource := "mem://" + name + ".json"
	if err := compiler.AddResource(resource, doc); err != nil {
		return nil, err
	}
	return compiler.Compile(resource)
}

// Validate checks raw JSON against the TypeSpec's schema, if one is set. A
// nil Schema always validates (useful for free-form payloads).
func (t TypeSpec) Validate(raw []byte) error {
	if t.Schema == nil {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return t.Schema.Validate(v)
}

// Descriptor describes a tool for the planner/LLM layer: name, human
// description, and parameter declarations (including composite anyOf/null
// variants, carried opaquely in ArgSchema).
type Descriptor struct {
	Name        string
	Description string
	ArgSchema   *jsonschema.Schema
}

// ID is the strong type for fully qualified tool identifiers
// (e.g., "toolset.tool_name"), avoiding accidental mixing with free-form
// strings in maps and APIs.
type ID string
