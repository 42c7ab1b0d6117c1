// Package domain holds the core data model: environments, suites,
// steps and their nested collections, and runs.
package domain

import "time"

// ValueType controls how a variable or default header value is expanded
// at placeholder-resolution time.
type ValueType string

const (
	ValueTypeStatic       ValueType = "STATIC"
	ValueTypeVariable     ValueType = "VARIABLE"
	ValueTypeUUID         ValueType = "UUID"
	ValueTypeISOTimestamp ValueType = "ISO_TIMESTAMP"
)

// Variable is a named, typed value held by an Environment — used both
// for environment variables and default headers.
type Variable struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	ValueType ValueType `json:"valueType"`
	Secret    bool      `json:"secret"`
}

// Connector is a named, typed handle to an external system used by
// verifications. Config is opaque to the engine; drivers interpret it.
type Connector struct {
	Name   string            `json:"name"`
	Type   string            `json:"type"`
	Config map[string]string `json:"config"`
}

// File is an uploaded binary blob addressable by key from
// `${FILE:key}` placeholders in form-data fields.
type File struct {
	Key         string `json:"key"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"-"`
}

// Environment bundles variables, default headers, connectors and files
// shared across a suite run.
type Environment struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Variables     []Variable  `json:"variables"`
	DefaultHeaders []Variable `json:"defaultHeaders"`
	Connectors    []Connector `json:"connectors"`
	Files         []File      `json:"files"`
	DeletedAt     *time.Time  `json:"deletedAt,omitempty"`
}

// Variable looks up a variable by key, reporting whether it exists.
func (e *Environment) Variable(key string) (Variable, bool) {
	for _, v := range e.Variables {
		if v.Key == key {
			return v, true
		}
	}
	return Variable{}, false
}

// File looks up an uploaded file by key, reporting whether it exists.
func (e *Environment) File(key string) (File, bool) {
	for _, f := range e.Files {
		if f.Key == key {
			return f, true
		}
	}
	return File{}, false
}

// Connector looks up a connector by name, reporting whether it exists.
func (e *Environment) Connector(name string) (Connector, bool) {
	for _, c := range e.Connectors {
		if c.Name == name {
			return c, true
		}
	}
	return Connector{}, false
}
