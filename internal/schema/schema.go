// Package schema validates API response bodies against the JSON Schemas of
// the expected result types before they are decoded.
package schema

import (
	"bytes"
	"embed"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Name identifies an embedded schema.
type Name string

const (
	// Detail is the schema of a single trace with observations and scores.
	Detail Name = "detail.json"
	// Page is the schema of one page of a trace listing.
	Page Name = "page.json"
)

//go:embed detail.json page.json
var files embed.FS

var compiled = sync.OnceValues(compileAll)

func compileAll() (map[Name]*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()

	names := []Name{Detail, Page}
	for _, name := range names {
		raw, err := files.ReadFile(string(name))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read embedded schema", goerr.V("name", name))
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to parse embedded schema", goerr.V("name", name))
		}
		if err := c.AddResource(string(name), doc); err != nil {
			return nil, goerr.Wrap(err, "failed to add schema resource", goerr.V("name", name))
		}
	}

	schemas := make(map[Name]*jsonschema.Schema, len(names))
	for _, name := range names {
		sch, err := c.Compile(string(name))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to compile schema", goerr.V("name", name))
		}
		schemas[name] = sch
	}
	return schemas, nil
}

// Validate checks that data is a JSON document conforming to the named schema.
func Validate(name Name, data []byte) error {
	schemas, err := compiled()
	if err != nil {
		return err
	}
	sch, ok := schemas[name]
	if !ok {
		return goerr.New("unknown schema", goerr.V("name", name))
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return goerr.Wrap(err, "response body is not valid JSON")
	}
	if err := sch.Validate(inst); err != nil {
		return goerr.Wrap(err, "response body does not match schema", goerr.V("schema", name))
	}
	return nil
}
