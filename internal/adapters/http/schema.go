package web

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"storefinder/internal/domain/store"
)

// storeSchema describes create and update bodies. Owner lists and ids are
// not accepted here; ownership changes only through the owner routes.
const storeSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"additionalProperties": false,
	"required": ["name", "address", "email"],
	"properties": {
		"name":        {"type": "string", "minLength": 1, "maxLength": 100},
		"region":      {"type": "string", "maxLength": 50},
		"address":     {"type": "string", "minLength": 1, "maxLength": 200},
		"active":      {"type": "boolean"},
		"phoneNumber": {"type": "string", "maxLength": 15},
		"email":       {"type": "string", "pattern": "^[^@\\s]+@[^@\\s]+$"},
		"latitude":    {"type": "number", "minimum": -90, "maximum": 90},
		"longitude":   {"type": "number", "minimum": -180, "maximum": 180},
		"storeType":   {"type": "string", "maxLength": 50},
		"rating":      {"type": "integer"},
		"deliveryFee": {"type": "integer", "minimum": 0}
	}
}`

const nearbySchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"additionalProperties": false,
	"required": ["latitude", "longitude"],
	"properties": {
		"latitude":  {"type": "number", "minimum": -90, "maximum": 90},
		"longitude": {"type": "number", "minimum": -180, "maximum": 180}
	}
}`

// schemas holds the compiled request schemas.
type schemas struct {
	store  *jsonschema.Schema
	nearby *jsonschema.Schema
}

func mustCompileSchemas() *schemas {
	c := jsonschema.NewCompiler()
	compile := func(name, src string) *jsonschema.Schema {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(src))
		if err != nil {
			panic(fmt.Sprintf("parse %s schema: %v", name, err))
		}
		url := "storefinder://schema/" + name + ".json"
		if err := c.AddResource(url, doc); err != nil {
			panic(fmt.Sprintf("add %s schema: %v", name, err))
		}
		sch, err := c.Compile(url)
		if err != nil {
			panic(fmt.Sprintf("compile %s schema: %v", name, err))
		}
		return sch
	}
	return &schemas{
		store:  compile("store", storeSchema),
		nearby: compile("nearby", nearbySchema),
	}
}

// validate checks body against sch. Failures wrap store.ErrValidation.
func validate(sch *jsonschema.Schema, body []byte) error {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: malformed JSON: %v", store.ErrValidation, err)
	}
	if err := sch.Validate(inst); err != nil {
		return fmt.Errorf("%w: %v", store.ErrValidation, err)
	}
	return nil
}
