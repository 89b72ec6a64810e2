package webhook

import (
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// payloadSchema holds the fields every kind must carry. %s receives extra
// post properties.
const payloadSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["kind", "team", "post"],
  "properties": {
    "kind": {"const": %q},
    "team": {
      "type": "object",
      "required": ["name"],
      "properties": {"name": {"type": "string", "minLength": 1}}
    },
    "post": {
      "type": "object",
      "required": ["number"],
      "properties": {
        "number": {"type": "integer", "minimum": 1},
        "name": {"type": "string"},
        "wip": {"type": "boolean"}%s
      }
    },
    "user": {"type": "object"}
  }
}`

var extraPostProperties = map[Kind]string{
	KindPostUpdate: `,
        "diff_url": {"type": "string"}`,
}

var (
	schemas = mustCompileSchemas()
	printer = message.NewPrinter(language.English)
)

func mustCompileSchemas() map[Kind]*jsonschema.Schema {
	out := make(map[Kind]*jsonschema.Schema, len(Kinds))
	for _, kind := range Kinds {
		sch, err := compileSchema(kind)
		if err != nil {
			panic(fmt.Sprintf("webhook: compile %s schema: %v", kind, err))
		}
		out[kind] = sch
	}
	return out
}

func compileSchema(kind Kind) (*jsonschema.Schema, error) {
	doc := fmt.Sprintf(payloadSchema, kind, extraPostProperties[kind])
	v, err := jsonschema.UnmarshalJSON(strings.NewReader(doc))
	if err != nil {
		return nil, err
	}
	loc := string(kind) + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(loc, v); err != nil {
		return nil, err
	}
	return c.Compile(loc)
}

// checkSchema validates raw against the schema of kind and returns one
// message per violated constraint.
func checkSchema(kind Kind, raw any) []string {
	err := schemas[kind].Validate(raw)
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return []string{fmt.Sprintf("The %s payload could not be validated: %v.", kind, err)}
	}
	var msgs []string
	collectLeaves(verr, func(leaf *jsonschema.ValidationError) {
		at := "/" + strings.Join(leaf.InstanceLocation, "/")
		msgs = append(msgs, fmt.Sprintf("The %s payload is invalid at %s: %s.",
			kind, at, leaf.ErrorKind.LocalizedString(printer)))
	})
	return msgs
}

func collectLeaves(e *jsonschema.ValidationError, fn func(*jsonschema.ValidationError)) {
	if len(e.Causes) == 0 {
		fn(e)
		return
	}
	for _, c := range e.Causes {
		collectLeaves(c, fn)
	}
}
