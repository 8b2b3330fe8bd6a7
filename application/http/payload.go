package http

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"
)

var ErrInvalidPayload = errors.New("invalid payload")

// CarriesPayload reports whether a body is asked for when method is used.
func CarriesPayload(method string) bool {
	switch NormalizeMethod(method) {
	case MethodPost, MethodPut, MethodPatch:
		return true
	default:
		return false
	}
}

// PayloadValidator checks request bodies before any network activity.
// The zero value only checks that the body is well-formed JSON.
type PayloadValidator struct {
	schema *gojsonschema.Schema
}

// NewPayloadValidator compiles schema. A nil or empty schema disables the schema check.
func NewPayloadValidator(schema []byte) (*PayloadValidator, error) {
	if len(schema) == 0 {
		return &PayloadValidator{}, nil
	}

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schema))
	if err != nil {
		return nil, errors.Wrap(err, "compiling payload schema")
	}

	return &PayloadValidator{schema: compiled}, nil
}

// Validate accepts an empty body, since it means no body is sent.
func (pv *PayloadValidator) Validate(body []byte) error {
	if len(body) == 0 {
		return nil
	}

	if !gjson.ValidBytes(body) {
		return errors.Wrap(ErrInvalidPayload, "body is not well-formed JSON")
	}

	if pv == nil || pv.schema == nil {
		return nil
	}

	result, err := pv.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return errors.Wrap(ErrInvalidPayload, err.Error())
	}
	if result.Valid() {
		return nil
	}

	descs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		descs = append(descs, desc.String())
	}
	return errors.Wrapf(ErrInvalidPayload, "schema validation failed: %s", strings.Join(descs, "; "))
}
