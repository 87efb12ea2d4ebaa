package engine

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"github.com/xela07ax/xdr-console/internal/domain"
)

// envelopeSchema — контракт push-сообщения {type, data?, message?}.
const envelopeSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["type"],
	"properties": {
		"type":    {"type": "string", "minLength": 1},
		"data":    {"type": ["object", "array", "null"]},
		"message": {"type": "string"}
	}
}`

// EnvelopeDecoder проверяет кадр по схеме и разбирает его в Envelope.
type EnvelopeDecoder struct {
	schema *gojsonschema.Schema
}

func NewEnvelopeDecoder() (*EnvelopeDecoder, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(envelopeSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to load envelope schema: %w", err)
	}
	return &EnvelopeDecoder{schema: schema}, nil
}

func (d *EnvelopeDecoder) Decode(frame []byte) (domain.Envelope, error) {
	var env domain.Envelope

	result, err := d.schema.Validate(gojsonschema.NewBytesLoader(frame))
	if err != nil {
		return env, fmt.Errorf("malformed frame: %w", err)
	}
	if !result.Valid() {
		issues := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			issues = append(issues, desc.String())
		}
		return env, fmt.Errorf("invalid envelope: %s", strings.Join(issues, "; "))
	}

	if err := json.Unmarshal(frame, &env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}
