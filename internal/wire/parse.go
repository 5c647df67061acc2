package wire

import (
	"bytes"
	"encoding/json"
	"io"
)

// Parse decodes and schema-checks a submission document. It does not run
// structural or semantic validation — call Validate on the result for
// that.
func Parse(r io.Reader) (*Document, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, &ParseError{Msg: err.Error()}
	}
	if dec.More() {
		return nil, &ParseError{Msg: "trailing data after document"}
	}

	if err := checkSchema(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ParseBytes is a convenience wrapper over Parse for already-buffered input.
func ParseBytes(b []byte) (*Document, error) {
	return Parse(bytes.NewReader(b))
}

func checkSchema(doc *Document) error {
	if doc.SchemaVersion == "" {
		return &SchemaError{Kind: "missing_field", Msg: "schemaVersion is required"}
	}
	if doc.SchemaVersion != SupportedSchemaVersion {
		return &SchemaError{Kind: "unsupported_version", Msg: "got " + doc.SchemaVersion + ", want " + SupportedSchemaVersion}
	}
	if doc.Name == "" {
		return &SchemaError{Kind: "missing_field", Msg: "name is required"}
	}
	if len(doc.Nodes) == 0 {
		return &SchemaError{Kind: "empty_graph", Msg: "nodes must be non-empty"}
	}
	return nil
}
