package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// SchemaValidator validates objects against the OpenAPI v3 schema of one
// version of a CustomResourceDefinition.
type SchemaValidator struct {
	schema *jsonschema.Schema
}

// NewSchemaValidator compiles the schema of the named CRD version.
func NewSchemaValidator(crd *apiextensionsv1.CustomResourceDefinition, version string) (*SchemaValidator, error) {
	var props *apiextensionsv1.JSONSchemaProps
	for _, v := range crd.Spec.Versions {
		if v.Name == version && v.Schema != nil {
			props = v.Schema.OpenAPIV3Schema
			break
		}
	}
	if props == nil {
		return nil, fmt.Errorf("CRD %s has no schema for version %q", crd.Name, version)
	}

	raw, err := json.Marshal(props)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema of %s: %w", crd.Name, err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode schema of %s: %w", crd.Name, err)
	}

	url := fmt.Sprintf("https://%s/schemas/%s/%s.json", crd.Spec.Group, crd.Spec.Names.Plural, version)
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("failed to add schema of %s: %w", crd.Name, err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema of %s: %w", crd.Name, err)
	}

	return &SchemaValidator{schema: schema}, nil
}

// Validate implements Validator.
func (v *SchemaValidator) Validate(obj *unstructured.Unstructured) error {
	raw, err := obj.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode object: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to decode object: %w", err)
	}
	return v.schema.Validate(inst)
}
