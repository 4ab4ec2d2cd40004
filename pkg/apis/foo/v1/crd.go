package v1

import (
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"
)

// CustomResourceDefinition returns the CRD describing Foo. It is exported by
// the crdgen command and compiled into the store-side validator.
func CustomResourceDefinition() *apiextensionsv1.CustomResourceDefinition {
	return &apiextensionsv1.CustomResourceDefinition{
		TypeMeta: metav1.TypeMeta{
			APIVersion: apiextensionsv1.SchemeGroupVersion.String(),
			Kind:       "CustomResourceDefinition",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name: FooResource + "." + Group,
		},
		Spec: apiextensionsv1.CustomResourceDefinitionSpec{
			Group: Group,
			Names: apiextensionsv1.CustomResourceDefinitionNames{
				Plural:   FooResource,
				Singular: "foo",
				Kind:     FooKind,
				ListKind: FooKind + "List",
			},
			Scope: apiextensionsv1.NamespaceScoped,
			Versions: []apiextensionsv1.CustomResourceDefinitionVersion{
				{
					Name:    Version,
					Served:  true,
					Storage: true,
					Schema: &apiextensionsv1.CustomResourceValidation{
						OpenAPIV3Schema: FooSchema(),
					},
					Subresources: &apiextensionsv1.CustomResourceSubresources{
						Status: &apiextensionsv1.CustomResourceSubresourceStatus{},
					},
					AdditionalPrinterColumns: []apiextensionsv1.CustomResourceColumnDefinition{
						{Name: "Info", Type: "string", JSONPath: ".spec.info"},
						{Name: "Bad", Type: "boolean", JSONPath: ".status.is_bad"},
						{Name: "Age", Type: "date", JSONPath: ".metadata.creationTimestamp"},
					},
				},
			},
		},
	}
}

// FooSchema returns the structural OpenAPI v3 schema of a Foo object.
func FooSchema() *apiextensionsv1.JSONSchemaProps {
	return &apiextensionsv1.JSONSchemaProps{
		Description: "Foo is the Schema for the foos API",
		Type:        "object",
		Required:    []string{"spec"},
		Properties: map[string]apiextensionsv1.JSONSchemaProps{
			"apiVersion": {Type: "string"},
			"kind":       {Type: "string"},
			"metadata":   {Type: "object"},
			"spec": {
				Type:     "object",
				Required: []string{"info", "name"},
				Properties: map[string]apiextensionsv1.JSONSchemaProps{
					"name": {Type: "string"},
					"info": {Type: "string"},
				},
			},
			"status": {
				Type:     "object",
				Nullable: true,
				Required: []string{"is_bad"},
				Properties: map[string]apiextensionsv1.JSONSchemaProps{
					"is_bad": {Type: "boolean"},
					"last_updated": {
						Type:     "string",
						Format:   "date-time",
						Nullable: true,
					},
				},
			},
		},
	}
}

// CustomResourceDefinitionYAML renders the CRD as a YAML manifest.
func CustomResourceDefinitionYAML() ([]byte, error) {
	return yaml.Marshal(CustomResourceDefinition())
}
