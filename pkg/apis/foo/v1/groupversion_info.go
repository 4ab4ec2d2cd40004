package v1

import (
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/controller-runtime/pkg/scheme"
)

const (
	// Group is the API group served by this package.
	Group = "clux.dev"

	// Version is the only served and stored version.
	Version = "v1"

	// FooKind is the kind name of the Foo resource.
	FooKind = "Foo"

	// FooResource is the plural resource name used in REST paths and CRD names.
	FooResource = "foos"
)

var (
	// GroupVersion is group version used to register these objects.
	GroupVersion = schema.GroupVersion{Group: Group, Version: Version}

	// SchemeBuilder is used to add go types to the GroupVersionKind scheme.
	SchemeBuilder = &scheme.Builder{GroupVersion: GroupVersion}

	// AddToScheme adds the types in this group-version to the given scheme.
	AddToScheme = SchemeBuilder.AddToScheme
)

// FooGroupVersionKind returns the fully qualified kind of Foo.
func FooGroupVersionKind() schema.GroupVersionKind {
	return GroupVersion.WithKind(FooKind)
}

// FooGroupVersionResource returns the fully qualified resource of Foo.
func FooGroupVersionResource() schema.GroupVersionResource {
	return GroupVersion.WithResource(FooResource)
}
