package v1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// FooSpec defines the desired state of Foo
type FooSpec struct {
	// Name is a human readable name for the object.
	// +kubebuilder:validation:Required
	Name string `json:"name" yaml:"name"`

	// Info is free-form text inspected by the controller.
	// +kubebuilder:validation:Required
	Info string `json:"info" yaml:"info"`
}

// FooStatus defines the observed state of Foo
type FooStatus struct {
	// IsBad reports whether spec.info mentions something bad.
	IsBad bool `json:"is_bad" yaml:"is_bad"`

	// LastUpdated is when IsBad last changed its value.
	// +optional
	LastUpdated *metav1.Time `json:"last_updated,omitempty" yaml:"last_updated,omitempty"`
}

//+kubebuilder:object:root=true
//+kubebuilder:subresource:status
//+kubebuilder:printcolumn:name="Info",type="string",JSONPath=".spec.info"
//+kubebuilder:printcolumn:name="Bad",type="boolean",JSONPath=".status.is_bad"
//+kubebuilder:printcolumn:name="Age",type="date",JSONPath=".metadata.creationTimestamp"

// Foo is the Schema for the foos API
type Foo struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   FooSpec    `json:"spec,omitempty"`
	Status *FooStatus `json:"status,omitempty"`
}

//+kubebuilder:object:root=true

// FooList contains a list of Foo
type FooList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []Foo `json:"items"`
}

func init() {
	SchemeBuilder.Register(&Foo{}, &FooList{})
}
