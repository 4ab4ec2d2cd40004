// Package config loads the controller configuration.
//
// Settings are resolved in this order, later sources winning:
//
//   - built-in defaults (DefaultConfig)
//   - an optional YAML file passed with --config
//   - environment variables prefixed with FOO_CONTROLLER_, where nested keys
//     use underscores (FOO_CONTROLLER_CONTROLLER_WORKERS=4)
//   - command line flags bound to viper keys (--addr binds server.addr)
//
// An example file:
//
//	server:
//	  addr: 0.0.0.0:8080
//	controller:
//	  workers: 4
//	  errorPolicy: exponential
//	store:
//	  type: filesystem
//	  path: ./manifests
//	logging:
//	  format: json
//
// Validate reports every problem at once as a ConfigurationErrorCollection so
// a broken file can be fixed in a single pass.
package config
