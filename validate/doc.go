// Package validate checks request payloads before they reach the network.
//
// Rules are declared with `validate` struct tags (go-playground/validator); field
// names in failures are the JSON names so messages line up with API errors.
package validate
