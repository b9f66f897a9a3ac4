// Package smartmodule hosts the key generator behind a record-map interface:
// the host initializes a Module once with string parameters and then maps
// records through it.
package smartmodule

import (
	"fmt"

	"github.com/wehubfusion/keygen/pkg/embedded/processors/keygen"
)

// SpecParam is the parameter holding the transform specification.
const SpecParam = "spec"

// Record is a keyed stream record.
type Record struct {
	Key   []byte
	Value []byte
}

// Params are the initialization parameters supplied by the host.
type Params map[string]string

// MissingParamError is returned by Init when a required parameter is absent.
type MissingParamError struct {
	Name string
}

func (e *MissingParamError) Error() string {
	return fmt.Sprintf("missing required parameter %q", e.Name)
}

// Module maps records through a configured transform.
type Module struct {
	transform *keygen.Transform
}

// Init builds a Module from params. The "spec" parameter must hold the
// specification as JSON or YAML text.
func Init(params Params, opts ...keygen.Option) (*Module, error) {
	raw, ok := params[SpecParam]
	if !ok {
		return nil, &MissingParamError{Name: SpecParam}
	}

	cfg, err := keygen.ParseConfig([]byte(raw))
	if err != nil {
		return nil, err
	}
	transform, err := keygen.New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Module{transform: transform}, nil
}

// Map returns record with its value replaced by the augmented document. The
// key is carried over unchanged.
func (m *Module) Map(record Record) (Record, error) {
	res, err := m.transform.Apply(record.Value)
	if err != nil {
		return Record{}, err
	}
	return Record{Key: record.Key, Value: res.Record}, nil
}

// Transform exposes the underlying transform.
func (m *Module) Transform() *keygen.Transform {
	return m.transform
}
