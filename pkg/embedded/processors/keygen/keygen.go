// Package keygen derives a deterministic deduplication key from selected
// fields of a JSON object and appends it to the object.
//
// A Transform is built once from a validated Config and is then safe for
// concurrent use: Apply keeps no state between records.
package keygen

import (
	"fmt"
	"time"

	"github.com/wehubfusion/keygen/pkg/jsonvalue"
	"github.com/wehubfusion/keygen/pkg/logging"
	"github.com/wehubfusion/keygen/pkg/metrics"
)

// Result is the outcome of transforming one record.
type Result struct {
	// Record is the input object with the key field set.
	Record []byte
	// Key is the hex digest written to the key field.
	Key string
	// Missing lists lookup paths that resolved to nothing.
	Missing []string
}

// Transform applies a Config to records.
type Transform struct {
	config       Config
	materializer *Materializer
	logger       logging.Logger
	recorder     *metrics.Recorder
}

// Option configures a Transform.
type Option func(*Transform)

// WithLogger sets the logger used for per-record diagnostics.
func WithLogger(logger logging.Logger) Option {
	return func(t *Transform) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithRecorder records per-record metrics.
func WithRecorder(recorder *metrics.Recorder) Option {
	return func(t *Transform) {
		t.recorder = recorder
	}
}

// New validates config and builds a transform from it.
func New(config Config, opts ...Option) (*Transform, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	paths, err := config.paths()
	if err != nil {
		return nil, err
	}

	lookup := make([]string, len(config.Lookup))
	copy(lookup, config.Lookup)

	t := &Transform{
		config:       Config{Lookup: lookup, KeyName: config.KeyName},
		materializer: NewMaterializer(paths),
		logger:       &logging.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Config returns a copy of the configuration the transform was built from.
func (t *Transform) Config() Config {
	lookup := make([]string, len(t.config.Lookup))
	copy(lookup, t.config.Lookup)
	return Config{Lookup: lookup, KeyName: t.config.KeyName}
}

// Apply transforms one record. The error, if any, is an *InputParseError and
// concerns this record only.
func (t *Transform) Apply(record []byte) (*Result, error) {
	start := time.Now()
	res, err := t.apply(record)

	misses := 0
	if res != nil {
		misses = len(res.Missing)
	}
	t.recorder.ObserveTransform(time.Since(start), misses, err)

	if err != nil {
		t.logger.Warn("record rejected", logging.F("error", err))
	}
	return res, err
}

// Key returns only the digest for record.
func (t *Transform) Key(record []byte) (string, error) {
	doc, err := parseObject(record)
	if err != nil {
		return "", err
	}
	return Digest(t.materializer.Materialize(doc).Input), nil
}

func (t *Transform) apply(record []byte) (*Result, error) {
	doc, err := parseObject(record)
	if err != nil {
		return nil, err
	}

	material := t.materializer.Materialize(doc)
	for _, p := range material.Missing {
		t.logger.Debug("lookup path not found", logging.F("path", p))
	}

	key := Digest(material.Input)
	out, err := AppendDigest(record, t.config.KeyName, key)
	if err != nil {
		return nil, &InputParseError{Message: "cannot set key field", Cause: err}
	}

	return &Result{Record: out, Key: key, Missing: material.Missing}, nil
}

func parseObject(record []byte) (jsonvalue.Value, error) {
	doc, err := jsonvalue.Parse(record)
	if err != nil {
		return jsonvalue.Value{}, &InputParseError{Message: "record is not valid JSON", Cause: err}
	}
	if doc.Kind() != jsonvalue.KindObject {
		return jsonvalue.Value{}, &InputParseError{
			Message: fmt.Sprintf("expected object, got %s", doc.Kind()),
			Cause:   ErrNotObject,
		}
	}
	return doc, nil
}
