package placement

import (
	"log/slog"

	"github.com/roach88/dashstore/internal/identity"
	"github.com/roach88/dashstore/internal/schema"
	"github.com/roach88/dashstore/internal/txlog"
)

// Config holds the required construction parameters of a Store.
type Config struct {
	// ID distinguishes otherwise identical stores sharing a backing medium.
	ID int64

	// Resolver maps notebook and cell objects to stable ids for PlaceCell.
	// Nil defaults to an identity.MetadataResolver minting UUIDv7 ids.
	Resolver identity.Resolver
}

// Option configures optional Store parameters.
type Option func(*Store)

// WithMaxHistory caps the number of undoable transactions. Zero (the
// default) keeps the whole history.
func WithMaxHistory(n int) Option {
	return func(s *Store) {
		s.maxHistory = n
	}
}

// WithSequencer sets the source of transaction sequence numbers.
// Tests pass a testutil.DeterministicClock; reopened dashboards pass a
// txlog.Clock positioned at the last saved seq.
func WithSequencer(seq txlog.Sequencer) Option {
	return func(s *Store) {
		s.seq = seq
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithSchema replaces the built-in widget schema. The replacement must
// declare every widget field.
func WithSchema(ts *schema.TableSchema) Option {
	return func(s *Store) {
		s.schema = ts
	}
}

// WithIDGenerator sets the generator used to mint widget ids in PlaceCell.
// Defaults to identity.UUIDv7Generator.
func WithIDGenerator(gen identity.Generator) Option {
	return func(s *Store) {
		s.ids = gen
	}
}
