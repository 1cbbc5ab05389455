// Package sqlfixture provides a convention-driven database fixture engine.
package sqlfixture

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nao1215/sqlfixture/domain/model"
)

// ErrNoExpectation indicates Verify was called on a fixture without an
// expected dataset directory.
var ErrNoExpectation = errors.New("sqlfixture: fixture has no expected dataset")

// ConnectionProvider hands the engine a live database connection for one
// call, plus the release function invoked on every exit path. The caller
// owns pooling, lifecycle and transaction semantics.
type ConnectionProvider func(ctx context.Context) (*sql.DB, func() error, error)

// DBProvider adapts an existing handle into a ConnectionProvider with a
// no-op release.
func DBProvider(db *sql.DB) ConnectionProvider {
	return func(context.Context) (*sql.DB, func() error, error) {
		return db, func() error { return nil }, nil
	}
}

// Fixture is an immutable, resolved dataset configuration. One Fixture can
// serve many Prepare/Verify calls concurrently; each call works on its own
// connection and shares no mutable state.
type Fixture struct {
	dataset       *model.TableSet
	expected      *model.ExpectedTableSet
	resolver      *TableOrderResolver
	dialect       Dialect
	orderStrategy OrderStrategy
	prepareOp     Operation
	expectationOp Operation
}

// Dataset returns the preparation dataset.
func (f *Fixture) Dataset() *model.TableSet {
	return f.dataset
}

// Expected returns the expectation dataset, nil when none is configured.
func (f *Fixture) Expected() *model.ExpectedTableSet {
	return f.expected
}

// EnsureOrderFile writes a default alphabetical load-order file next to the
// dataset when none exists and returns its path.
func (f *Fixture) EnsureOrderFile() (string, error) {
	return f.resolver.EnsureOrderFile(f.dataset)
}

// Prepare writes the dataset into the database with the configured
// preparation operation. A failed preparation aborts the test before the
// action under test runs.
func (f *Fixture) Prepare(ctx context.Context, provider ConnectionProvider) (err error) {
	db, release, err := f.acquire(ctx, provider)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := release(); cerr != nil && err == nil {
			err = fmt.Errorf("sqlfixture: failed to release connection: %w", cerr)
		}
	}()

	return f.apply(ctx, db, f.dataset, f.prepareOp)
}

// Verify compares the database state against the expected dataset. Every
// mismatch of the whole pass is collected and returned as one
// *VerificationError.
func (f *Fixture) Verify(ctx context.Context, provider ConnectionProvider) (err error) {
	if f.expected == nil {
		return ErrNoExpectation
	}

	db, release, err := f.acquire(ctx, provider)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := release(); cerr != nil && err == nil {
			err = fmt.Errorf("sqlfixture: failed to release connection: %w", cerr)
		}
	}()

	if f.expectationOp != OperationNone {
		if err := f.apply(ctx, db, f.expected.TableSet(), f.expectationOp); err != nil {
			return err
		}
	}

	verifier, err := ExpectationProviderFor(DefaultExpectationProvider)
	if err != nil {
		return err
	}
	return verifier.Verify(ctx, db, f.dialect, f.expected)
}

func (f *Fixture) acquire(ctx context.Context, provider ConnectionProvider) (*sql.DB, func() error, error) {
	db, release, err := provider(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlfixture: failed to acquire connection: %w", err)
	}
	if db == nil {
		if release != nil {
			_ = release()
		}
		return nil, nil, ErrNilConnection
	}
	if release == nil {
		release = func() error { return nil }
	}
	return db, release, nil
}

func (f *Fixture) apply(ctx context.Context, db *sql.DB, set *model.TableSet, op Operation) error {
	order, err := f.resolver.Resolve(ctx, db, set, f.orderStrategy)
	if err != nil {
		return err
	}

	provider, err := OperationProviderFor(op)
	if err != nil {
		return err
	}
	return provider.Apply(ctx, db, f.dialect, set, order)
}
