// Package sqlfixture is a convention-driven database fixture engine: given
// declarative dataset files it prepares a relational database to a known
// state, and after the action under test runs it verifies the resulting
// state against an expected dataset with per-column comparison semantics.
//
// sqlfixture is the core a host test framework builds on. The framework
// resolves which dataset directories and scenarios apply to a test, supplies
// a live database connection, and receives success or a typed failure back.
// The engine itself never inspects test metadata.
//
// # Features
//
//   - Load CSV, TSV, Parquet, and Excel (XLSX) dataset files, one file per table
//   - Automatic handling of compressed files (gzip, bzip2, xz, zstandard)
//   - Scenario marker column to share one dataset across many test cases
//   - Multi-source merging (FIRST, LAST, UNION, UNION_ALL)
//   - Foreign-key aware table ordering with order-file and alphabetical fallbacks
//   - CLEAN_INSERT, INSERT, UPDATE, DELETE, REFRESH preparation operations
//   - Per-column comparison strategies (strict, numeric, case-insensitive,
//     timestamp, not-null, regex, ignore) and column exclusions
//
// # Basic Usage
//
// Configure a fixture with the builder, prepare the database, run the action
// under test, then verify:
//
//	fixture, err := sqlfixture.NewFixtureBuilder().
//	    AddSource("testdata/orders").
//	    WithScenarios("caseA").
//	    WithDialect("postgres").
//	    WithExclusions("CREATED_AT").
//	    WithStrategy("TOTAL", model.Numeric).
//	    Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	provider := sqlfixture.DBProvider(db)
//	if err := fixture.Prepare(ctx, provider); err != nil {
//	    log.Fatal(err)
//	}
//
//	// ... run the action under test ...
//
//	if err := fixture.Verify(ctx, provider); err != nil {
//	    var verr *sqlfixture.VerificationError
//	    if errors.As(err, &verr) {
//	        log.Fatal(verr) // lists every mismatching row and column
//	    }
//	    log.Fatal(err)
//	}
//
// The dataset directory holds one file per table; the file name minus its
// extension is the table name. An optional "expected" subdirectory holds the
// post-condition dataset, and an optional load-order.txt pins the table
// processing order.
package sqlfixture
