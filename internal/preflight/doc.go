// Package preflight checks that a search can run before it is started. It
// backs the doctor command.
//
// The package validates:
//   - The walk root exists and can be listed
//   - The path regex file exists and every regex compiles
//   - The path regexes select at least one file
//   - The file descriptor limit leaves room for the configured workers
//   - The debug log directory is writable
//
// Use the Checker type to run all validations:
//
//	checker := preflight.New(preflight.WithName("logfind"))
//	results := checker.RunAll(ctx, target)
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
