// Package errors provides the classified error primitives used across the
// documentation builder.
//
// A ClassifiedError carries a category, a severity, a retry strategy and
// structured context. Errors are created with the fluent ErrorBuilder:
//
//	err := errors.NewError(errors.CategoryMetadata, "no metadata.yaml found").
//		Fatal().
//		WithContext("root", root).
//		Build()
//
// The CLIErrorAdapter turns classified errors into exit codes and stderr
// messages for the command line.
package errors
