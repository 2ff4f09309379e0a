// Package errors provides typed errors with exit codes for hutch.
//
// # Error Types
//
// HutchError is the base error type that wraps an error with an exit code
// and a kind:
//
//	type HutchError struct {
//	    Code     int    // Exit code
//	    Kind     Kind   // Error category
//	    Message  string // User-facing message
//	    Resource string // Offending field or resource name, if any
//	    Cause    error  // Wrapped error
//	}
//
// # Exit Codes
//
//	ExitSuccess       = 0  // Success
//	ExitGeneralError  = 1  // General/unknown errors
//	ExitConfigError   = 2  // Spec parse or merge failure
//	ExitTemplateError = 3  // Unresolved placeholder or decryption failure
//	ExitEngineError   = 4  // Container engine call failed
//	ExitNotFound      = 5  // Workspace or container does not exist
//	ExitConflict      = 6  // Unexpected resource collision
//	ExitTunnelError   = 7  // Remote tunnel failure
//
// # Error Constructors
//
//	errors.ConfigError("failed to parse spec", err)
//	errors.TemplateError("env.CONN", "unresolved reference {{p}}", nil)
//	errors.EngineError("create", "hutch_demo_home", err)
//	errors.NotFound("workspace", "demo")
//
// # Extracting Exit Codes
//
//	if err != nil {
//	    os.Exit(errors.GetExitCode(err))
//	}
package errors
