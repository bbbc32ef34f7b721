// Package logger wraps zap for the fwsync binary.
//
// A global sugared logger writes console-formatted entries to stderr so that
// the report printed on stdout stays machine-readable. Services never touch the
// global directly: they pull a logger out of the context (FromContext), which
// lets the orchestration layer attach a name, a run identifier and the device
// being synchronized once (WithName, WithKV) and have every stage inherit it.
package logger
