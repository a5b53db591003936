package jsonutil

import (
	"encoding/json"
	"errors"
	"unicode/utf8"

	"github.com/drover-project/drover/pkg/logging"
)

// previewLimit caps how much of a failing document the diagnostics show.
const previewLimit = 100

// ParseOptions configures SafeParse diagnostics and fallback behavior.
// Diagnostic verbosity is carried here explicitly so callers stay
// testable in isolation; there is no package-level verbose flag.
type ParseOptions struct {
	// Source identifies the document in warnings (usually a file path).
	Source string
	// Fallback, when non-nil, is returned as a successful value if the
	// document fails to parse. The warning is still emitted.
	Fallback any
	// Logger receives diagnostics; nil uses the global logger.
	Logger *logging.Logger
	// Verbose forces the debug block with a content preview and parser
	// detail. The block is also emitted whenever the logger itself has
	// debug enabled, so a debug-level run surfaces it without per-call
	// plumbing.
	Verbose bool
}

// Result is the two-variant outcome of a safe parse. OK is true either
// on a clean parse or when a fallback stood in; UsedFallback tells the
// two apart. Err is retained for diagnosis even when a fallback is used.
type Result struct {
	OK           bool
	Value        any
	Err          error
	UsedFallback bool
}

// SafeParse decodes data as JSON into a generic value. It never panics
// and never propagates a decode error as a Go error to the caller:
// failure is reported in the Result, with a single warning line (plus a
// verbose debug block when requested) on the supplied logger. A corrupt
// state file degrades to "absent or fallback", it does not abort the
// process.
func SafeParse(data []byte, opts ParseOptions) Result {
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		reportParseFailure(data, err, opts)
		if opts.Fallback != nil {
			return Result{OK: true, Value: opts.Fallback, Err: err, UsedFallback: true}
		}
		return Result{OK: false, Err: err}
	}
	return Result{OK: true, Value: value}
}

// SafeUnmarshal decodes data into v with the same never-fails contract,
// for callers that want a typed record. Returns false when the document
// could not be decoded; v is left untouched in that case as far as the
// decoder allows.
func SafeUnmarshal(data []byte, v any, opts ParseOptions) bool {
	if err := json.Unmarshal(data, v); err != nil {
		reportParseFailure(data, err, opts)
		return false
	}
	return true
}

func reportParseFailure(data []byte, err error, opts ParseOptions) {
	log := opts.Logger
	if log == nil {
		log = logging.Global()
	}

	source := opts.Source
	if source == "" {
		source = "<unknown>"
	}
	log.Warn("failed to parse state document", map[string]any{
		"source": source,
		"error":  err.Error(),
	})

	if opts.Verbose || log.DebugEnabled() {
		fields := map[string]any{
			"source":  source,
			"length":  len(data),
			"preview": Preview(data),
		}
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			fields["offset"] = syntaxErr.Offset
		}
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			fields["offset"] = typeErr.Offset
			fields["field"] = typeErr.Field
		}
		log.Debug("parse failure detail", fields)
	}
}

// Preview renders a safe excerpt of a failing document: "<empty>" for
// empty input, "<binary content>" when the bytes are predominantly
// non-printable, otherwise the first 100 characters with an ellipsis.
func Preview(data []byte) string {
	if len(data) == 0 {
		return "<empty>"
	}
	if isBinary(data) {
		return "<binary content>"
	}
	runes := []rune(string(data))
	if len(runes) <= previewLimit {
		return string(runes)
	}
	return string(runes[:previewLimit]) + "..."
}

// isBinary treats input as binary when it is not valid UTF-8 or when
// more than a third of a leading sample is control bytes other than
// ordinary whitespace.
func isBinary(data []byte) bool {
	sample := data
	if len(sample) > 512 {
		sample = sample[:512]
	}
	if !utf8.Valid(sample) {
		return true
	}
	control := 0
	for _, b := range sample {
		if b < 0x20 && b != '\n' && b != '\r' && b != '\t' {
			control++
		}
	}
	return control*3 > len(sample)
}
