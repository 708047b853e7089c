package output

import "io"

// Handler renders command results in one output format. A command builds its
// result values, then hands them to the Handler selected by the --format flag.
type Handler[T any] interface {
	// Writer returns the destination this Handler writes to.
	Writer() io.Writer

	// HandleResult renders a single item.
	HandleResult(item T) error

	// HandleResults renders a collection of items.
	HandleResults(items ...T) error

	// HandleError renders err in the handler's format.
	HandleError(err error) error
}

// WriteFunc writes collection-level output such as a header or footer. It
// receives the destination and the number of items being printed, never the
// items themselves.
type WriteFunc[T any] func(w io.Writer, count int)

// Printer renders items for human-readable text output. JSON and YAML
// handlers serialize items directly and do not use a Printer.
type Printer[T any] interface {
	// Header is called once before any Item.
	Header(w io.Writer, count int)

	// SetHeader configures the Header function.
	SetHeader(fn WriteFunc[T])

	// Item prints one element.
	Item(w io.Writer, elem T) error

	// Footer is called once after the last Item.
	Footer(w io.Writer, count int)

	// SetFooter configures the Footer function.
	SetFooter(fn WriteFunc[T])
}

// ResultsPayload wraps multiple values for structured output, serialized
// under the key "results".
type ResultsPayload[T any] struct {
	Results []T `json:"results" yaml:"results"`
}

// ResultPayload wraps a single value for structured output, serialized under
// the key "result".
type ResultPayload[T any] struct {
	Result T `json:"result" yaml:"result"`
}

// ErrorPayload carries an error message in structured output, serialized
// under the key "error".
type ErrorPayload struct {
	Error string `json:"error" yaml:"error"`
}
