package annotation

import "errors"

// Error taxonomy for the annotation workflow. Handlers map these to HTTP
// status codes with errors.Is; anything else is a store failure.
var (
	ErrValidation    = errors.New("validation failed")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrNoneAvailable = errors.New("no images left to annotate")
)

// Options carries the policy switches that the product left open.
type Options struct {
	// SingleAnnotator treats any annotation on an image as covering it for
	// every user, the way the original single-annotator deployment worked.
	SingleAnnotator bool
	// ReportCountsAnnotation decides whether a report bumps the image's
	// annotation counter or leaves the image counted as unresolved.
	ReportCountsAnnotation bool
}
