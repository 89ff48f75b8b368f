package resilience

import "errors"

// Kind names a class of pipeline failure. Every kind except a partial write
// ends the run.
type Kind string

const (
	KindConfig            Kind = "config_error"
	KindInvalidIdentifier Kind = "invalid_identifier"
	KindFetch             Kind = "fetch_failed"
	KindClassification    Kind = "classification_failed"
	KindAlignment         Kind = "alignment_error"
	KindWrite             Kind = "write_failed"
)

// Sentinels for errors.Is. Only the Kind is compared.
var (
	ErrConfig               = &KindError{Kind: KindConfig}
	ErrInvalidIdentifier    = &KindError{Kind: KindInvalidIdentifier}
	ErrFetchFailed          = &KindError{Kind: KindFetch}
	ErrClassificationFailed = &KindError{Kind: KindClassification}
	ErrAlignment            = &KindError{Kind: KindAlignment}
	ErrWriteFailed          = &KindError{Kind: KindWrite}
)

// KindError tags an underlying error with its failure Kind.
type KindError struct {
	Kind Kind
	Err  error
}

func (e *KindError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *KindError) Unwrap() error {
	return e.Err
}

// Is matches any KindError of the same Kind.
func (e *KindError) Is(target error) bool {
	t, ok := target.(*KindError)
	return ok && t.Kind == e.Kind
}

// Wrap tags err with kind. A nil err stays nil.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &KindError{Kind: kind, Err: err}
}

// KindOf returns the outermost Kind found in err's chain.
func KindOf(err error) (Kind, bool) {
	var ke *KindError
	if errors.As(err, &ke) {
		return ke.Kind, true
	}
	return "", false
}
