package cryptox

// operationError records which cryptox operation failed. It unwraps to the
// underlying sentinel so callers match with errors.Is.
type operationError struct {
	op  string
	err error
}

func (e *operationError) Error() string {
	return "cryptox: " + e.op + ": " + e.err.Error()
}

func (e *operationError) Unwrap() error {
	return e.err
}

func opErr(op string, err error) error {
	return &operationError{op: op, err: err}
}
