package retry

// Error is implemented by errors that know whether they are temporary
// (retryable) or permanent. Abort returns one.
//
// The retry loop stops early only for errors wrapped with Abort.
// Implementing Temporary alone does not opt an error out of retries:
// stdlib network errors report Temporary false for a refused connection,
// which is exactly the failure retrying is for.
type Error interface {
	// Temporary reports whether the operation should be retried.
	Temporary() bool
	error
}

// permanentError marks an error as non-retryable. Used by Abort.
type permanentError struct {
	error
}

func (e *permanentError) Temporary() bool { return false }

func (e *permanentError) Unwrap() error {
	return e.error
}

// Abort wraps an error to mark it as permanent, stopping the retry loop
// immediately. Use this for errors that retrying cannot fix, such as a
// rejected request:
//
//	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
//	    return retry.Abort(errStatus(resp.StatusCode))
//	}
func Abort(err error) Error {
	return &permanentError{err}
}
