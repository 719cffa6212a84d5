/*
Package errors provides semantic error types for the docstore client.

The package defines the error taxonomy shared by the provisioner, the document
client and every transport. Errors are checked with the standard errors.Is()
function or the provided helper functions.

Common Errors:

	var (
	    ErrNotFound           = errors.New("resource not found")
	    ErrAlreadyExists      = errors.New("resource already exists")
	    ErrInvalidInput       = errors.New("invalid input")
	    ErrPreconditionFailed = errors.New("precondition failed")
	    ErrUnauthorized       = errors.New("unauthorized")
	    ErrThrottled          = errors.New("request throttled")
	    ErrMalformed          = errors.New("malformed request")
	    ErrTransport          = errors.New("transport error")
	)

Only ErrNotFound (during an existence check) and ErrAlreadyExists (during a
create) are ever recovered locally. Everything else reaches the caller wrapped
in a *ResourceError naming the operation and resource path.

Usage:

	status, err := client.CreateIfAbsent(ctx, family)
	if err != nil {
	    fmt.Printf("%s error occurred: %v\n", errors.KindOf(err), err)
	    return err
	}

	// Create typed errors
	err := errors.NewNotFoundError("document", "Andersen.1")
	err := errors.NewValidationError("id", "must not be empty")
	err := errors.NewConditionFailedError("replace", "_etag mismatch")
*/
package errors
