/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/suparena/docstore/errors"
)

// DynamoDB error codes the transport translates into store error kinds.
const (
	codeResourceNotFound     = "ResourceNotFoundException"
	codeResourceInUse        = "ResourceInUseException"
	codeConditionalCheck     = "ConditionalCheckFailedException"
	codeThroughputExceeded   = "ProvisionedThroughputExceededException"
	codeThrottling           = "ThrottlingException"
	codeRequestLimitExceeded = "RequestLimitExceeded"
	codeUnrecognizedClient   = "UnrecognizedClientException"
	codeAccessDenied         = "AccessDeniedException"
	codeValidation           = "ValidationException"
	codeInternalServer       = "InternalServerError"
)

// mapError translates an SDK error into the errors package. resource and key
// name the resource for not-found and already-exists errors.
func mapError(err error, resource, key string) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr smithy.APIError
	if !stderrors.As(err, &apiErr) {
		return fmt.Errorf("%w: %w", errors.ErrTransport, err)
	}

	switch apiErr.ErrorCode() {
	case codeResourceNotFound:
		return errors.NewNotFoundError(resource, key)
	case codeResourceInUse:
		return errors.NewAlreadyExistsError(resource, key)
	case codeThroughputExceeded, codeThrottling, codeRequestLimitExceeded:
		return fmt.Errorf("%w: %w", errors.ErrThrottled, err)
	case codeUnrecognizedClient, codeAccessDenied:
		return fmt.Errorf("%w: %w", errors.ErrUnauthorized, err)
	case codeValidation:
		return fmt.Errorf("%w: %w", errors.ErrMalformed, err)
	}
	return fmt.Errorf("%w: %w", errors.ErrTransport, err)
}

// conditionFailure returns the ConditionalCheckFailedException in err, if any.
func conditionFailure(err error) (*types.ConditionalCheckFailedException, bool) {
	var cfe *types.ConditionalCheckFailedException
	if stderrors.As(err, &cfe) {
		return cfe, true
	}
	return nil, false
}

// isRetryableError determines if a DynamoDB error is worth retrying
func isRetryableError(err error) bool {
	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case codeThroughputExceeded, codeThrottling, codeRequestLimitExceeded, codeInternalServer:
			return true
		}
	}

	// Check for AWS SDK retryable errors
	var retryable interface{ IsRetryable() bool }
	if stderrors.As(err, &retryable) {
		return retryable.IsRetryable()
	}
	return false
}
