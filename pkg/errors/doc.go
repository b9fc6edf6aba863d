// Package errors provides structured error handling with error codes for simple-auth.
//
// Services return *Error values carrying an ErrorCode; HTTP handlers turn them into a
// status code and JSON body with ToResponse. Codes map to statuses as follows:
//
//	INVALID_INPUT, VALIDATION_FAILED, CAPTCHA_INVALID, ACTIVATION_TOKEN_*  -> 400
//	UNAUTHORIZED, INVALID_CREDENTIALS, TOKEN_EXPIRED, TOKEN_INVALID        -> 401
//	FORBIDDEN, USER_DISABLED                                                -> 403
//	NOT_FOUND, USER_NOT_FOUND                                               -> 404
//	USER_ALREADY_EXISTS, EMAIL_ALREADY_EXISTS                               -> 409
//	RATE_LIMIT_EXCEEDED, USER_LOCKED                                        -> 429
//	anything else                                                           -> 500
//
// # Basic Usage
//
//	import "github.com/tendant/simple-auth/pkg/errors"
//
//	err := errors.New(errors.ErrCodeUserNotFound, "user not found")
//	err := errors.Wrap(dbErr, errors.ErrCodeInternal, "failed to query database")
//	err := errors.UserLocked(12)
//
//	if errors.IsCode(err, errors.ErrCodeUserLocked) {
//		minutes := errors.GetDetails(err)["lockout_minutes"]
//	}
//
//	status, body := errors.ToResponse(err)
//	render.Status(r, status)
//	render.JSON(w, r, body)
package errors
