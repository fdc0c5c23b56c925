// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package account

import "net/http"

// Result is the tagged outcome of a use case. The transport layer
// branches on Success and Code and translates HTTPStatus to the wire; it
// never re-derives business meaning from the message text.
type Result struct {
	Success    bool   `json:"success"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Data       any    `json:"data,omitempty"`
	HTTPStatus int    `json:"-"`
}

// Machine-readable result codes.
const (
	CodeSuccess                = "SUCCESS"
	CodeInvalidEmailFormat     = "INVALID_EMAIL_FORMAT"
	CodeWeakPassword           = "WEAK_PASSWORD"
	CodePasswordsDoNotMatch    = "PASSWORDS_DO_NOT_MATCH"
	CodeEmailAlreadyInUse      = "EMAIL_ALREADY_IN_USE"
	CodeUserCreationFailed     = "USER_CREATION_FAILED"
	CodeUserNotFound           = "USER_NOT_FOUND"
	CodeDBError                = "DB_ERROR"
	CodeLoginFailed            = "LOGIN_FAILED"
	CodeAccountDeleted         = "ACCOUNT_DELETED"
	CodeAccountSuspended       = "ACCOUNT_SUSPENDED"
	CodeAccountLocked          = "ACCOUNT_LOCKED"
	CodeTokenGenerationError   = "TOKEN_GENERATION_ERROR"
	CodeInvalidRefreshToken    = "INVALID_REFRESH_TOKEN"
	CodeRevokeFailed           = "REVOKE_FAILED"
	CodeTokenInvalid           = "TOKEN_INVALID"
	CodeEmailSendError         = "EMAIL_SEND_ERROR"
	CodeEmailAlreadyVerified   = "EMAIL_ALREADY_VERIFIED"
	CodeUnableToResend         = "UNABLE_TO_RESEND"
	CodeRateLimitExceeded      = "RATE_LIMIT_EXCEEDED"
	CodePasswordResetInitiated = "PASSWORD_RESET_INITIATED"
	CodeInvalidResetToken      = "INVALID_RESET_TOKEN"
	CodeNotEligibleForReset    = "ACCOUNT_NOT_ELIGIBLE_FOR_RESET"
	CodePasswordReused         = "CANNOT_REUSE_RECENT_PASSWORD"
	CodePasswordResetSuccess   = "PASSWORD_RESET_SUCCESS"
	CodeAuthRequired           = "ERR_AUTH_REQUIRED"
	CodeInvalidToken           = "ERR_INVALID_TOKEN"
	CodeIncorrectPassword      = "ERR_INCORRECT_PASSWORD"
	CodeUsernameTaken          = "ERR_USERNAME_TAKEN"
	CodeEmailRegistered        = "ERR_EMAIL_REGISTERED"
	CodeUpdateFailed           = "ERR_UPDATE_FAILED"
	CodeDeleteFailed           = "ERR_DELETE_FAILED"
	CodeEmailSendFailed        = "EMAIL_SEND_FAILED"
	CodePasswordReusedChange   = "ERR_PASSWORD_REUSED"
	CodeUnexpectedError        = "UNEXPECTED_ERROR"
)

// User-visible messages. Enumeration-sensitive flows reuse one message
// for both the found and not-found paths.
const (
	msgLoginFailed            = "Invalid email or password"
	msgLoginSuccess           = "Login successful"
	msgAccountDeleted         = "Account has been deleted"
	msgAccountSuspended       = "Account has been suspended. Please contact support."
	msgAccountLocked          = "Account is temporarily locked. Please reset your password via email."
	msgSignUpSuccess          = "User created successfully"
	msgEmailInUse             = "Email already in use"
	msgTokenRefreshed         = "Token refreshed successfully"
	msgInvalidRefreshToken    = "Invalid refresh token"
	msgEmailVerified          = "Email verified successfully"
	msgTokenExpiredOrUsed     = "Token expired or already used"
	msgResetInitiated         = "If a user exists with this email, they will receive reset instructions."
	msgNotEligibleForReset    = "Account is not eligible for password reset"
	msgInvalidResetToken      = "Invalid or expired reset token"
	msgPasswordReused         = "Cannot reuse a recent password"
	msgPasswordResetSuccess   = "Password has been reset successfully"
	msgVerificationSent       = "If a matching account was found, a verification email has been sent."
	msgVerificationResent     = "Verification email has been resent"
	msgEmailAlreadyVerified   = "Email is already verified"
	msgUnableToResend         = "Unable to resend verification email"
	msgResendCooldown         = "Please wait 5 minutes before requesting another verification email"
	msgDatabaseError          = "Database error while looking up user"
	msgAuthRequired           = "Authentication required"
	msgInvalidTokenGeneric    = "Invalid token"
	msgIncorrectPassword      = "Current password is incorrect"
	msgPasswordChanged        = "Password changed successfully. Please log in with your new password."
	msgUsernameTaken          = "Username already taken"
	msgEmailRegistered        = "Email already registered"
	msgUpdateFailed           = "Failed to update user information"
	msgProfileUpdated         = "Profile updated successfully"
	msgProfileUpdatedVerify   = "Profile updated. Please verify your new email address."
	msgAccountDeletedOK       = "Account successfully deleted"
	msgUserRetrieved          = "User retrieved successfully"
	msgEmailSendFailed        = "Failed to send verification email"
	msgLoggedOut              = "Logged out successfully"
	msgPasswordsDoNotMatch    = "Passwords do not match"
)

// OK builds a success result.
func OK(message, code string, data any, status int) Result {
	if status == 0 {
		status = http.StatusOK
	}
	return Result{Success: true, Code: code, Message: message, Data: data, HTTPStatus: status}
}

// Fail builds a failure result.
func Fail(message, code string, status int) Result {
	return Result{Success: false, Code: code, Message: message, HTTPStatus: status}
}

// FailWithData builds a failure result carrying a typed payload, such as
// the lockout deadline or remaining attempts.
func FailWithData(message, code string, data any, status int) Result {
	return Result{Success: false, Code: code, Message: message, Data: data, HTTPStatus: status}
}
