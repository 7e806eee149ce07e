package apperrors

type ErrorCode string

const (
	CodeInternalError        ErrorCode = "INTERNAL_ERROR"
	CodeDatabaseError        ErrorCode = "DATABASE_ERROR"
	CodeExternalServiceError ErrorCode = "EXTERNAL_SERVICE_ERROR"

	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeAlreadyExists    ErrorCode = "ALREADY_EXISTS"
	CodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	CodeConflict         ErrorCode = "CONFLICT"
	CodeLimitExceeded    ErrorCode = "LIMIT_EXCEEDED"
	CodeInvalidStatus    ErrorCode = "INVALID_STATUS"

	CodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	CodeForbidden          ErrorCode = "FORBIDDEN"
	CodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	CodeInvalidToken       ErrorCode = "INVALID_TOKEN"

	// Admission taxonomy: reported synchronously, before a ledger row exists.
	CodeNoActivePlan       ErrorCode = "NO_ACTIVE_PLAN"
	CodeQuotaExhausted     ErrorCode = "QUOTA_EXHAUSTED"
	CodeCapabilityHidden   ErrorCode = "CAPABILITY_NOT_AVAILABLE"
	CodeCredentialRequired ErrorCode = "CREDENTIAL_REQUIRED"
	CodeCredentialPolicy   ErrorCode = "CREDENTIAL_POLICY"
	CodeInputNotReady      ErrorCode = "INPUT_NOT_READY"
	CodeQueueSaturated     ErrorCode = "QUEUE_SATURATED"
)
