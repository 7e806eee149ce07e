package apperrors

import "net/http"

// Predefined domain errors. Entitlement, credential and admission failures are
// synchronous rejections: the caller gets one of these and no ledger row is
// ever created.
var (
	// Auth
	ErrInvalidCredentials = New(CodeInvalidCredentials, "Invalid email or password", http.StatusUnauthorized)
	ErrUnauthorized       = New(CodeUnauthorized, "Authentication required", http.StatusUnauthorized)
	ErrForbidden          = New(CodeForbidden, "Access denied", http.StatusForbidden)
	ErrInvalidToken       = New(CodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized)

	// Users
	ErrUserNotFound       = New(CodeNotFound, "User not found", http.StatusNotFound)
	ErrEmailAlreadyExists = New(CodeAlreadyExists, "Email already exists", http.StatusConflict)
	ErrWeakPassword       = New(CodeValidationFailed, "Password must be at least 6 characters", http.StatusBadRequest)

	// Validation
	ErrValidationFailed = New(CodeValidationFailed, "Validation failed", http.StatusBadRequest)

	// Entitlement
	ErrNoActivePlan           = New(CodeNoActivePlan, "No active plan. Please purchase a plan.", http.StatusForbidden)
	ErrQuotaExhausted         = New(CodeQuotaExhausted, "Plan limit reached for this capability", http.StatusForbidden)
	ErrCapabilityNotAvailable = New(CodeCapabilityHidden, "Your plan does not include this capability", http.StatusForbidden)
	ErrCreationNotAllowed     = New(CodeCapabilityHidden, "Your plan does not allow creating custom definitions", http.StatusForbidden)

	// Credential selection
	ErrCredentialRequired        = New(CodeCredentialRequired, "This capability requires your own API key. Configure it in your profile.", http.StatusForbidden)
	ErrSharedCredentialForbidden = New(CodeCredentialPolicy, "Your plan does not permit using the platform credential for this capability", http.StatusForbidden)

	// Admission
	ErrPlanNotFound          = New(CodeNotFound, "Plan not found", http.StatusNotFound)
	ErrAgentNotFound         = New(CodeNotFound, "Agent not found", http.StatusNotFound)
	ErrAssistantNotFound     = New(CodeNotFound, "Assistant not found", http.StatusNotFound)
	ErrTranscriptionNotFound = New(CodeNotFound, "Transcription not found or access denied", http.StatusNotFound)
	ErrJobNotFound           = New(CodeNotFound, "Job not found or access denied", http.StatusNotFound)
	ErrOutputFileNotFound    = New(CodeNotFound, "Output file not found or not available for download", http.StatusNotFound)
	ErrTranscriptionNotReady = New(CodeInputNotReady, "The transcription has not completed yet", http.StatusConflict)
	ErrAssistantNotSynced    = New(CodeInvalidStatus, "Assistant is not synced with the provider. Save it again to sync.", http.StatusConflict)
	ErrQueueSaturated        = New(CodeQueueSaturated, "The execution queue is full, try again shortly", http.StatusServiceUnavailable)
	ErrPlanInUse             = New(CodeConflict, "Plan is referenced by users and cannot be deleted", http.StatusConflict)
	ErrAgentInUse            = New(CodeConflict, "Agent has recorded actions and cannot be deleted", http.StatusConflict)
)
