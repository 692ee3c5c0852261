package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 11000-11999: Sandbox module errors
// 12000-12999: Storage module errors
// 13000-13999: Language module errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	Timeout             ErrorCode = 10004

	// Configuration errors (10100-10199)
	ConfigError   ErrorCode = 10100
	ConfigInvalid ErrorCode = 10101

	// Validation errors (10300-10399)
	ValidationFailed   ErrorCode = 10300
	RequiredFieldEmpty ErrorCode = 10301

	// ========== Sandbox Module Errors (11000-11999) ==========

	// Sandbox lifecycle (11000-11099)
	SandboxError         ErrorCode = 11000
	SandboxNotReady      ErrorCode = 11001
	SandboxCleanupFailed ErrorCode = 11002

	// Sandbox filesystem (11100-11199)
	FileExists           ErrorCode = 11100
	FileNotFound         ErrorCode = 11101
	PathEscape           ErrorCode = 11102
	UnsupportedOperation ErrorCode = 11103

	// Sandbox execution (11200-11299)
	ExecuteFailed  ErrorCode = 11200
	ProcessRunning ErrorCode = 11201

	// ========== Storage Module Errors (12000-12999) ==========

	StorageError     ErrorCode = 12000
	DigestMismatch   ErrorCode = 12001
	DigestInvalid    ErrorCode = 12002
	BlobNotFound     ErrorCode = 12003
	CacheError       ErrorCode = 12100
	CacheUnavailable ErrorCode = 12101

	// ========== Language Module Errors (13000-13999) ==========

	LanguageNotFound  ErrorCode = 13000
	LanguageAmbiguous ErrorCode = 13001
	TemplateInvalid   ErrorCode = 13002
)

// errorMessages maps error codes to their default messages
var errorMessages = map[ErrorCode]string{
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	Timeout:             "Operation timed out",

	ConfigError:   "Configuration error",
	ConfigInvalid: "Configuration value is invalid",

	ValidationFailed:   "Validation failed",
	RequiredFieldEmpty: "Required field is empty",

	SandboxError:         "Sandbox internal error",
	SandboxNotReady:      "Sandbox is not initialized",
	SandboxCleanupFailed: "Sandbox cleanup failed",

	FileExists:           "File already exists in sandbox",
	FileNotFound:         "File not found in sandbox",
	PathEscape:           "Path escapes the sandbox root",
	UnsupportedOperation: "Operation is not supported",

	ExecuteFailed:  "Command execution failed",
	ProcessRunning: "A process is already running in this sandbox",

	StorageError:     "Storage operation failed",
	DigestMismatch:   "Blob content does not match its digest",
	DigestInvalid:    "Digest is not a valid content identifier",
	BlobNotFound:     "Blob not found in storage",
	CacheError:       "Cache operation failed",
	CacheUnavailable: "Cache is not available",

	LanguageNotFound:  "Language is not registered",
	LanguageAmbiguous: "Extension matches more than one language",
	TemplateInvalid:   "Command template is invalid",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}
