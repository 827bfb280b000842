package grpcclient

import "time"

// Client configuration defaults.
const (
	DefaultKeepaliveTime    = 10 * time.Second
	DefaultKeepaliveTimeout = 3 * time.Second

	DefaultHealthCheckInterval = 5 * time.Second
	HealthCheckTimeout         = 2 * time.Second

	// Binarized crops are small; this leaves room for a full-screen PNG.
	MaxMessageSize = 16 << 20
)

// Recognizer service identity.
const (
	ServiceName       = "ocr.v1.TextRecognizer"
	ExtractTextMethod = "/" + ServiceName + "/ExtractText"

	// LanguageKey carries the recognition language in request metadata.
	LanguageKey = "x-ocr-language"
)
