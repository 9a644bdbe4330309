package ir

// Version constants for the record schema and engine.
const (
	// SchemaVersion is the version of the compiled model format.
	SchemaVersion = "1"

	// EngineVersion is the cascade engine version.
	EngineVersion = "0.1.0"
)
