package contract

import "errors"

var (
	ErrValidation  = errors.New("validation failed")
	ErrModelInvoke = errors.New("model invoke failed")

	// Registry construction errors, fatal at startup.
	ErrDuplicateTool = errors.New("duplicate tool name")
	ErrUnknownTool   = errors.New("unknown tool")

	// ErrToolExecution wraps a handler failure. Recoverable at the turn
	// level: the dispatcher converts it into a ledger-consistent error
	// result the model can react to.
	ErrToolExecution = errors.New("tool execution failed")

	// ErrSummarization aborts the current turn; memory is left in its
	// pre-summarization state.
	ErrSummarization = errors.New("summarization failed")

	// ErrOrchestration marks a malformed tool-call ledger. Fatal to the
	// turn; nothing from the broken round is appended or persisted.
	ErrOrchestration = errors.New("tool-call ledger is malformed")

	ErrTurnTimeout  = errors.New("turn timed out")
	ErrTurnExceeded = errors.New("turn exceeded round-trip ceiling")

	// ErrDocumentExtraction is pre-session: the upload failed before any
	// thread state was created.
	ErrDocumentExtraction = errors.New("document extraction failed")
)
