package langserver

// Protocol lifecycle methods.
const (
	MethodInitialize  = "initialize"
	MethodInitialized = "initialized"
	MethodShutdown    = "shutdown"
	MethodExit        = "exit"
)

// Document synchronization methods.
const (
	MethodDidOpen               = "textDocument/didOpen"
	MethodDidChange             = "textDocument/didChange"
	MethodDidClose              = "textDocument/didClose"
	MethodDidChangeWatchedFiles = "workspace/didChangeWatchedFiles"
)

// Language feature methods.
const (
	MethodDocumentSymbol        = "textDocument/documentSymbol"
	MethodReferences            = "textDocument/references"
	MethodRename                = "textDocument/rename"
	MethodPrepareCallHierarchy  = "textDocument/prepareCallHierarchy"
	MethodCallHierarchyIncoming = "callHierarchy/incomingCalls"
	MethodCallHierarchyOutgoing = "callHierarchy/outgoingCalls"
)
