package contract

import "context"

// Completer is the underlying model completion capability. Implementations
// perform exactly one completion call per invocation; tool descriptors, when
// given, are bound so the model may answer with tool-call requests instead of
// content.
type Completer interface {
	Complete(ctx context.Context, msgs []Message, tools []ToolDescriptor) (Message, error)

	// CompleteStream behaves like Complete but reports content increments
	// through onDelta as they arrive. The returned message carries the full
	// accumulated content and any tool-call requests.
	CompleteStream(ctx context.Context, msgs []Message, tools []ToolDescriptor, onDelta func(delta string)) (Message, error)
}

// Retriever answers a query with the k most relevant documents.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]Document, error)
}

// WebSearcher searches the open web.
type WebSearcher interface {
	Search(ctx context.Context, query string, k int) ([]Document, error)
}

// URLFetcher resolves a URL to the textual content of the page.
type URLFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// DocumentExtractor turns an uploaded document into plain text.
type DocumentExtractor interface {
	Extract(ctx context.Context, data []byte, filename string) (string, error)
}
