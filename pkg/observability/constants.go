package observability

const (
	AttrRunID           = "run.id"
	AttrRunIntent       = "run.intent"
	AttrToolName        = "tool.name"
	AttrLLMModel        = "llm.model"
	AttrLLMTokensInput  = "llm.tokens.input"
	AttrLLMTokensOutput = "llm.tokens.output"
	AttrEmbedModel      = "embed.model"
	AttrEmbedTokens     = "embed.tokens"
	AttrStoreProvider   = "store.provider"
	AttrStoreCollection = "store.collection"
	AttrErrorType       = "error.type"
	AttrHTTPMethod      = "http.method"
	AttrHTTPPath        = "http.path"
	AttrStatusCode      = "http.status_code"

	SpanEngineRun     = "engine.run"
	SpanLLMRequest    = "llm.request"
	SpanEmbedRequest  = "embed.request"
	SpanToolExecution = "tool.execution"
	SpanStoreQuery    = "store.query"
	SpanHTTPRequest   = "http.request"

	DefaultServiceName = "aileron"
)
