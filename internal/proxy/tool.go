package proxy

// Tool is a callable surface derived from one OpenAPI operation, in the
// shape the MCP server expects.
type Tool struct {
	Name        string
	Description string
	InputSchema InputSchema
}

// InputSchema is the JSON-schema object describing a tool's arguments.
type InputSchema struct {
	Type       string
	Properties map[string]any
	Required   []string
}

// InvocationDetails carries what the invoker needs to turn tool arguments
// into one upstream HTTP request.
type InvocationDetails struct {
	Method string
	Path   string

	// Parameter names by injection point; arguments not named in any of
	// these become the JSON request body.
	PathParams   []string
	QueryParams  []string
	HeaderParams []string

	// BodyParam, when set, names the single argument whose value is the
	// whole request body.
	BodyParam string

	ContentType string
}
