package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/openapi-mcp/proxy/internal/spec"
)

// Generator converts a loaded Document into MCP tools plus the invocation
// details needed to proxy each call upstream.
type Generator struct {
	logger *slog.Logger
}

// NewGenerator creates a Generator.
func NewGenerator(logger *slog.Logger) *Generator {
	return &Generator{logger: logger.With("component", "tool_generator")}
}

// Generate walks every path/operation pair in the document and produces one
// tool per operation. Operations whose schemas cannot be converted are
// skipped with a warning rather than failing the whole document.
func (g *Generator) Generate(ctx context.Context, doc spec.Document) ([]Tool, []InvocationDetails, error) {
	data, err := json.Marshal(map[string]any(doc))
	if err != nil {
		return nil, nil, fmt.Errorf("cannot re-encode OpenAPI document: %w", err)
	}

	loader := &openapi3.Loader{Context: ctx, IsExternalRefsAllowed: true}
	parsed, err := loader.LoadFromData(data)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot build operation model from OpenAPI document: %w", err)
	}

	var tools []Tool
	var details []InvocationDetails
	generated, skipped := 0, 0

	if parsed.Paths == nil {
		g.logger.Warn("OpenAPI document has no paths.")
		return tools, details, nil
	}

	// Deterministic tool ordering keeps registration stable across reloads.
	pathMap := parsed.Paths.Map()
	paths := make([]string, 0, len(pathMap))
	for p := range pathMap {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, apiPath := range paths {
		pathItem := pathMap[apiPath]
		if pathItem == nil {
			continue
		}
		for method, operation := range pathItem.Operations() {
			if operation == nil {
				continue
			}
			log := g.logger.With(slog.String("path", apiPath), slog.String("method", method))

			tool, detail, err := g.buildTool(apiPath, method, pathItem, operation)
			if err != nil {
				log.Warn("Skipping operation.", slog.Any("error", err))
				skipped++
				continue
			}
			tools = append(tools, tool)
			details = append(details, detail)
			generated++
		}
	}

	g.logger.Info("Generated tools from OpenAPI document.",
		slog.Int("generated_count", generated),
		slog.Int("skipped_count", skipped))
	return tools, details, nil
}

func (g *Generator) buildTool(apiPath, method string, pathItem *openapi3.PathItem, operation *openapi3.Operation) (Tool, InvocationDetails, error) {
	name := sanitizeName(operation.OperationID)
	if name == "" {
		name = sanitizeName(method + " " + apiPath)
	}

	description := operation.Description
	if description == "" {
		description = operation.Summary
	}
	if description == "" {
		description = fmt.Sprintf("Executes %s %s", method, apiPath)
	}

	input := InputSchema{Type: "object", Properties: map[string]any{}}
	detail := InvocationDetails{
		Method:      method,
		Path:        apiPath,
		ContentType: "application/json",
	}

	params := append(openapi3.Parameters{}, pathItem.Parameters...)
	params = append(params, operation.Parameters...)
	for _, ref := range params {
		param := ref.Value
		if param == nil {
			continue
		}
		input.Properties[param.Name] = schemaToMap(param.Schema, param.Description)
		if param.Required {
			input.Required = append(input.Required, param.Name)
		}
		switch param.In {
		case openapi3.ParameterInPath:
			detail.PathParams = append(detail.PathParams, param.Name)
		case openapi3.ParameterInQuery:
			detail.QueryParams = append(detail.QueryParams, param.Name)
		case openapi3.ParameterInHeader:
			detail.HeaderParams = append(detail.HeaderParams, param.Name)
		default:
			return Tool{}, InvocationDetails{}, fmt.Errorf("unsupported parameter location %q for %s", param.In, param.Name)
		}
	}

	if operation.RequestBody != nil && operation.RequestBody.Value != nil {
		media := operation.RequestBody.Value.Content.Get("application/json")
		if media == nil {
			return Tool{}, InvocationDetails{}, fmt.Errorf("request body has no application/json content")
		}
		bodySchema := media.Schema
		if bodySchema != nil && bodySchema.Value != nil && bodySchema.Value.Type != nil &&
			bodySchema.Value.Type.Is("object") && len(bodySchema.Value.Properties) > 0 {
			// Flatten object bodies so each property becomes a tool argument.
			for propName, propRef := range bodySchema.Value.Properties {
				if _, exists := input.Properties[propName]; !exists {
					input.Properties[propName] = schemaToMap(propRef, "")
				}
			}
			input.Required = append(input.Required, bodySchema.Value.Required...)
		} else {
			input.Properties["body"] = schemaToMap(bodySchema, "Request body.")
			detail.BodyParam = "body"
			if operation.RequestBody.Value.Required {
				input.Required = append(input.Required, "body")
			}
		}
	}

	return Tool{Name: name, Description: description, InputSchema: input}, detail, nil
}

// schemaToMap renders a schema ref as a generic JSON-schema mapping for the
// MCP tool input. Missing schemas degrade to an unconstrained property.
func schemaToMap(ref *openapi3.SchemaRef, description string) map[string]any {
	result := map[string]any{}
	if ref != nil {
		if data, err := json.Marshal(ref); err == nil {
			_ = json.Unmarshal(data, &result)
		}
	}
	if description != "" {
		if _, exists := result["description"]; !exists {
			result["description"] = description
		}
	}
	if _, exists := result["type"]; !exists && len(result) == 0 {
		result["type"] = "string"
	}
	return result
}

var nameSanitizer = regexp.MustCompile(`[^a-z0-9_-]+`)

func sanitizeName(raw string) string {
	name := nameSanitizer.ReplaceAllString(strings.ToLower(raw), "-")
	return strings.Trim(name, "-")
}
