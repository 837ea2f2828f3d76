package parser

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mark3labs/openapi2mcp/internal/document"
)

// operationMethods is the fixed method iteration order for path items. The
// order is part of the normalizer's contract: generator output stability
// depends on endpoints appearing in document path order crossed with this
// sequence.
var operationMethods = []struct {
	key    string
	method HTTPMethod
}{
	{"get", MethodGet},
	{"post", MethodPost},
	{"put", MethodPut},
	{"patch", MethodPatch},
	{"delete", MethodDelete},
	{"head", MethodHead},
	{"options", MethodOptions},
}

// semanticTypes maps OpenAPI primitive types to the canonical semantic type
// names. Anything outside the table, including an absent type, maps to Any.
var semanticTypes = map[string]string{
	"string":  "str",
	"integer": "int",
	"number":  "float",
	"boolean": "bool",
	"array":   "list",
	"object":  "dict",
}

// maxSchemaDepth bounds recursive schema building. Inline documents cannot
// express true cycles without $ref, so the cap only guards pathological
// nesting; past it a node degrades to an empty placeholder.
const maxSchemaDepth = 64

// OpenAPIParser normalizes OpenAPI 3.0/3.1 documents, in JSON or YAML, from a
// URL or file source. Parse runs in two phases: load once, then a pure
// traversal of the loaded tree with no further I/O.
type OpenAPIParser struct {
	source   string
	settings Settings
	doc      *document.Map
}

// NewOpenAPIParser returns a parser for the given source.
func NewOpenAPIParser(source string, opts ...Option) *OpenAPIParser {
	settings := DefaultSettings()
	for _, opt := range opts {
		opt(&settings)
	}
	return &OpenAPIParser{source: strings.TrimSpace(source), settings: settings}
}

// Parse loads the document, validates its structure, and normalizes it into
// the canonical model. It either returns a complete APISpec or an error; there
// is no partial-result mode.
func (p *OpenAPIParser) Parse(ctx context.Context) (*APISpec, error) {
	raw, err := Load(ctx, p.source,
		WithHTTPTimeout(p.settings.HTTPTimeout),
		WithHTTPClient(p.settings.HTTPClient),
		WithLogger(p.settings.Logger),
	)
	if err != nil {
		return nil, err
	}
	p.doc, _ = raw.(*document.Map)

	if !p.Validate() {
		return nil, newValidationError("invalid OpenAPI specification", p.source, nil)
	}

	info := p.doc.Map("info")
	servers := p.extractServers()

	spec := &APISpec{
		Name:         info.StringOr("title", "Unknown API"),
		Version:      info.StringOr("version", "1.0.0"),
		Description:  info.String("description"),
		Servers:      servers,
		Endpoints:    p.extractEndpoints(),
		Auth:         p.extractAuth(),
		Contact:      stringMap(info.Map("contact")),
		License:      stringMap(info.Map("license")),
		ExternalDocs: p.doc.Map("externalDocs").String("url"),
		Tags:         p.extractTags(),
		SourceFormat: "openapi",
	}
	spec.Schemas, spec.SchemaOrder = p.extractSchemas()
	if len(servers) > 0 {
		spec.BaseURL = servers[0].URL
	}
	if IsURL(p.source) {
		spec.SourceURL = p.source
	}

	p.settings.Logger.Debug("normalized specification",
		zap.String("name", spec.Name),
		zap.String("version", spec.Version),
		zap.Int("endpoints", len(spec.Endpoints)))

	return spec, nil
}

// Validate checks the loaded document's minimal OpenAPI structure: non-empty,
// an openapi version starting with "3.", and info and paths sections. It
// reports false until Parse has loaded a document.
func (p *OpenAPIParser) Validate() bool {
	if p.doc.Len() == 0 {
		return false
	}
	version, _ := p.doc.Value("openapi").(string)
	if !strings.HasPrefix(version, "3.") {
		return false
	}
	return p.doc.Has("info") && p.doc.Has("paths")
}

func (p *OpenAPIParser) extractServers() []ServerConfig {
	var servers []ServerConfig
	for _, entry := range p.doc.Slice("servers") {
		m, ok := entry.(*document.Map)
		if !ok {
			continue
		}
		sc := ServerConfig{
			URL:         m.String("url"),
			Description: m.String("description"),
		}
		if vars := m.Map("variables"); vars.Len() > 0 {
			sc.Variables = make(map[string]string, vars.Len())
			for _, name := range vars.Keys() {
				sc.Variables[name] = asString(vars.Map(name).Value("default"))
			}
		}
		servers = append(servers, sc)
	}
	return servers
}

func (p *OpenAPIParser) extractEndpoints() []Endpoint {
	paths := p.doc.Map("paths")
	var endpoints []Endpoint
	for _, path := range paths.Keys() {
		item := paths.Map(path)
		if item == nil {
			continue
		}
		for _, om := range operationMethods {
			op := item.Map(om.key)
			if op == nil {
				continue
			}
			endpoints = append(endpoints, p.buildEndpoint(path, om.method, op))
		}
	}
	return endpoints
}

func (p *OpenAPIParser) buildEndpoint(path string, method HTTPMethod, op *document.Map) Endpoint {
	var params []Parameter
	for _, entry := range op.Slice("parameters") {
		if m, ok := entry.(*document.Map); ok {
			params = append(params, buildParameter(m))
		}
	}

	var requestBody *SchemaModel
	if rb := op.Map("requestBody"); rb != nil {
		requestBody = buildRequestBody(rb)
	}

	var response *SchemaModel
	responses := op.Map("responses")
	if r := responses.Map("200"); r != nil {
		response = buildResponseSchema(r)
	} else if r := responses.Map("201"); r != nil {
		response = buildResponseSchema(r)
	}

	return Endpoint{
		Path:         path,
		Method:       method,
		OperationID:  op.String("operationId"),
		Summary:      op.String("summary"),
		Description:  op.String("description"),
		Tags:         stringSlice(op.Slice("tags")),
		Parameters:   params,
		RequestBody:  requestBody,
		Response:     response,
		Deprecated:   op.Bool("deprecated"),
		ExternalDocs: op.Map("externalDocs").String("url"),
	}
}

func buildParameter(param *document.Map) Parameter {
	schema := param.Map("schema")

	loc := LocationQuery
	switch param.String("in") {
	case "query":
		loc = LocationQuery
	case "header":
		loc = LocationHeader
	case "path":
		loc = LocationPath
	case "cookie":
		loc = LocationCookie
	}

	semantic := "Any"
	if t, ok := semanticTypes[schema.String("type")]; ok {
		semantic = t
	}

	example := param.Value("example")
	if example == nil {
		example = schema.Value("example")
	}

	return Parameter{
		Name:        param.String("name"),
		In:          loc,
		Type:        semantic,
		Description: param.String("description"),
		Required:    param.Bool("required"),
		Default:     schema.Value("default"),
		Schema:      buildPropertySchema(param.String("name"), schema, 0),
		Example:     example,
	}
}

// buildRequestBody resolves the request-body schema, trying application/json
// first and application/x-www-form-urlencoded second. Other media types yield
// no schema.
func buildRequestBody(rb *document.Map) *SchemaModel {
	content := rb.Map("content")
	media := content.Map("application/json")
	if media == nil {
		media = content.Map("application/x-www-form-urlencoded")
	}
	if media == nil {
		return nil
	}
	return buildSchemaModel("RequestBody", media.Map("schema"))
}

// buildResponseSchema resolves the response schema from application/json
// content only.
func buildResponseSchema(resp *document.Map) *SchemaModel {
	media := resp.Map("content").Map("application/json")
	if media == nil {
		return nil
	}
	return buildSchemaModel("Response", media.Map("schema"))
}

func buildSchemaModel(name string, schema *document.Map) *SchemaModel {
	model := &SchemaModel{
		Name:        name,
		Description: schema.String("description"),
		Required:    stringSlice(schema.Slice("required")),
		Example:     schema.Value("example"),
	}
	if props := schema.Map("properties"); props.Len() > 0 {
		model.Properties = make(map[string]*PropertySchema, props.Len())
		for _, propName := range props.Keys() {
			model.Properties[propName] = buildPropertySchema(propName, props.Map(propName), 0)
			model.PropertyOrder = append(model.PropertyOrder, propName)
		}
	}
	return model
}

// buildPropertySchema walks a schema node depth-first. $ref pointers are
// carried verbatim and never resolved; composition keywords (allOf, oneOf,
// anyOf) are not interpreted.
func buildPropertySchema(name string, schema *document.Map, depth int) *PropertySchema {
	if depth > maxSchemaDepth {
		return &PropertySchema{Name: name}
	}
	if ref := schema.String("$ref"); ref != "" {
		return &PropertySchema{Name: name, Ref: ref}
	}

	prop := &PropertySchema{
		Name:        name,
		Type:        schema.StringOr("type", "string"),
		Description: schema.String("description"),
		Required:    schema.Bool("required"),
		Default:     schema.Value("default"),
		Enum:        schema.Slice("enum"),
		Format:      schema.String("format"),
		Pattern:     schema.String("pattern"),
		MinLength:   intPtr(schema.Value("minLength")),
		MaxLength:   intPtr(schema.Value("maxLength")),
		Minimum:     floatPtr(schema.Value("minimum")),
		Maximum:     floatPtr(schema.Value("maximum")),
		Example:     schema.Value("example"),
	}

	if prop.Type == "array" {
		if items := schema.Map("items"); items != nil {
			prop.Items = buildPropertySchema("item", items, depth+1)
		}
	}
	if prop.Type == "object" {
		if props := schema.Map("properties"); props.Len() > 0 {
			prop.Properties = make(map[string]*PropertySchema, props.Len())
			for _, key := range props.Keys() {
				prop.Properties[key] = buildPropertySchema(key, props.Map(key), depth+1)
				prop.PropertyOrder = append(prop.PropertyOrder, key)
			}
		}
	}
	return prop
}

// extractAuth classifies the first security scheme in document order. Multiple
// schemes are never merged; unsupported combinations yield no auth rather
// than an error.
func (p *OpenAPIParser) extractAuth() *AuthConfig {
	schemes := p.doc.Map("components").Map("securitySchemes")
	if schemes.Len() == 0 {
		return nil
	}
	scheme := schemes.Map(schemes.Keys()[0])

	switch strings.ToLower(scheme.String("type")) {
	case "apikey":
		loc := LocationHeader
		switch scheme.String("in") {
		case "query":
			loc = LocationQuery
		case "cookie":
			loc = LocationCookie
		}
		return &AuthConfig{
			Type:        AuthAPIKey,
			Name:        scheme.StringOr("name", "api_key"),
			In:          loc,
			Description: scheme.String("description"),
		}
	case "http":
		switch strings.ToLower(scheme.String("scheme")) {
		case "bearer":
			return &AuthConfig{Type: AuthBearer, Scheme: "Bearer", Description: scheme.String("description")}
		case "basic":
			return &AuthConfig{Type: AuthBasic, Scheme: "Basic", Description: scheme.String("description")}
		}
	case "oauth2":
		flows := scheme.Map("flows")
		flow := flows.Map("authorizationCode")
		if flow == nil {
			flow = flows.Map("implicit")
		}
		if flow == nil {
			flow = flows.Map("password")
		}
		if flow != nil {
			return &AuthConfig{
				Type:             AuthOAuth2,
				AuthorizationURL: flow.String("authorizationUrl"),
				TokenURL:         flow.String("tokenUrl"),
				Scopes:           stringMap(flow.Map("scopes")),
				Description:      scheme.String("description"),
			}
		}
	}
	return nil
}

func (p *OpenAPIParser) extractSchemas() (map[string]*SchemaModel, []string) {
	components := p.doc.Map("components").Map("schemas")
	if components.Len() == 0 {
		return nil, nil
	}
	schemas := make(map[string]*SchemaModel, components.Len())
	order := make([]string, 0, components.Len())
	for _, name := range components.Keys() {
		schemas[name] = buildSchemaModel(name, components.Map(name))
		order = append(order, name)
	}
	return schemas, order
}

func (p *OpenAPIParser) extractTags() []Tag {
	var tags []Tag
	for _, entry := range p.doc.Slice("tags") {
		if m, ok := entry.(*document.Map); ok {
			tags = append(tags, Tag{Name: m.String("name"), Description: m.String("description")})
		}
	}
	return tags
}

func stringSlice(values []any) []string {
	var out []string
	for _, v := range values {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func stringMap(m *document.Map) map[string]string {
	if m.Len() == 0 {
		return nil
	}
	out := make(map[string]string, m.Len())
	for _, key := range m.Keys() {
		out[key] = asString(m.Value(key))
	}
	return out
}

func asString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func intPtr(v any) *int {
	switch n := v.(type) {
	case int:
		return &n
	case float64:
		i := int(n)
		return &i
	}
	return nil
}

func floatPtr(v any) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case int:
		f := float64(n)
		return &f
	}
	return nil
}
