package parser

// Canonical API model. All parsers normalize their source format into these
// types; generators and the MCP server consume them and nothing else. Entities
// are constructed once per parse and treated as read-only afterwards.

import (
	"fmt"
	"strings"
)

// HTTPMethod is an upper-case HTTP method name.
type HTTPMethod string

const (
	MethodGet     HTTPMethod = "GET"
	MethodPost    HTTPMethod = "POST"
	MethodPut     HTTPMethod = "PUT"
	MethodPatch   HTTPMethod = "PATCH"
	MethodDelete  HTTPMethod = "DELETE"
	MethodHead    HTTPMethod = "HEAD"
	MethodOptions HTTPMethod = "OPTIONS"
)

// Location identifies where a parameter travels in an HTTP request.
type Location string

const (
	LocationQuery  Location = "query"
	LocationHeader Location = "header"
	LocationPath   Location = "path"
	LocationBody   Location = "body"
	LocationCookie Location = "cookie"
)

// AuthType enumerates the supported authentication kinds.
type AuthType string

const (
	AuthNone   AuthType = "none"
	AuthAPIKey AuthType = "api_key"
	AuthBearer AuthType = "bearer"
	AuthBasic  AuthType = "basic"
	AuthOAuth2 AuthType = "oauth2"
	AuthCustom AuthType = "custom"
)

// PropertySchema describes a JSON-like value: a primitive with constraints, an
// array with an item schema, or an object with nested property schemas.
// Nesting is unbounded apart from the builder's depth cap.
type PropertySchema struct {
	Name        string
	Type        string // string, number, integer, boolean, array, object
	Description string
	Required    bool
	Default     any
	Enum        []any
	Format      string // email, date-time, uri, ...
	Pattern     string
	MinLength   *int
	MaxLength   *int
	Minimum     *float64
	Maximum     *float64
	Items       *PropertySchema            // for arrays
	Properties  map[string]*PropertySchema // for objects
	// PropertyOrder lists Properties keys in document order.
	PropertyOrder []string
	// Ref carries an unresolved $ref pointer verbatim. Nothing resolves it;
	// a non-empty Ref means the node's structure is unknown to this model.
	Ref     string
	Example any
}

// SchemaModel is a named request, response, or component schema.
type SchemaModel struct {
	Name        string
	Description string
	Properties  map[string]*PropertySchema
	// PropertyOrder lists Properties keys in document order.
	PropertyOrder []string
	Required      []string
	Example       any
}

// Parameter is a single operation input.
type Parameter struct {
	Name        string
	In          Location
	Type        string // semantic type: str, int, float, bool, list, dict, Any
	Description string
	Required    bool
	Default     any
	Schema      *PropertySchema
	Example     any
}

// Endpoint is one API operation.
type Endpoint struct {
	Path         string // /pets/{petId}
	Method       HTTPMethod
	OperationID  string
	Summary      string
	Description  string
	Tags         []string
	Parameters   []Parameter
	RequestBody  *SchemaModel
	Response     *SchemaModel
	Deprecated   bool
	ExternalDocs string
}

// ToolName derives the endpoint's stable external identifier.
//
//	GET /pets          -> list_pets
//	GET /pets/{petId}  -> get_pets
//	POST /pets         -> create_pets
//	PUT /pets/{petId}  -> update_pets
//	DELETE /pets/{id}  -> delete_pets
//
// An operationId, when present, wins verbatim (lower-cased, spaces to
// underscores). Names are not de-duplicated across endpoints; callers that
// need uniqueness must guard against collisions themselves.
func (e Endpoint) ToolName() string {
	if e.OperationID != "" {
		return strings.ReplaceAll(strings.ToLower(e.OperationID), " ", "_")
	}

	resource := "resource"
	for _, seg := range strings.Split(e.Path, "/") {
		if seg == "" || strings.HasPrefix(seg, "{") {
			continue
		}
		resource = seg
	}

	var prefix string
	switch e.Method {
	case MethodGet:
		if strings.Contains(e.Path, "{") {
			prefix = "get"
		} else {
			prefix = "list"
		}
	case MethodPost:
		prefix = "create"
	case MethodPut, MethodPatch:
		prefix = "update"
	case MethodDelete:
		prefix = "delete"
	default:
		prefix = string(e.Method)
	}

	return strings.ToLower(prefix + "_" + resource)
}

// PathParameters returns only the path parameters.
func (e Endpoint) PathParameters() []Parameter {
	return e.parametersIn(LocationPath)
}

// QueryParameters returns only the query parameters.
func (e Endpoint) QueryParameters() []Parameter {
	return e.parametersIn(LocationQuery)
}

// HeaderParameters returns only the header parameters.
func (e Endpoint) HeaderParameters() []Parameter {
	return e.parametersIn(LocationHeader)
}

func (e Endpoint) parametersIn(loc Location) []Parameter {
	var out []Parameter
	for _, p := range e.Parameters {
		if p.In == loc {
			out = append(out, p)
		}
	}
	return out
}

// AuthConfig describes the API's authentication mechanism.
type AuthConfig struct {
	Type        AuthType
	Name        string   // credential parameter name, for API keys
	In          Location // credential location, for API keys
	Scheme      string   // HTTP auth scheme label: Bearer, Basic
	Description string

	// OAuth2 fields, populated from the selected flow only.
	AuthorizationURL string
	TokenURL         string
	Scopes           map[string]string
}

// ServerConfig is one server entry with its template variable defaults.
type ServerConfig struct {
	URL         string
	Description string
	Variables   map[string]string // variable name -> default value
}

// Tag is a tag descriptor from the source document.
type Tag struct {
	Name        string
	Description string
}

// APISpec is the unified, format-independent representation of an API. For the
// model to be usable downstream, Endpoints must be non-empty and
// PrimaryServer must resolve.
type APISpec struct {
	Name        string
	Version     string
	Description string
	BaseURL     string

	Servers   []ServerConfig
	Endpoints []Endpoint
	Auth      *AuthConfig

	Schemas map[string]*SchemaModel
	// SchemaOrder lists Schemas keys in document order.
	SchemaOrder []string

	Contact      map[string]string
	License      map[string]string
	ExternalDocs string
	Tags         []Tag

	SourceFormat string // openapi; future: graphql, rest, har
	SourceURL    string
}

// PrimaryServer returns the base URL generators should target, or "".
func (s *APISpec) PrimaryServer() string {
	if s.BaseURL != "" {
		return s.BaseURL
	}
	if len(s.Servers) > 0 {
		return s.Servers[0].URL
	}
	return ""
}

// EndpointByName returns the first endpoint whose tool name matches, or nil.
func (s *APISpec) EndpointByName(name string) *Endpoint {
	for i := range s.Endpoints {
		if s.Endpoints[i].ToolName() == name {
			return &s.Endpoints[i]
		}
	}
	return nil
}

// EndpointsByTag returns all endpoints carrying the given tag.
func (s *APISpec) EndpointsByTag(tag string) []Endpoint {
	var out []Endpoint
	for _, e := range s.Endpoints {
		for _, t := range e.Tags {
			if t == tag {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// Summary renders a short human-readable description of the parsed API.
func (s *APISpec) Summary() string {
	auth := string(AuthNone)
	if s.Auth != nil {
		auth = string(s.Auth.Type)
	}
	base := s.PrimaryServer()
	if base == "" {
		base = "Not specified"
	}
	return fmt.Sprintf("%s v%s\nEndpoints: %d\nAuth: %s\nBase URL: %s",
		s.Name, s.Version, len(s.Endpoints), auth, base)
}
