package domain

import (
	"fmt"
	"sort"
	"strings"
)

const HiddenValue = "<hidden>"

// Registry is the immutable, process-wide set of supported tools. It is built
// once at startup and passed to the store, the session flow and the dispatcher.
type Registry struct {
	tools []ToolSchema
	index map[ToolID]int
}

func NewRegistry(schemas ...ToolSchema) (Registry, error) {
	registry := Registry{
		tools: make([]ToolSchema, 0, len(schemas)),
		index: make(map[ToolID]int, len(schemas)),
	}

	for _, schema := range schemas {
		id := ToolID(strings.TrimSpace(string(schema.ID)))
		if id == "" {
			return Registry{}, fmt.Errorf("tool id is required")
		}
		if id != ToolID(strings.ToLower(string(id))) {
			return Registry{}, fmt.Errorf("tool id %q must be lower case", id)
		}
		if _, ok := registry.index[id]; ok {
			return Registry{}, fmt.Errorf("duplicate tool id %q", id)
		}

		seen := make(map[string]struct{}, len(schema.Fields))
		for _, field := range schema.Fields {
			if strings.TrimSpace(field.Name) == "" {
				return Registry{}, fmt.Errorf("tool %q: field name is required", id)
			}
			if _, ok := seen[field.Name]; ok {
				return Registry{}, fmt.Errorf("tool %q: duplicate field %q", id, field.Name)
			}
			seen[field.Name] = struct{}{}
		}

		schema.ID = id
		registry.index[id] = len(registry.tools)
		registry.tools = append(registry.tools, schema.clone())
	}

	return registry, nil
}

func DefaultRegistry() Registry {
	jiraOperations := []OperationSpec{
		{Key: "current_sprint_name", Label: "Display current sprint name"},
		{Key: "my_issues_in_sprint", Label: "List my issues in current sprint"},
		{Key: "sprint_sp_stats", Label: "Get SP for last closed sprints"},
	}

	registry, err := NewRegistry(
		ToolSchema{
			ID:          ToolJiraCloud,
			DisplayName: "Jira Cloud",
			Fields: []FieldSpec{
				{Name: "url", Prompt: "Cloud URL"},
				{Name: "username", Prompt: "Cloud username"},
				{Name: "api_token", Prompt: "Cloud API token", Secure: true},
			},
			Operations: jiraOperations,
		},
		ToolSchema{
			ID:          ToolJiraServer,
			DisplayName: "Jira Server",
			Fields: []FieldSpec{
				{Name: "url", Prompt: "Server URL"},
				{Name: "api_token", Prompt: "Server API token", Secure: true},
			},
			Operations: jiraOperations,
		},
		ToolSchema{
			ID:          ToolAWSSSO,
			DisplayName: "AWS SSO",
			Fields: []FieldSpec{
				{Name: "profile", Prompt: "AWS CLI profile"},
			},
			Operations: []OperationSpec{
				{Key: "current_month_cost", Label: "Get current month cost"},
				{Key: "previous_month_cost", Label: "Get previous month cost"},
				{Key: "list_instances", Label: "List EC2 instances by state"},
			},
		},
	)
	if err != nil {
		panic(err)
	}

	return registry
}

func (r Registry) Tools() []ToolSchema {
	tools := make([]ToolSchema, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool.clone())
	}
	return tools
}

func (r Registry) IDs() []ToolID {
	ids := make([]ToolID, 0, len(r.tools))
	for _, tool := range r.tools {
		ids = append(ids, tool.ID)
	}
	return ids
}

func (r Registry) Schema(id ToolID) (ToolSchema, bool) {
	i, ok := r.index[id]
	if !ok {
		return ToolSchema{}, false
	}
	return r.tools[i].clone(), true
}

// ParseTool matches raw user input against the supported tool ids, ignoring
// surrounding whitespace and case.
func (r Registry) ParseTool(raw string) (ToolID, bool) {
	id := ToolID(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := r.index[id]; !ok {
		return "", false
	}
	return id, true
}

// Complete reports an error wrapping ErrIncompleteCredentials when any schema
// field is missing or blank.
func (r Registry) Complete(id ToolID, creds Credentials) error {
	schema, ok := r.Schema(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTool, id)
	}

	var missing []string
	for _, field := range schema.Fields {
		if strings.TrimSpace(creds[field.Name]) == "" {
			missing = append(missing, field.Name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrIncompleteCredentials, strings.Join(missing, ", "))
	}

	return nil
}

// Mask returns a copy of creds with every secure field replaced by HiddenValue.
func (r Registry) Mask(id ToolID, creds Credentials) Credentials {
	schema, _ := r.Schema(id)
	masked := make(Credentials, len(creds))
	for key, value := range creds {
		if schema.IsSecure(key) {
			value = HiddenValue
		}
		masked[key] = value
	}
	return masked
}

// SortedKeys lists field names with schema fields first, in schema order,
// followed by any extra keys alphabetically.
func (r Registry) SortedKeys(id ToolID, creds Credentials) []string {
	schema, _ := r.Schema(id)
	keys := make([]string, 0, len(creds))
	seen := make(map[string]struct{}, len(creds))
	for _, field := range schema.Fields {
		if _, ok := creds[field.Name]; ok {
			keys = append(keys, field.Name)
			seen[field.Name] = struct{}{}
		}
	}

	extra := make([]string, 0, len(creds))
	for key := range creds {
		if _, ok := seen[key]; !ok {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)

	return append(keys, extra...)
}
