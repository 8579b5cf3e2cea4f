package domain

type ToolID string

const (
	ToolJiraCloud  ToolID = "jira_cloud"
	ToolJiraServer ToolID = "jira_server"
	ToolAWSSSO     ToolID = "aws_sso"
)

// FieldSpec describes one credential field collected when an account is added.
// Secure values are read without echo and never rendered in cleartext.
type FieldSpec struct {
	Name   string
	Prompt string
	Secure bool
}

type OperationSpec struct {
	Key   string
	Label string
}

type ToolSchema struct {
	ID          ToolID
	DisplayName string
	Fields      []FieldSpec
	Operations  []OperationSpec
}

func (s ToolSchema) Title() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return string(s.ID)
}

func (s ToolSchema) IsSecure(field string) bool {
	for _, spec := range s.Fields {
		if spec.Name == field {
			return spec.Secure
		}
	}
	return false
}

func (s ToolSchema) clone() ToolSchema {
	s.Fields = append([]FieldSpec(nil), s.Fields...)
	s.Operations = append([]OperationSpec(nil), s.Operations...)
	return s
}
