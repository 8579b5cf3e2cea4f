package domain

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Credentials is a flat field -> value bundle for one account.
type Credentials map[string]string

func (c Credentials) Clone() Credentials {
	if c == nil {
		return nil
	}
	clone := make(Credentials, len(c))
	for key, value := range c {
		clone[key] = value
	}
	return clone
}

// ToolSection holds the accounts of one tool in insertion order.
type ToolSection struct {
	Accounts *orderedmap.OrderedMap[string, Credentials] `json:"accounts"`
}

func NewToolSection() *ToolSection {
	return &ToolSection{Accounts: orderedmap.New[string, Credentials]()}
}

func (s *ToolSection) normalize() {
	if s.Accounts == nil {
		s.Accounts = orderedmap.New[string, Credentials]()
	}
	for pair := s.Accounts.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value == nil {
			pair.Value = Credentials{}
		}
	}
}

// Document is the persisted root: tool id -> section, in insertion order.
// Sections of tools that are no longer supported are kept as-is.
type Document struct {
	sections *orderedmap.OrderedMap[string, *ToolSection]
}

func NewDocument() *Document {
	return &Document{sections: orderedmap.New[string, *ToolSection]()}
}

// DefaultDocument returns a document with one empty section per tool.
func DefaultDocument(tools []ToolID) *Document {
	return ReconcileSupportedTools(NewDocument(), tools)
}

// ReconcileSupportedTools inserts an empty section for every tool that has
// none. Existing sections are never dropped, replaced or reordered, so
// applying it more than once is a no-op.
func ReconcileSupportedTools(doc *Document, tools []ToolID) *Document {
	if doc == nil {
		doc = NewDocument()
	}
	doc.init()

	for _, tool := range tools {
		if _, ok := doc.sections.Get(string(tool)); ok {
			continue
		}
		doc.sections.Set(string(tool), NewToolSection())
	}

	return doc
}

func (d *Document) init() {
	if d.sections == nil {
		d.sections = orderedmap.New[string, *ToolSection]()
	}
}

func (d *Document) Tools() []ToolID {
	d.init()
	tools := make([]ToolID, 0, d.sections.Len())
	for pair := d.sections.Oldest(); pair != nil; pair = pair.Next() {
		tools = append(tools, ToolID(pair.Key))
	}
	return tools
}

func (d *Document) Section(tool ToolID) (*ToolSection, bool) {
	d.init()
	return d.sections.Get(string(tool))
}

func (d *Document) AccountNames(tool ToolID) []string {
	section, ok := d.Section(tool)
	if !ok {
		return nil
	}

	names := make([]string, 0, section.Accounts.Len())
	for pair := section.Accounts.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

func (d *Document) Account(tool ToolID, name string) (Credentials, bool) {
	section, ok := d.Section(tool)
	if !ok {
		return nil, false
	}
	creds, ok := section.Accounts.Get(name)
	if !ok {
		return nil, false
	}
	return creds.Clone(), true
}

// ValidateAccountName rejects names that cannot serve as a single segment of
// a secret key: path separators and the "." and ".." names.
func ValidateAccountName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty account name", ErrInvalidChoice)
	case name == "." || name == "..":
		return fmt.Errorf("%w: account name %q is reserved", ErrInvalidChoice, name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: account name %q contains a path separator", ErrInvalidChoice, name)
	}
	return nil
}

func (d *Document) AddAccount(tool ToolID, name string, creds Credentials) error {
	section, ok := d.Section(tool)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTool, tool)
	}
	if _, exists := section.Accounts.Get(name); exists {
		return fmt.Errorf("%w: %q", ErrAccountExists, name)
	}

	section.Accounts.Set(name, creds.Clone())
	return nil
}

// DeleteAccount removes the account and returns its stored credentials.
func (d *Document) DeleteAccount(tool ToolID, name string) (Credentials, error) {
	section, ok := d.Section(tool)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, tool)
	}
	removed, ok := section.Accounts.Delete(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrAccountNotFound, name)
	}
	return removed, nil
}

func (d *Document) MarshalJSON() ([]byte, error) {
	d.init()
	return d.sections.MarshalJSON()
}

func (d *Document) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return errors.New("document root must be a JSON object")
	}

	sections := orderedmap.New[string, *ToolSection]()
	if err := sections.UnmarshalJSON(trimmed); err != nil {
		return err
	}

	for pair := sections.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value == nil {
			pair.Value = NewToolSection()
		}
		pair.Value.normalize()
	}

	d.sections = sections
	return nil
}
