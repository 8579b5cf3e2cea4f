package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/phuslu/log"

	"github.com/digitalworks2020/devops-cli/internal/domain"
	"github.com/digitalworks2020/devops-cli/internal/ports"
)

const (
	addToken     = "add"
	deleteToken  = "delete"
	confirmToken = "yes"
)

// AccountFlow is the interactive pick/add/delete procedure over one loaded
// document. Every mutation is saved before control returns to the caller.
type AccountFlow struct {
	doc      *domain.Document
	store    ports.ConfigStore
	registry domain.Registry
	in       ports.InputSource
	out      io.Writer

	vault    *CredentialVault
	renderer ports.MenuRenderer
	profiles ports.ProfileLister
	logger   *log.Logger
}

type FlowOption func(*AccountFlow)

func WithVault(vault *CredentialVault) FlowOption {
	return func(f *AccountFlow) {
		f.vault = vault
	}
}

func WithRenderer(renderer ports.MenuRenderer) FlowOption {
	return func(f *AccountFlow) {
		if renderer != nil {
			f.renderer = renderer
		}
	}
}

func WithProfileLister(profiles ports.ProfileLister) FlowOption {
	return func(f *AccountFlow) {
		f.profiles = profiles
	}
}

func WithLogger(logger *log.Logger) FlowOption {
	return func(f *AccountFlow) {
		if logger != nil {
			f.logger = logger
		}
	}
}

func NewAccountFlow(doc *domain.Document, store ports.ConfigStore, registry domain.Registry, in ports.InputSource, out io.Writer, opts ...FlowOption) *AccountFlow {
	if out == nil {
		out = io.Discard
	}

	flow := &AccountFlow{
		doc:      doc,
		store:    store,
		registry: registry,
		in:       in,
		out:      out,
		renderer: PlainRenderer{},
		logger:   &log.Logger{Level: log.ErrorLevel, Writer: &log.IOWriter{Writer: io.Discard}},
	}
	for _, opt := range opts {
		opt(flow)
	}

	return flow
}

func (f *AccountFlow) Document() *domain.Document {
	return f.doc
}

// SelectTool re-prompts until the answer names a supported tool.
func (f *AccountFlow) SelectTool(ctx context.Context) (domain.ToolID, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		f.print(f.renderer.ToolMenu(f.registry.Tools()))
		answer, err := f.in.ReadLine("Select a tool by name: ")
		if err != nil {
			return "", err
		}

		if tool, ok := f.registry.ParseTool(answer); ok {
			return tool, nil
		}
		f.println("Invalid choice. Please try again.")
	}
}

// ListAccounts returns the account names of tool in insertion order.
func (f *AccountFlow) ListAccounts(tool domain.ToolID) []string {
	names := f.doc.AccountNames(tool)
	if names == nil {
		return []string{}
	}
	return names
}

func (f *AccountFlow) ShowAccounts(tool domain.ToolID) {
	schema, _ := f.registry.Schema(tool)
	f.print(f.renderer.AccountList(schema, f.ListAccounts(tool)))
}

// AddAccount collects a new bundle and saves the document. A duplicate name
// is rejected before any field is asked for.
func (f *AccountFlow) AddAccount(ctx context.Context, tool domain.ToolID) (string, domain.Credentials, error) {
	schema, ok := f.registry.Schema(tool)
	if !ok {
		return "", nil, fmt.Errorf("%w: %q", domain.ErrUnknownTool, tool)
	}

	answer, err := f.in.ReadLine(fmt.Sprintf("Enter a unique %s account name: ", schema.Title()))
	if err != nil {
		return "", nil, err
	}
	name := strings.TrimSpace(answer)
	if name == "" {
		f.println("Account name cannot be empty.")
		return "", nil, fmt.Errorf("%w: empty account name", domain.ErrInvalidChoice)
	}
	if err := domain.ValidateAccountName(name); err != nil {
		f.println(`Account name cannot contain '/' or '\' and cannot be '.' or '..'.`)
		return "", nil, err
	}
	if _, exists := f.doc.Account(tool, name); exists {
		f.println("Account already exists. Please choose another name.")
		return "", nil, fmt.Errorf("%w: %q", domain.ErrAccountExists, name)
	}

	creds := make(domain.Credentials, len(schema.Fields))
	for _, field := range schema.Fields {
		value, err := f.collectField(field, name)
		if err != nil {
			return "", nil, err
		}
		creds[field.Name] = value
	}

	if err := PostCollectorFor(tool, f.profiles).PostCollect(ctx, f.in, f.out, creds); err != nil {
		return "", nil, err
	}
	if err := f.registry.Complete(tool, creds); err != nil {
		return "", nil, err
	}

	sealed, err := f.vault.Seal(ctx, tool, name, creds)
	if err != nil {
		return "", nil, err
	}
	if err := f.doc.AddAccount(tool, name, sealed); err != nil {
		return "", nil, err
	}
	if err := f.store.Save(ctx, f.doc); err != nil {
		return "", nil, err
	}

	f.logger.Info().Str("tool", string(tool)).Str("account", name).Int("fields", len(creds)).Msg("account added")
	f.println(fmt.Sprintf("Account '%s' added.", name))
	return name, creds, nil
}

func (f *AccountFlow) collectField(field domain.FieldSpec, account string) (string, error) {
	prompt := fmt.Sprintf("Enter %s for '%s': ", field.Prompt, account)
	for {
		var (
			value string
			err   error
		)
		if field.Secure {
			value, err = f.in.ReadSecret(prompt)
		} else {
			value, err = f.in.ReadLine(prompt)
		}
		if err != nil {
			return "", err
		}

		if value = strings.TrimSpace(value); value != "" {
			return value, nil
		}
		f.println("A value is required.")
	}
}

// DeleteAccount removes an account only after the exact "yes" confirmation.
func (f *AccountFlow) DeleteAccount(ctx context.Context, tool domain.ToolID) error {
	if len(f.ListAccounts(tool)) == 0 {
		f.println("No accounts to delete.")
		return nil
	}

	answer, err := f.in.ReadLine("Enter the account name to delete: ")
	if err != nil {
		return err
	}
	name := strings.TrimSpace(answer)
	if _, ok := f.doc.Account(tool, name); !ok {
		f.println("Account not found.")
		return fmt.Errorf("%w: %q", domain.ErrAccountNotFound, name)
	}

	confirm, err := f.in.ReadLine(fmt.Sprintf("Are you sure you want to delete account '%s'? (yes/no): ", name))
	if err != nil {
		return err
	}
	if strings.TrimSpace(confirm) != confirmToken {
		f.println("Deletion cancelled.")
		return nil
	}

	removed, err := f.doc.DeleteAccount(tool, name)
	if err != nil {
		return err
	}
	if err := f.store.Save(ctx, f.doc); err != nil {
		return err
	}

	if err := f.vault.Purge(ctx, removed); err != nil {
		f.logger.Warn().Str("tool", string(tool)).Str("account", name).Err(err).Msg("stored secrets were not removed")
	}
	f.logger.Info().Str("tool", string(tool)).Str("account", name).Msg("account deleted")
	f.println(fmt.Sprintf("Account '%s' deleted.", name))
	return nil
}

// RunSelectionMenu loops until an existing, complete account is chosen and
// returns it with secret references resolved.
func (f *AccountFlow) RunSelectionMenu(ctx context.Context, tool domain.ToolID) (string, domain.Credentials, error) {
	schema, ok := f.registry.Schema(tool)
	if !ok {
		return "", nil, fmt.Errorf("%w: %q", domain.ErrUnknownTool, tool)
	}
	prompt := fmt.Sprintf("Choose an account by name, type '%s' to add a new %s account, or '%s' to remove an account: ", addToken, schema.Title(), deleteToken)

	for {
		if err := ctx.Err(); err != nil {
			return "", nil, err
		}

		f.ShowAccounts(tool)
		answer, err := f.in.ReadLine(prompt)
		if err != nil {
			return "", nil, err
		}

		choice := strings.TrimSpace(answer)
		switch choice {
		case addToken:
			if _, _, err := f.AddAccount(ctx, tool); err != nil && !domain.IsUserInputError(err) {
				return "", nil, err
			}
			continue
		case deleteToken:
			if err := f.DeleteAccount(ctx, tool); err != nil && !domain.IsUserInputError(err) {
				return "", nil, err
			}
			continue
		}

		stored, ok := f.doc.Account(tool, choice)
		if !ok {
			f.println("Invalid choice. Please try again.")
			continue
		}
		f.println(fmt.Sprintf("Selected account: %s", choice))

		creds, err := f.vault.Open(ctx, stored)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return "", nil, err
			}
			f.println(fmt.Sprintf("Could not load stored secrets for '%s': %v", choice, err))
			continue
		}
		if err := f.registry.Complete(tool, creds); err != nil {
			f.println(fmt.Sprintf("Account '%s' is incomplete: %v", choice, err))
			continue
		}

		return choice, creds, nil
	}
}

func (f *AccountFlow) print(text string) {
	if text == "" {
		return
	}
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	_, _ = io.WriteString(f.out, text)
}

func (f *AccountFlow) println(line string) {
	_, _ = fmt.Fprintln(f.out, line)
}
