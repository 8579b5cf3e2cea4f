package domain

import (
	"encoding/json"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var supportedTools = []ToolID{ToolJiraCloud, ToolJiraServer, ToolAWSSSO}

func TestDefaultDocumentHasEmptySectionPerTool(t *testing.T) {
	t.Parallel()

	doc := DefaultDocument(supportedTools)

	assert.Equal(t, supportedTools, doc.Tools())
	for _, tool := range supportedTools {
		assert.Empty(t, doc.AccountNames(tool))
	}

	data, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jira_cloud":{"accounts":{}},"jira_server":{"accounts":{}},"aws_sso":{"accounts":{}}}`, string(data))
}

func TestReconcileKeepsUnsupportedSectionsAndAddsMissing(t *testing.T) {
	t.Parallel()

	doc := NewDocument()
	require.NoError(t, json.Unmarshal([]byte(`{
		"legacy_tool": {"accounts": {"old": {"token": "x"}}},
		"jira_server": {"accounts": {"opsA": {"url": "https://jira.local", "api_token": "t"}}}
	}`), doc))

	ReconcileSupportedTools(doc, supportedTools)

	assert.Equal(t, []ToolID{"legacy_tool", ToolJiraServer, ToolJiraCloud, ToolAWSSSO}, doc.Tools())
	assert.Equal(t, []string{"old"}, doc.AccountNames("legacy_tool"))
	assert.Equal(t, []string{"opsA"}, doc.AccountNames(ToolJiraServer))
}

func TestReconcileIsIdempotentProperty(t *testing.T) {
	candidates := []ToolID{ToolJiraCloud, ToolJiraServer, ToolAWSSSO, "legacy_tool", "other_tool"}

	build := func(picks []int) *Document {
		doc := NewDocument()
		for i, pick := range picks {
			tool := candidates[pick]
			if _, ok := doc.Section(tool); ok {
				continue
			}
			section := NewToolSection()
			section.Accounts.Set("acct", Credentials{"n": string(rune('a' + i%26))})
			doc.sections.Set(string(tool), section)
		}
		return doc
	}

	properties := gopter.NewProperties(nil)
	properties.Property("reconciling twice equals reconciling once", prop.ForAll(
		func(picks []int) bool {
			once := ReconcileSupportedTools(build(picks), supportedTools)
			twice := ReconcileSupportedTools(ReconcileSupportedTools(build(picks), supportedTools), supportedTools)

			onceJSON, err := json.Marshal(once)
			if err != nil {
				return false
			}
			twiceJSON, err := json.Marshal(twice)
			if err != nil {
				return false
			}
			return string(onceJSON) == string(twiceJSON)
		},
		gen.SliceOf(gen.IntRange(0, len(candidates)-1)),
	))
	properties.Property("no section is lost or duplicated", prop.ForAll(
		func(picks []int) bool {
			original := build(picks)
			before := original.Tools()
			after := ReconcileSupportedTools(original, supportedTools).Tools()

			seen := make(map[ToolID]int, len(after))
			for _, tool := range after {
				seen[tool]++
				if seen[tool] > 1 {
					return false
				}
			}
			for _, tool := range append(before, supportedTools...) {
				if seen[tool] != 1 {
					return false
				}
			}
			for i, tool := range before {
				if after[i] != tool {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, len(candidates)-1)),
	))

	properties.TestingRun(t)
}

func TestDocumentAddAccountRejectsDuplicateWithinTool(t *testing.T) {
	t.Parallel()

	doc := DefaultDocument(supportedTools)
	require.NoError(t, doc.AddAccount(ToolJiraCloud, "teamA", Credentials{"url": "u"}))

	err := doc.AddAccount(ToolJiraCloud, "teamA", Credentials{"url": "other"})
	require.ErrorIs(t, err, ErrAccountExists)

	creds, ok := doc.Account(ToolJiraCloud, "teamA")
	require.True(t, ok)
	assert.Equal(t, "u", creds["url"])

	require.NoError(t, doc.AddAccount(ToolJiraServer, "teamA", Credentials{"url": "s"}))
}

func TestDocumentAddAccountUnknownTool(t *testing.T) {
	t.Parallel()

	doc := DefaultDocument(supportedTools)
	err := doc.AddAccount("nope", "a", Credentials{})
	require.ErrorIs(t, err, ErrUnknownTool)
}

func TestDocumentDeleteAccount(t *testing.T) {
	t.Parallel()

	doc := DefaultDocument(supportedTools)
	require.NoError(t, doc.AddAccount(ToolJiraServer, "opsA", Credentials{"url": "a"}))
	require.NoError(t, doc.AddAccount(ToolJiraServer, "opsB", Credentials{"url": "b"}))

	removed, err := doc.DeleteAccount(ToolJiraServer, "opsA")
	require.NoError(t, err)
	assert.Equal(t, Credentials{"url": "a"}, removed)
	assert.Equal(t, []string{"opsB"}, doc.AccountNames(ToolJiraServer))

	_, err = doc.DeleteAccount(ToolJiraServer, "opsA")
	require.ErrorIs(t, err, ErrAccountNotFound)
}

func TestDocumentAccountReturnsCopy(t *testing.T) {
	t.Parallel()

	doc := DefaultDocument(supportedTools)
	require.NoError(t, doc.AddAccount(ToolJiraCloud, "teamA", Credentials{"url": "u"}))

	creds, _ := doc.Account(ToolJiraCloud, "teamA")
	creds["url"] = "changed"

	again, _ := doc.Account(ToolJiraCloud, "teamA")
	assert.Equal(t, "u", again["url"])
}

func TestDocumentJSONRoundTripPreservesInsertionOrder(t *testing.T) {
	t.Parallel()

	doc := DefaultDocument(supportedTools)
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, doc.AddAccount(ToolJiraCloud, name, Credentials{"url": name}))
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	require.NoError(t, err)

	decoded := NewDocument()
	require.NoError(t, json.Unmarshal(data, decoded))
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, decoded.AccountNames(ToolJiraCloud))
	assert.Equal(t, doc.Tools(), decoded.Tools())

	again, err := json.MarshalIndent(decoded, "", "  ")
	require.NoError(t, err)
	assert.Equal(t, string(data), string(again))
}

func TestDocumentUnmarshalNormalizesNullSections(t *testing.T) {
	t.Parallel()

	doc := NewDocument()
	require.NoError(t, json.Unmarshal([]byte(`{"jira_cloud": null, "jira_server": {"accounts": null}}`), doc))

	assert.Empty(t, doc.AccountNames(ToolJiraCloud))
	assert.Empty(t, doc.AccountNames(ToolJiraServer))

	data, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jira_cloud":{"accounts":{}},"jira_server":{"accounts":{}}}`, string(data))
}

func TestDocumentUnmarshalRejectsNonObjectRoot(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{`[]`, `"text"`, `42`} {
		doc := NewDocument()
		assert.Error(t, json.Unmarshal([]byte(raw), doc), raw)
	}
}

func TestValidateAccountName(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"opsA", "team-b", "dev.eu", "a..b"} {
		assert.NoError(t, ValidateAccountName(name), name)
	}
	for _, name := range []string{"", ".", "..", "../jira_server/opsA", "a/b", `a\b`, "../../../x"} {
		err := ValidateAccountName(name)
		assert.ErrorIs(t, err, ErrInvalidChoice, name)
		assert.True(t, IsUserInputError(err), name)
	}
}
