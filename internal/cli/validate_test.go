package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vox/internal/compiler"
	"github.com/roach88/vox/internal/ir"
)

func TestValidateValidPatterns(t *testing.T) {
	out, err := execute(t, "", "validate", testPatterns)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ 5 command(s), 0 dialect variant(s), 0 timeout override(s)")
	assert.Contains(t, out, "registry ")
}

func TestValidateValidPatternsJSON(t *testing.T) {
	out, err := execute(t, "", "--format", "json", "-p", testPatterns, "validate")
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, 1, resp.Data.Files)
	assert.Equal(t, 5, resp.Data.Commands)
	assert.NotEmpty(t, resp.Data.Hash)
	assert.Empty(t, resp.Data.Errors)
	assert.Empty(t, resp.Data.Warnings)
}

func TestValidateInvalidPatterns(t *testing.T) {
	out, err := execute(t, "", "--format", "json", "validate", "testdata/invalid")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)

	var codes []string
	for _, issue := range resp.Data.Errors {
		codes = append(codes, issue.Code)
	}
	assert.Contains(t, codes, compiler.ErrCategoryEmpty)
	assert.Contains(t, codes, compiler.ErrNoPatterns)
}

func TestValidateInvalidPatternsText(t *testing.T) {
	out, err := execute(t, "", "validate", "testdata/invalid")
	require.Error(t, err)
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, compiler.ErrCategoryEmpty)
}

func TestValidateNonExistentDirectory(t *testing.T) {
	_, err := execute(t, "", "validate", "testdata/nowhere")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), compiler.ErrCodeNotFound)
}

func TestRegistryIssuesSplitsJoinedErrors(t *testing.T) {
	p := ir.CommandPattern{
		Intent:     "SHOW_MENU",
		Category:   "navigation",
		Patterns:   []string{"menü anzeigen"},
		Confidence: 1,
	}
	other := p
	other.Category = ""

	_, err := compiler.CompileRegistry([]ir.CommandPattern{p, p, other}, nil)
	require.Error(t, err)

	issues := registryIssues(err)
	require.Greater(t, len(issues), 1)
	var codes []string
	for _, issue := range issues {
		codes = append(codes, issue.Code)
	}
	assert.Contains(t, codes, compiler.ErrDuplicateIntent)
}

func TestToIssue(t *testing.T) {
	issue := toIssue(compiler.ValidationError{Field: "SHOW_MENU.patterns", Message: "required", Code: compiler.ErrNoPatterns, Line: 7})
	assert.Equal(t, ValidationIssue{Code: compiler.ErrNoPatterns, Message: "SHOW_MENU.patterns: required", Line: 7}, issue)

	issue = toIssue(&compiler.LoadError{Code: compiler.ErrCodeNoFiles, Message: "no CUE files found in x"})
	assert.Equal(t, ValidationIssue{Code: compiler.ErrCodeNoFiles, Message: "no CUE files found in x"}, issue)
}
