package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateInsertPatternCatalog_AcceptsWellFormedDocument(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "catalog.json", `{
		"module": {
			"match_pattern": ["name", {"rule_name": "func", "min": 0, "max": "inf"}],
			"child_rules": ["func"]
		}
	}`)

	assert.NoError(t, ValidateInsertPatternCatalog(path))
}

func TestValidateInsertPatternCatalog_RejectsMissingChildRules(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "catalog.json", `{
		"module": {
			"match_pattern": ["name"]
		}
	}`)

	err := ValidateInsertPatternCatalog(path)
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestValidateDialectAssociations_AcceptsWellFormedDocument(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "dialects.json", `{"arith": ["--arith-opt"], "scf": ["--scf-opt"]}`)

	assert.NoError(t, ValidateDialectAssociations(path))
}

func TestValidateDialectAssociations_RejectsNonArrayValue(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "dialects.json", `{"arith": "--arith-opt"}`)

	err := ValidateDialectAssociations(path)
	require.Error(t, err)
}
