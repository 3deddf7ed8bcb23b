package diag

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBagSeparatesWarningsFromErrors(t *testing.T) {
	var bag Bag
	bag.Warnf(CategorySoft, 3, 1, "condition %q is always true", "x > 0")
	bag.Errorf(CategorySemantic, 5, 2, "unknown identifier %q", "y")

	require.True(t, bag.HasErrors())
	require.Len(t, bag.All(), 2)
	warnings := bag.Warnings()
	require.Len(t, warnings, 1)
	require.Equal(t, Warning, warnings[0].Severity)
}

func TestBagWithOnlyWarningsHasNoErrors(t *testing.T) {
	var bag Bag
	bag.Warnf(CategorySoft, 0, 0, "unreachable branch")
	require.False(t, bag.HasErrors())
	require.Len(t, bag.Warnings(), 1)
}

func TestDiagnosticStringIncludesPositionWhenKnown(t *testing.T) {
	d := Diagnostic{Severity: Error, Message: "boom", Line: 4, Col: 9}
	require.Contains(t, d.String(), "line 4")
	require.Contains(t, d.String(), "col 9")
}

func TestDiagnosticStringOmitsPositionWhenZero(t *testing.T) {
	d := Diagnostic{Severity: Warning, Message: "boom"}
	require.NotContains(t, d.String(), "line")
}

func TestWrapPreservesErrorsIsAgainstTheTaxonomySentinel(t *testing.T) {
	err := Wrap(ErrSemantic, errors.New("unknown identifier y"))
	require.True(t, errors.Is(err, ErrSemantic))
	require.False(t, errors.Is(err, ErrSyntax))
	require.Equal(t, "unknown identifier y", err.Error())
}

func TestSentinelForMapsEveryHardCategory(t *testing.T) {
	require.Equal(t, ErrSyntax, SentinelFor(CategorySyntax))
	require.Equal(t, ErrSemantic, SentinelFor(CategorySemantic))
	require.Equal(t, ErrResource, SentinelFor(CategoryResource))
	require.Equal(t, ErrShape, SentinelFor(CategoryShape))
	require.Nil(t, SentinelFor(CategorySoft))
}

func TestStringsRendersEveryDiagnostic(t *testing.T) {
	items := []Diagnostic{
		{Severity: Error, Message: "a"},
		{Severity: Warning, Message: "b", Line: 2, Col: 1},
	}
	rendered := Strings(items)
	require.Len(t, rendered, 2)
	require.Contains(t, rendered[0], "error: a")
	require.Contains(t, rendered[1], "warning: b")
}
