package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signon/internal/directory"
	dErrors "signon/pkg/domain-errors"
)

func twoCandidates() Candidates {
	return Candidates{Identities: []Identity{
		{Username: "JSMITH", Source: directory.SourceAuth},
		{Username: "JSMITH_ADM", Source: directory.SourceNomis},
	}}
}

func TestPresent(t *testing.T) {
	t.Run("lists one option per candidate", func(t *testing.T) {
		prompt := Present(twoCandidates())
		require.Len(t, prompt.Options, 2)
		assert.Equal(t, PromptOption{Source: directory.SourceAuth, Username: "JSMITH"}, prompt.Options[0])
		assert.Equal(t, PromptOption{Source: directory.SourceNomis, Username: "JSMITH_ADM"}, prompt.Options[1])
		assert.False(t, prompt.NoAccounts)
		assert.False(t, prompt.Implicit())
	})

	t.Run("no candidates is a no-accounts outcome, not an error", func(t *testing.T) {
		prompt := Present(Candidates{})
		assert.True(t, prompt.NoAccounts)
		assert.Empty(t, prompt.Options)
	})

	t.Run("single candidate needs no picker", func(t *testing.T) {
		prompt := Present(Candidates{Identities: []Identity{{Username: "JSMITH", Source: directory.SourceAuth}}})
		assert.True(t, prompt.Implicit())
	})
}

func TestChoose(t *testing.T) {
	t.Run("selection within the offered set resolves", func(t *testing.T) {
		id, err := Choose(twoCandidates(), directory.SourceNomis, "jsmith_adm")
		require.NoError(t, err)
		assert.Equal(t, "JSMITH_ADM", id.Username)
	})

	t.Run("selection outside the offered set is rejected", func(t *testing.T) {
		_, err := Choose(twoCandidates(), directory.SourceDelius, "JSMITH")
		assert.True(t, dErrors.Is(err, dErrors.CodeInvalidSelection))

		_, err = Choose(twoCandidates(), directory.SourceAuth, "SOMEONE_ELSE")
		assert.True(t, dErrors.Is(err, dErrors.CodeInvalidSelection))
	})
}
