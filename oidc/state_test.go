// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewState(t *testing.T) {
	t.Parallel()
	t.Run("valid", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		got, err := NewState()
		require.NoError(err)
		assert.NotEmpty(got.Id())
		assert.NotEmpty(got.Nonce())
		assert.NotEqualf(got.Id(), got.Nonce(), "%s id should not equal %s nonce", got.Id(), got.Nonce())
		assert.True(strings.HasPrefix(got.Id(), "st_"))
		assert.True(strings.HasPrefix(got.Nonce(), "n_"))
	})
	t.Run("unique", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s1, err := NewState()
		require.NoError(err)
		s2, err := NewState()
		require.NoError(err)
		assert.NotEqual(s1.Id(), s2.Id())
		assert.NotEqual(s1.Nonce(), s2.Nonce())
	})
}
