package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/writing-eval/internal/common"
)

func TestBuild_KeepsOrder(t *testing.T) {
	ps, err := Build([]common.ProviderConfig{
		{Name: "gemini", Model: "g"},
		{Name: "openai", APIKey: "k", Model: "o"},
		{Name: "anthropic", Model: "a"},
	}, nil)
	require.NoError(t, err)
	require.Len(t, ps, 3)
	assert.Equal(t, "gemini", ps[0].Name())
	assert.Equal(t, "openai", ps[1].Name())
	assert.Equal(t, "o", ps[1].Model())
	assert.Equal(t, "anthropic", ps[2].Name())
}

func TestBuild_Errors(t *testing.T) {
	_, err := Build(nil, nil)
	require.Error(t, err)
	assert.Equal(t, common.CodeConfig, common.CodeOf(err))

	_, err = Build([]common.ProviderConfig{{Name: "mystery"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown provider "mystery"`)
}
