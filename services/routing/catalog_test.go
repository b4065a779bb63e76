package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFamilyForModel(t *testing.T) {
	tests := []struct {
		model  string
		family ModelFamily
		known  bool
	}{
		{"gpt-3.5-turbo-16k", FamilyGPT35Turbo16K, true},
		{"gpt-3.5-turbo-16k-0613", FamilyGPT35Turbo16K, true},
		{"gpt-4", FamilyGPT4, true},
		{"gpt-4-0613", FamilyGPT4, true},
		{"gpt-4-32k", FamilyGPT432K, true},
		{"gpt-4-32k-0613", FamilyGPT432K, true},
		{"gpt-3.5-turbo", "", false},
		{"gpt-4-turbo", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			family, ok := FamilyForModel(tt.model)
			assert.Equal(t, tt.known, ok)
			assert.Equal(t, tt.family, family)
		})
	}
}

func TestDeploymentsResolve(t *testing.T) {
	deployments := Deployments{
		FamilyGPT4:          "gpt4-prod",
		FamilyGPT35Turbo16K: "gpt35-prod",
		// FamilyGPT432K not provisioned
	}

	t.Run("aliases of a family share one deployment", func(t *testing.T) {
		base, ok := deployments.Resolve("gpt-4")
		require.True(t, ok)
		dated, ok := deployments.Resolve("gpt-4-0613")
		require.True(t, ok)
		assert.Equal(t, base, dated)
		assert.Equal(t, "gpt4-prod", base)
	})

	t.Run("unknown alias fails closed", func(t *testing.T) {
		_, ok := deployments.Resolve("gpt-5")
		assert.False(t, ok)
	})

	t.Run("unprovisioned family fails closed", func(t *testing.T) {
		_, ok := deployments.Resolve("gpt-4-32k")
		assert.False(t, ok)
	})

	t.Run("empty deployment id fails closed", func(t *testing.T) {
		d := Deployments{FamilyGPT4: ""}
		_, ok := d.Resolve("gpt-4")
		assert.False(t, ok)
	})

	t.Run("nil deployments resolve nothing", func(t *testing.T) {
		var d Deployments
		_, ok := d.Resolve("gpt-4")
		assert.False(t, ok)
	})
}

func TestKnownModels(t *testing.T) {
	models := KnownModels()
	require.Len(t, models, 6)
	assert.Contains(t, models, "gpt-4")
	assert.Contains(t, models, "gpt-3.5-turbo-16k-0613")

	// Stable order for the models listing endpoint.
	again := KnownModels()
	assert.Equal(t, models, again)
}
