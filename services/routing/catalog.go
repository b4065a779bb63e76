package routing

import "sort"

// ModelFamily groups the historical aliases of one logical model. Azure
// deployments are provisioned per family, so every alias in a family must
// resolve to the same deployment identifier.
type ModelFamily string

const (
	FamilyGPT35Turbo16K ModelFamily = "gpt-3.5-turbo-16k"
	FamilyGPT4          ModelFamily = "gpt-4"
	FamilyGPT432K       ModelFamily = "gpt-4-32k"
)

// modelFamilies maps every known model alias to its family. Each alias set is
// deliberate: dated snapshots belong to the same family as their base name.
// Unknown names are not guessed into a family; resolution fails closed.
var modelFamilies = map[string]ModelFamily{
	"gpt-3.5-turbo-16k":      FamilyGPT35Turbo16K,
	"gpt-3.5-turbo-16k-0613": FamilyGPT35Turbo16K,
	"gpt-4":                  FamilyGPT4,
	"gpt-4-0613":             FamilyGPT4,
	"gpt-4-32k":              FamilyGPT432K,
	"gpt-4-32k-0613":         FamilyGPT432K,
}

// FamilyForModel returns the family a model alias belongs to.
func FamilyForModel(model string) (ModelFamily, bool) {
	family, ok := modelFamilies[model]
	return family, ok
}

// KnownModels returns all model aliases the catalog resolves.
func KnownModels() []string {
	models := make([]string, 0, len(modelFamilies))
	for model := range modelFamilies {
		models = append(models, model)
	}
	sort.Strings(models)
	return models
}

// Deployments holds the secondary provider's per-family deployment
// identifiers. A family with an empty identifier is not provisioned there
// and is skipped, never attempted with a blank deployment.
type Deployments map[ModelFamily]string

// Resolve maps a requested model alias to the secondary provider's
// deployment identifier. The primary provider needs no translation, so this
// lookup only gates the secondary tiers.
func (d Deployments) Resolve(model string) (string, bool) {
	family, ok := FamilyForModel(model)
	if !ok {
		return "", false
	}
	id, ok := d[family]
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
