package testutil

import (
	"embed"

	"github.com/firefly-engineering/basebox/internal/build"
	"github.com/firefly-engineering/basebox/internal/config"
)

//go:embed fixtures/*.yaml fixtures/*.toml
var fixturesFS embed.FS

// LoadFixture loads a fixture file by name.
func LoadFixture(name string) ([]byte, error) {
	return fixturesFS.ReadFile("fixtures/" + name)
}

// LoadRecipeFixture loads and validates a recipe fixture.
func LoadRecipeFixture(name string) (*build.Recipe, error) {
	data, err := LoadFixture(name)
	if err != nil {
		return nil, err
	}
	return build.ParseRecipe(data)
}

// LoadConfigFixture loads and validates a config fixture.
func LoadConfigFixture(name string) (*config.Config, error) {
	data, err := LoadFixture(name)
	if err != nil {
		return nil, err
	}
	return config.Parse(data)
}

// ValidRecipe returns the valid recipe fixture.
func ValidRecipe() (*build.Recipe, error) {
	return LoadRecipeFixture("valid_recipe.yaml")
}

// InvalidRecipe returns the raw invalid recipe fixture. Parsing it fails.
func InvalidRecipe() ([]byte, error) {
	return LoadFixture("invalid_recipe.yaml")
}

// ValidConfig returns the valid config fixture.
func ValidConfig() (*config.Config, error) {
	return LoadConfigFixture("valid_config.toml")
}

// InvalidConfig returns the raw invalid config fixture. Parsing it fails.
func InvalidConfig() ([]byte, error) {
	return LoadFixture("invalid_config.toml")
}
