package tooling

import (
	"context"
	"encoding/json"

	"pokescout/internal/pokeapi"
)

// QueryFilter selects Pokémon matching any of the listed values for one
// attribute.
type QueryFilter struct {
	Attribute string   `json:"attribute" jsonschema:"enum=type,enum=habitat,enum=color,enum=egg-group,enum=shape,enum=growth-rate,description=Attribute to filter on"`
	Values    []string `json:"values" jsonschema:"minItems=1,description=Attribute values; a Pokémon matches the filter if it has any of them"`
}

// CrossQueryInput represents the input structure for cross-attribute queries.
type CrossQueryInput struct {
	Filters []QueryFilter `json:"filters" jsonschema:"minItems=1,description=Filters to intersect; a Pokémon must match every filter"`
}

// CrossQueryTool finds Pokémon matching a combination of attribute filters,
// e.g. grass-type Pokémon with a ball shape.
type CrossQueryTool struct {
	client *pokeapi.Client
}

// NewCrossQueryTool creates a CrossQueryTool over client.
func NewCrossQueryTool(client *pokeapi.Client) *CrossQueryTool {
	return &CrossQueryTool{client: client}
}

func (t *CrossQueryTool) Name() string { return "query_pokemon" }

func (t *CrossQueryTool) Description() string {
	return "Finds Pokémon matching every given attribute filter (type, habitat, color, egg-group, shape, growth-rate); values within one filter are alternatives"
}

func (t *CrossQueryTool) Definition() string {
	return GenerateSchema(CrossQueryInput{})
}

func (t *CrossQueryTool) Call(ctx context.Context, args json.RawMessage) (any, error) {
	var input CrossQueryInput
	if err := decodeToolInput(args, t.Definition(), &input); err != nil {
		return nil, err
	}
	filters := make([]pokeapi.AttributeFilter, len(input.Filters))
	for i, f := range input.Filters {
		filters[i] = pokeapi.AttributeFilter{Attribute: f.Attribute, Values: f.Values}
	}
	return t.client.CrossQuery(ctx, filters)
}
