package tooling

import (
	"context"
	"encoding/json"
	"fmt"

	"pokescout/internal/pokeapi"
)

// PokedexTools returns the full statically-declared Pokédex tool set over the
// given client, in the order they are offered to the reasoning service.
func PokedexTools(client *pokeapi.Client) []Tool {
	return []Tool{
		&PokemonTool{client: client},
		&SpeciesTool{client: client},
		&TypeTool{client: client},
		&EvolutionChainTool{client: client},
		&MoveTool{client: client},
	}
}

// =============================================================================
// lookup_pokemon
// =============================================================================

// PokemonInput represents the input structure for Pokémon lookups.
type PokemonInput struct {
	Name string `json:"name" jsonschema:"minLength=1,description=Pokémon name or national dex number"`
}

// PokemonTool fetches a Pokémon's stats, types, and abilities.
type PokemonTool struct {
	client *pokeapi.Client
}

func (t *PokemonTool) Name() string { return "lookup_pokemon" }

func (t *PokemonTool) Description() string {
	return "Looks up a Pokémon by name and returns its stats, types, abilities, height, and weight"
}

func (t *PokemonTool) Definition() string {
	return GenerateSchema(PokemonInput{})
}

func (t *PokemonTool) Call(ctx context.Context, args json.RawMessage) (any, error) {
	var input PokemonInput
	if err := decodeToolInput(args, t.Definition(), &input); err != nil {
		return nil, err
	}
	return t.client.Pokemon(ctx, input.Name)
}

// =============================================================================
// lookup_species
// =============================================================================

// SpeciesInput represents the input structure for species lookups.
type SpeciesInput struct {
	Name string `json:"name" jsonschema:"minLength=1,description=Pokémon species name"`
}

// SpeciesTool fetches species-level data (color, habitat, egg groups,
// evolution chain reference).
type SpeciesTool struct {
	client *pokeapi.Client
}

func (t *SpeciesTool) Name() string { return "lookup_species" }

func (t *SpeciesTool) Description() string {
	return "Looks up a Pokémon species: color, habitat, shape, growth rate, egg groups, legendary status, and its evolution chain id"
}

func (t *SpeciesTool) Definition() string {
	return GenerateSchema(SpeciesInput{})
}

func (t *SpeciesTool) Call(ctx context.Context, args json.RawMessage) (any, error) {
	var input SpeciesInput
	if err := decodeToolInput(args, t.Definition(), &input); err != nil {
		return nil, err
	}
	return t.client.Species(ctx, input.Name)
}

// =============================================================================
// lookup_type
// =============================================================================

// TypeInput represents the input structure for type lookups.
type TypeInput struct {
	Name string `json:"name" jsonschema:"minLength=1,description=Pokémon type name such as fire or electric"`
}

// TypeTool fetches a type's damage relations and member Pokémon.
type TypeTool struct {
	client *pokeapi.Client
}

func (t *TypeTool) Name() string { return "lookup_type" }

func (t *TypeTool) Description() string {
	return "Looks up a Pokémon type and returns its damage relations and the Pokémon that have it"
}

func (t *TypeTool) Definition() string {
	return GenerateSchema(TypeInput{})
}

func (t *TypeTool) Call(ctx context.Context, args json.RawMessage) (any, error) {
	var input TypeInput
	if err := decodeToolInput(args, t.Definition(), &input); err != nil {
		return nil, err
	}
	return t.client.Type(ctx, input.Name)
}

// =============================================================================
// lookup_evolution_chain
// =============================================================================

// EvolutionChainInput represents the input structure for evolution chain lookups.
type EvolutionChainInput struct {
	ID int `json:"id" jsonschema:"minimum=1,description=Evolution chain id (from lookup_species)"`
}

// EvolutionChainTool fetches a full evolution chain by id.
type EvolutionChainTool struct {
	client *pokeapi.Client
}

func (t *EvolutionChainTool) Name() string { return "lookup_evolution_chain" }

func (t *EvolutionChainTool) Description() string {
	return "Looks up an evolution chain by id and returns the tree of species it links"
}

func (t *EvolutionChainTool) Definition() string {
	return GenerateSchema(EvolutionChainInput{})
}

func (t *EvolutionChainTool) Call(ctx context.Context, args json.RawMessage) (any, error) {
	var input EvolutionChainInput
	if err := decodeToolInput(args, t.Definition(), &input); err != nil {
		return nil, err
	}
	return t.client.EvolutionChain(ctx, input.ID)
}

// =============================================================================
// lookup_move
// =============================================================================

// MoveInput represents the input structure for move lookups.
type MoveInput struct {
	Name string `json:"name" jsonschema:"minLength=1,description=Move name such as thunderbolt"`
}

// MoveTool fetches a move's power, accuracy, PP, and type.
type MoveTool struct {
	client *pokeapi.Client
}

func (t *MoveTool) Name() string { return "lookup_move" }

func (t *MoveTool) Description() string {
	return "Looks up a move and returns its power, accuracy, PP, type, and damage class"
}

func (t *MoveTool) Definition() string {
	return GenerateSchema(MoveInput{})
}

func (t *MoveTool) Call(ctx context.Context, args json.RawMessage) (any, error) {
	var input MoveInput
	if err := decodeToolInput(args, t.Definition(), &input); err != nil {
		return nil, err
	}
	return t.client.Move(ctx, input.Name)
}

// decodeToolInput validates args against schema and unmarshals them into dst.
func decodeToolInput(args json.RawMessage, schema string, dst any) error {
	if err := ValidateAgainstSchema(args, schema); err != nil {
		return fmt.Errorf("input validation failed: %w", err)
	}
	if err := unmarshalFunc(args, dst); err != nil {
		return fmt.Errorf("failed to parse input: %w", err)
	}
	return nil
}
