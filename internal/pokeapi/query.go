package pokeapi

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"pokescout/internal/domain"
)

// speciesGroup covers the PokeAPI resources that list member species under a
// "pokemon_species" key (habitat, color, egg group, shape, growth rate).
type speciesGroup struct {
	Name           string          `json:"name"`
	PokemonSpecies []namedResource `json:"pokemon_species"`
}

// queryAttributes maps a filterable attribute to its API path. "type" is the
// odd one out: its members sit under "pokemon", not "pokemon_species", so
// GroupMembers decodes it separately.
var queryAttributes = map[string]string{
	"type":        "/type/",
	"habitat":     "/pokemon-habitat/",
	"color":       "/pokemon-color/",
	"egg-group":   "/egg-group/",
	"shape":       "/pokemon-shape/",
	"growth-rate": "/growth-rate/",
}

// AttributeFilter selects Pokémon matching any of Values for one attribute.
type AttributeFilter struct {
	Attribute string
	Values    []string
}

// QueryResult is the outcome of a cross-attribute query.
type QueryResult struct {
	Names []string `json:"names"`
}

// Fields renders the member list as one joined string rather than a slice,
// so the explorer's sequence sampling cannot cut a set-query result down to
// its first few members.
func (q *QueryResult) Fields() []domain.Field {
	return []domain.Field{
		{Name: "count", Value: len(q.Names)},
		{Name: "pokemon", Value: strings.Join(q.Names, ", ")},
	}
}

var _ domain.Explorable = (*QueryResult)(nil)

// GroupMembers fetches the Pokémon names belonging to one attribute value,
// e.g. every Pokémon in habitat "cave".
func (c *Client) GroupMembers(ctx context.Context, attribute, value string) ([]string, error) {
	path, ok := queryAttributes[attribute]
	if !ok {
		return nil, fmt.Errorf("pokeapi: unknown query attribute %q", attribute)
	}
	body, err := c.get(ctx, path+key(value))
	if err != nil {
		return nil, err
	}

	if attribute == "type" {
		var t TypeInfo
		if err := json.Unmarshal(body, &t); err != nil {
			return nil, fmt.Errorf("pokeapi decode type: %w", err)
		}
		names := make([]string, len(t.Pokemon))
		for i, p := range t.Pokemon {
			names[i] = p.Pokemon.Name
		}
		return names, nil
	}

	var g speciesGroup
	if err := json.Unmarshal(body, &g); err != nil {
		return nil, fmt.Errorf("pokeapi decode %s: %w", attribute, err)
	}
	names := make([]string, len(g.PokemonSpecies))
	for i, s := range g.PokemonSpecies {
		names[i] = s.Name
	}
	return names, nil
}

// CrossQuery intersects filters: each filter's values are unioned (a Pokémon
// matches a filter if it belongs to any of the values), and a Pokémon must
// match every filter to appear in the result. Names come back sorted.
func (c *Client) CrossQuery(ctx context.Context, filters []AttributeFilter) (*QueryResult, error) {
	if len(filters) == 0 {
		return nil, fmt.Errorf("pokeapi: query needs at least one filter")
	}

	var result map[string]struct{}
	for _, f := range filters {
		if len(f.Values) == 0 {
			return nil, fmt.Errorf("pokeapi: filter %q has no values", f.Attribute)
		}
		matched := make(map[string]struct{})
		for _, v := range f.Values {
			names, err := c.GroupMembers(ctx, f.Attribute, v)
			if err != nil {
				return nil, err
			}
			for _, n := range names {
				matched[n] = struct{}{}
			}
		}
		if result == nil {
			result = matched
			continue
		}
		for n := range result {
			if _, ok := matched[n]; !ok {
				delete(result, n)
			}
		}
	}

	names := make([]string, 0, len(result))
	for n := range result {
		names = append(names, n)
	}
	sort.Strings(names)
	return &QueryResult{Names: names}, nil
}
