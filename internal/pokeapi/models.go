package pokeapi

import (
	"pokescout/internal/domain"
)

// namedResource is PokeAPI's ubiquitous {name, url} reference.
type namedResource struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// anySlice converts a typed slice to []any for the explorer's sequence handling.
func anySlice[T any](in []T) []any {
	out := make([]any, len(in))
	for i := range in {
		out[i] = in[i]
	}
	return out
}

// Pokemon is the /pokemon/{name} resource, reduced to the attributes the
// research agent reasons about.
type Pokemon struct {
	ID             int           `json:"id"`
	Name           string        `json:"name"`
	Height         int           `json:"height"`
	Weight         int           `json:"weight"`
	BaseExperience int           `json:"base_experience"`
	Types          []TypeSlot    `json:"types"`
	Abilities      []AbilitySlot `json:"abilities"`
	Stats          []StatLine    `json:"stats"`
}

type TypeSlot struct {
	Slot int           `json:"slot"`
	Type namedResource `json:"type"`
}

type AbilitySlot struct {
	Ability  namedResource `json:"ability"`
	IsHidden bool          `json:"is_hidden"`
}

type StatLine struct {
	BaseStat int           `json:"base_stat"`
	Stat     namedResource `json:"stat"`
}

func (p *Pokemon) Fields() []domain.Field {
	return []domain.Field{
		{Name: "id", Value: p.ID},
		{Name: "name", Value: p.Name},
		{Name: "height", Value: p.Height},
		{Name: "weight", Value: p.Weight},
		{Name: "base_experience", Value: p.BaseExperience},
		{Name: "types", Value: anySlice(p.Types)},
		{Name: "abilities", Value: anySlice(p.Abilities)},
		{Name: "stats", Value: anySlice(p.Stats)},
	}
}

func (t TypeSlot) Fields() []domain.Field {
	return []domain.Field{
		{Name: "slot", Value: t.Slot},
		{Name: "type", Value: t.Type.Name},
	}
}

func (a AbilitySlot) Fields() []domain.Field {
	return []domain.Field{
		{Name: "ability", Value: a.Ability.Name},
		{Name: "is_hidden", Value: a.IsHidden},
	}
}

func (s StatLine) Fields() []domain.Field {
	return []domain.Field{
		{Name: "stat", Value: s.Stat.Name},
		{Name: "base_stat", Value: s.BaseStat},
	}
}

// Species is the /pokemon-species/{name} resource.
type Species struct {
	ID             int             `json:"id"`
	Name           string          `json:"name"`
	Color          namedResource   `json:"color"`
	Habitat        namedResource   `json:"habitat"`
	Shape          namedResource   `json:"shape"`
	GrowthRate     namedResource   `json:"growth_rate"`
	EggGroups      []namedResource `json:"egg_groups"`
	IsLegendary    bool            `json:"is_legendary"`
	IsMythical     bool            `json:"is_mythical"`
	EvolutionChain struct {
		URL string `json:"url"`
	} `json:"evolution_chain"`
}

func (s *Species) Fields() []domain.Field {
	groups := make([]any, len(s.EggGroups))
	for i, g := range s.EggGroups {
		groups[i] = g.Name
	}
	return []domain.Field{
		{Name: "id", Value: s.ID},
		{Name: "name", Value: s.Name},
		{Name: "color", Value: s.Color.Name},
		{Name: "habitat", Value: s.Habitat.Name},
		{Name: "shape", Value: s.Shape.Name},
		{Name: "growth_rate", Value: s.GrowthRate.Name},
		{Name: "egg_groups", Value: groups},
		{Name: "is_legendary", Value: s.IsLegendary},
		{Name: "is_mythical", Value: s.IsMythical},
		{Name: "evolution_chain_id", Value: trailingID(s.EvolutionChain.URL)},
	}
}

// TypeInfo is the /type/{name} resource.
type TypeInfo struct {
	ID              int             `json:"id"`
	Name            string          `json:"name"`
	DamageRelations DamageRelations `json:"damage_relations"`
	Pokemon         []struct {
		Pokemon namedResource `json:"pokemon"`
	} `json:"pokemon"`
}

type DamageRelations struct {
	DoubleDamageTo   []namedResource `json:"double_damage_to"`
	DoubleDamageFrom []namedResource `json:"double_damage_from"`
	HalfDamageTo     []namedResource `json:"half_damage_to"`
	HalfDamageFrom   []namedResource `json:"half_damage_from"`
	NoDamageTo       []namedResource `json:"no_damage_to"`
	NoDamageFrom     []namedResource `json:"no_damage_from"`
}

func (t *TypeInfo) Fields() []domain.Field {
	members := make([]any, len(t.Pokemon))
	for i, p := range t.Pokemon {
		members[i] = p.Pokemon.Name
	}
	return []domain.Field{
		{Name: "id", Value: t.ID},
		{Name: "name", Value: t.Name},
		{Name: "damage_relations", Value: t.DamageRelations},
		{Name: "pokemon", Value: members},
	}
}

func (d DamageRelations) Fields() []domain.Field {
	names := func(rs []namedResource) []any {
		out := make([]any, len(rs))
		for i, r := range rs {
			out[i] = r.Name
		}
		return out
	}
	return []domain.Field{
		{Name: "double_damage_to", Value: names(d.DoubleDamageTo)},
		{Name: "double_damage_from", Value: names(d.DoubleDamageFrom)},
		{Name: "half_damage_to", Value: names(d.HalfDamageTo)},
		{Name: "half_damage_from", Value: names(d.HalfDamageFrom)},
		{Name: "no_damage_to", Value: names(d.NoDamageTo)},
		{Name: "no_damage_from", Value: names(d.NoDamageFrom)},
	}
}

// EvolutionChain is the /evolution-chain/{id} resource.
type EvolutionChain struct {
	ID    int           `json:"id"`
	Chain EvolutionLink `json:"chain"`
}

type EvolutionLink struct {
	Species   namedResource   `json:"species"`
	EvolvesTo []EvolutionLink `json:"evolves_to"`
}

func (c *EvolutionChain) Fields() []domain.Field {
	return []domain.Field{
		{Name: "id", Value: c.ID},
		{Name: "chain", Value: c.Chain},
	}
}

func (l EvolutionLink) Fields() []domain.Field {
	return []domain.Field{
		{Name: "species", Value: l.Species.Name},
		{Name: "evolves_to", Value: anySlice(l.EvolvesTo)},
	}
}

// Move is the /move/{name} resource.
type Move struct {
	ID          int           `json:"id"`
	Name        string        `json:"name"`
	Power       int           `json:"power"`
	PP          int           `json:"pp"`
	Accuracy    int           `json:"accuracy"`
	Type        namedResource `json:"type"`
	DamageClass namedResource `json:"damage_class"`
}

func (m *Move) Fields() []domain.Field {
	return []domain.Field{
		{Name: "id", Value: m.ID},
		{Name: "name", Value: m.Name},
		{Name: "power", Value: m.Power},
		{Name: "pp", Value: m.PP},
		{Name: "accuracy", Value: m.Accuracy},
		{Name: "type", Value: m.Type.Name},
		{Name: "damage_class", Value: m.DamageClass.Name},
	}
}

// Compile-time capability checks.
var (
	_ domain.Explorable = (*Pokemon)(nil)
	_ domain.Explorable = (*Species)(nil)
	_ domain.Explorable = (*TypeInfo)(nil)
	_ domain.Explorable = (*EvolutionChain)(nil)
	_ domain.Explorable = (*Move)(nil)
	_ domain.Explorable = TypeSlot{}
	_ domain.Explorable = EvolutionLink{}
	_ domain.Explorable = DamageRelations{}
)
