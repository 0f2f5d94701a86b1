package pokeapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

// trailingID extracts the numeric ID from a PokeAPI resource URL such as
// "https://pokeapi.co/api/v2/evolution-chain/67/". Returns 0 when absent.
func trailingID(url string) int {
	parts := strings.Split(strings.TrimRight(url, "/"), "/")
	if len(parts) == 0 {
		return 0
	}
	id, _ := strconv.Atoi(parts[len(parts)-1])
	return id
}

// Client is a typed PokeAPI REST client. Every GET goes through the resource
// cache first; fresh bodies are cached with the configured TTL.
type Client struct {
	baseURL string
	client  *http.Client
	cache   *ResourceCache // optional; nil disables caching
	logger  *slog.Logger
}

// NewClient returns a Client against the public PokeAPI. cache may be nil.
func NewClient(cache *ResourceCache) *Client {
	return &Client{
		baseURL: "https://pokeapi.co/api/v2",
		client:  &http.Client{},
		cache:   cache,
		logger:  slog.Default(),
	}
}

// SetBaseURL overrides the API endpoint (tests point this at an httptest server).
func (c *Client) SetBaseURL(url string) {
	if url != "" {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// get fetches path, consulting the resource cache before the network.
// Cache write failures are logged, not fatal: the fetched body is still used.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	url := c.baseURL + path

	if c.cache != nil {
		body, _, ok, err := c.cache.Get(ctx, url)
		if err != nil {
			c.logger.Warn("resource cache read failed", "url", url, "error", err)
		} else if ok {
			return body, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("pokeapi request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pokeapi do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("pokeapi: resource not found: %s", path)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pokeapi api: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("pokeapi read: %w", err)
	}

	if c.cache != nil {
		if err := c.cache.Put(ctx, url, body, resp.Header.Get("Content-Type")); err != nil {
			c.logger.Warn("resource cache write failed", "url", url, "error", err)
		}
	}
	return body, nil
}

// key normalizes a resource name for URL use.
func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Pokemon fetches /pokemon/{name}.
func (c *Client) Pokemon(ctx context.Context, name string) (*Pokemon, error) {
	body, err := c.get(ctx, "/pokemon/"+key(name))
	if err != nil {
		return nil, err
	}
	var p Pokemon
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("pokeapi decode pokemon: %w", err)
	}
	return &p, nil
}

// Species fetches /pokemon-species/{name}.
func (c *Client) Species(ctx context.Context, name string) (*Species, error) {
	body, err := c.get(ctx, "/pokemon-species/"+key(name))
	if err != nil {
		return nil, err
	}
	var s Species
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("pokeapi decode species: %w", err)
	}
	return &s, nil
}

// Type fetches /type/{name}.
func (c *Client) Type(ctx context.Context, name string) (*TypeInfo, error) {
	body, err := c.get(ctx, "/type/"+key(name))
	if err != nil {
		return nil, err
	}
	var t TypeInfo
	if err := json.Unmarshal(body, &t); err != nil {
		return nil, fmt.Errorf("pokeapi decode type: %w", err)
	}
	return &t, nil
}

// EvolutionChain fetches /evolution-chain/{id}.
func (c *Client) EvolutionChain(ctx context.Context, id int) (*EvolutionChain, error) {
	if id <= 0 {
		return nil, fmt.Errorf("pokeapi: evolution chain id must be positive")
	}
	body, err := c.get(ctx, "/evolution-chain/"+strconv.Itoa(id))
	if err != nil {
		return nil, err
	}
	var ec EvolutionChain
	if err := json.Unmarshal(body, &ec); err != nil {
		return nil, fmt.Errorf("pokeapi decode evolution chain: %w", err)
	}
	return &ec, nil
}

// Move fetches /move/{name}.
func (c *Client) Move(ctx context.Context, name string) (*Move, error) {
	body, err := c.get(ctx, "/move/"+key(name))
	if err != nil {
		return nil, err
	}
	var m Move
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("pokeapi decode move: %w", err)
	}
	return &m, nil
}
