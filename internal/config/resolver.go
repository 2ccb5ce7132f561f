package config

import (
	"errors"
	"fmt"
)

// ErrConfigUnavailable marks a failed read or parse of the configuration
// document. It is fatal to the current message only, never to the process.
var ErrConfigUnavailable = errors.New("configuration unavailable")

// TenantProfile is the effective configuration for one server.
type TenantProfile struct {
	ID              string
	AllowedChannels []string // empty = no restriction
	Keywords        []string // never empty after resolution
	LogChannel      string
	Persona         Persona
}

// Persona is the behavioral configuration inserted as the system turn.
// The field order fixes the serialized form.
type Persona struct {
	Name        string `json:"-"`
	Identity    any    `json:"identity"`
	Behavior    any    `json:"behavior"`
	StrictRules any    `json:"strict_rules"`
	Examples    any    `json:"examples"`
	Prohibited  any    `json:"prohibited"`
}

// Resolver resolves tenant profiles by re-reading the document on every call.
// Freshness over I/O cost: config edits take effect on the next message
// without a restart.
type Resolver struct {
	path string
}

func NewResolver(path string) *Resolver {
	return &Resolver{path: path}
}

// Resolve returns the effective profile for tenantID, falling back to the
// "default" profile when no tenant-specific one exists.
func (r *Resolver) Resolve(tenantID string) (TenantProfile, error) {
	doc, err := Load(r.path)
	if err != nil {
		return TenantProfile{}, fmt.Errorf("%w: %v", ErrConfigUnavailable, err)
	}
	return doc.ProfileFor(tenantID), nil
}

// Document re-reads the full document (startup embed, status command).
func (r *Resolver) Document() (*Document, error) {
	doc, err := Load(r.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigUnavailable, err)
	}
	return doc, nil
}

// Path returns the document location.
func (r *Resolver) Path() string { return r.path }

// ProfileFor builds the effective profile for tenantID. A document without a
// matching entry or a "default" entry yields an unrestricted profile with the
// built-in keyword.
func (d *Document) ProfileFor(tenantID string) TenantProfile {
	settings, ok := d.Servers[tenantID]
	if !ok {
		settings = d.Servers["default"]
	}

	keywords := settings.Keywords
	if len(keywords) == 0 {
		keywords = []string{DefaultKeyword}
	}

	return TenantProfile{
		ID:              tenantID,
		AllowedChannels: settings.AllowedChannels,
		Keywords:        keywords,
		LogChannel:      string(settings.LogChannel),
		Persona: Persona{
			Name:        d.BotName,
			Identity:    d.Identity,
			Behavior:    d.Behavior,
			StrictRules: d.StrictRules,
			Examples:    d.Examples,
			Prohibited:  d.Prohibited,
		},
	}
}

// Stats summarizes the routing configuration for the startup embed:
// configured servers excluding "default", and the total allowed channels.
func (d *Document) Stats() (servers, channels int) {
	for id, s := range d.Servers {
		if id != "default" {
			servers++
		}
		channels += len(s.AllowedChannels)
	}
	return servers, channels
}
