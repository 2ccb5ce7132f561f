package convo

import (
	"encoding/json"
	"fmt"

	"cyanbot/internal/config"
	"cyanbot/internal/domain"
)

// Assembler combines the current persona with a channel's history into the
// request payload for the completion backend.
type Assembler struct {
	store *Store
}

func NewAssembler(store *Store) *Assembler {
	return &Assembler{store: store}
}

// Assemble returns [system turn, history...] for channelID. The system turn
// is rebuilt from the profile on every call and never stored, so config edits
// apply to every subsequent exchange without touching stored history.
func (a *Assembler) Assemble(profile config.TenantProfile, channelID string) ([]domain.Turn, error) {
	system, err := SystemTurn(profile.Persona)
	if err != nil {
		return nil, err
	}
	return append([]domain.Turn{system}, a.store.Snapshot(channelID)...), nil
}

// SystemTurn serializes the persona into a single instruction turn. The five
// configured fields survive serialization verbatim.
func SystemTurn(p config.Persona) (domain.Turn, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return domain.Turn{}, fmt.Errorf("serialize persona: %w", err)
	}
	return domain.Turn{
		Role:    domain.RoleSystem,
		Content: fmt.Sprintf("You are %s. Strictly follow this configuration:\n%s", p.Name, payload),
	}, nil
}
