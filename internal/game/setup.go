package game

import (
	"fmt"
	"math/rand"
)

// DeckSize is the fixed number of papers in play for the whole game.
const DeckSize = 17

// deckComposition lists the canonical paper multiplicities.
var deckComposition = []struct {
	count      int
	capability int
	safety     int
}{
	{3, 0, 2},
	{2, 1, 2},
	{2, 1, 3},
	{2, 1, 1},
	{2, 2, 2},
	{2, 3, 0},
	{2, 2, 1},
	{2, 3, 1},
}

// roleDistribution maps player count to role counts.
var roleDistribution = map[int]map[Role]int{
	5:  {RoleSafety: 3, RoleAccelerationist: 1, RoleAGI: 1},
	6:  {RoleSafety: 4, RoleAccelerationist: 1, RoleAGI: 1},
	7:  {RoleSafety: 4, RoleAccelerationist: 2, RoleAGI: 1},
	8:  {RoleSafety: 5, RoleAccelerationist: 2, RoleAGI: 1},
	9:  {RoleSafety: 5, RoleAccelerationist: 3, RoleAGI: 1},
	10: {RoleSafety: 6, RoleAccelerationist: 3, RoleAGI: 1},
}

// RoleDistribution returns the role counts for a player count.
func RoleDistribution(playerCount int) (map[Role]int, error) {
	counts, ok := roleDistribution[playerCount]
	if !ok {
		return nil, ErrPlayerCount
	}
	out := make(map[Role]int, len(counts))
	for role, count := range counts {
		out[role] = count
	}
	return out, nil
}

// StandardDeck builds the canonical 17-paper deck in composition order.
// Paper ids are positional so seeded games replay byte for byte.
func StandardDeck() []Paper {
	papers := make([]Paper, 0, DeckSize)
	for _, entry := range deckComposition {
		for i := 0; i < entry.count; i++ {
			papers = append(papers, Paper{
				ID:         fmt.Sprintf("paper-%02d", len(papers)),
				Capability: entry.capability,
				Safety:     entry.safety,
			})
		}
	}
	return papers
}

// NewState deals a fresh game from the configuration. All randomness comes
// from the configured seed, so equal configs produce equal states.
func NewState(gameID string, cfg Config) (*State, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var seed int64
	if cfg.Seed != nil {
		seed = *cfg.Seed
	} else {
		seed = rand.Int63()
	}
	rng := rand.New(rand.NewSource(seed))

	counts, err := RoleDistribution(cfg.PlayerCount)
	if err != nil {
		return nil, err
	}
	roles := make([]Role, 0, cfg.PlayerCount)
	for _, role := range []Role{RoleSafety, RoleAccelerationist, RoleAGI} {
		for i := 0; i < counts[role]; i++ {
			roles = append(roles, role)
		}
	}
	rng.Shuffle(len(roles), func(i, j int) {
		roles[i], roles[j] = roles[j], roles[i]
	})

	players := make([]Player, 0, cfg.PlayerCount)
	for i, id := range cfg.PlayerIDs {
		players = append(players, Player{
			ID:         id,
			Role:       roles[i],
			Allegiance: AllegianceFor(roles[i]),
			Alive:      true,
		})
	}

	deck := StandardDeck()
	rng.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})

	return &State{
		GameID:               gameID,
		TurnNumber:           0,
		RoundNumber:          1,
		Players:              players,
		Deck:                 deck,
		Discard:              []Paper{},
		CurrentDirectorIndex: rng.Intn(cfg.PlayerCount),
		CurrentPhase:         PhaseTeamProposal,
		Rules: RulesOptions{
			PowerC9Immediate: cfg.PowerC9Immediate,
			AGIWinAtPublish:  cfg.AGIWinAtPublish,
		},
	}, nil
}
