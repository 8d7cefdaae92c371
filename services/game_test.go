package services

import (
	"math/rand"
	"testing"

	"github.com/qianlnk/werewolf-session/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countRoles(roles []models.Role) map[models.RoleKind]int {
	counts := make(map[models.RoleKind]int)
	for _, r := range roles {
		counts[r.Kind]++
	}
	return counts
}

func TestBuildRolePool(t *testing.T) {
	settings := models.Settings{NumPlayers: 7, NumWerewolfs: 2, Heals: 1, Poisons: 1, MayorVotes: 2}

	roles, err := BuildRolePool(settings, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	require.Len(t, roles, 7)

	counts := countRoles(roles)
	assert.Equal(t, 2, counts[models.Werewolf])
	assert.Equal(t, 1, counts[models.Amor])
	assert.Equal(t, 1, counts[models.Witch])
	assert.Equal(t, 3, counts[models.Villager])

	for _, r := range roles {
		if r.Kind == models.Witch {
			assert.Equal(t, 1, r.Heals)
			assert.Equal(t, 1, r.Poisons)
		}
	}
}

func TestBuildRolePoolMinimal(t *testing.T) {
	roles, err := BuildRolePool(models.Settings{NumPlayers: 2}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	counts := countRoles(roles)
	assert.Equal(t, map[models.RoleKind]int{models.Amor: 1, models.Witch: 1}, counts)
}

func TestBuildRolePoolInvalid(t *testing.T) {
	tests := []struct {
		name     string
		settings models.Settings
	}{
		{"too few players", models.Settings{NumPlayers: 3, NumWerewolfs: 2}},
		{"no players", models.Settings{}},
		{"negative werewolves", models.Settings{NumPlayers: 5, NumWerewolfs: -1}},
		{"negative heals", models.Settings{NumPlayers: 5, NumWerewolfs: 1, Heals: -1}},
		{"negative poisons", models.Settings{NumPlayers: 5, NumWerewolfs: 1, Poisons: -2}},
		{"negative mayor votes", models.Settings{NumPlayers: 5, NumWerewolfs: 1, MayorVotes: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildRolePool(tt.settings, rand.New(rand.NewSource(1)))
			require.ErrorIs(t, err, ErrInvalidSettings)
		})
	}
}

func TestBuildRolePoolDeterministic(t *testing.T) {
	settings := models.Settings{NumPlayers: 9, NumWerewolfs: 3, Heals: 1, Poisons: 1}

	a, err := BuildRolePool(settings, rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	b, err := BuildRolePool(settings, rand.New(rand.NewSource(42)))
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestAuthorize(t *testing.T) {
	wolf := &Participant{Handle: 1, Role: models.Role{Kind: models.Werewolf}, Alive: true}
	villager := &Participant{Handle: 2, Role: models.Role{Kind: models.Villager}, Alive: true}
	dead := &Participant{Handle: 3, Role: models.Role{Kind: models.Villager}}

	assert.NoError(t, authorize(wolf, models.PhaseNight, models.Action{Kind: models.ActionKill, Target: 2}))
	assert.NoError(t, authorize(villager, models.PhaseDay, models.Action{Kind: models.ActionVote, Target: 1}))
	assert.NoError(t, authorize(wolf, models.PhaseElection, models.Action{Kind: models.ActionElect, Target: 1}))

	assert.ErrorIs(t, authorize(villager, models.PhaseNight, models.Action{Kind: models.ActionKill, Target: 1}), ErrMalformedAction)
	assert.ErrorIs(t, authorize(wolf, models.PhaseDay, models.Action{Kind: models.ActionKill, Target: 2}), ErrMalformedAction)
	assert.ErrorIs(t, authorize(dead, models.PhaseDay, models.Action{Kind: models.ActionVote, Target: 1}), ErrMalformedAction)
	assert.ErrorIs(t, authorize(wolf, models.PhaseDay, models.Action{Kind: "dance", Target: 1}), ErrMalformedAction)

	witch := &Participant{Handle: 4, Role: models.Role{Kind: models.Witch}, Alive: true}
	assert.NoError(t, authorize(witch, models.PhaseBewitch, models.Action{Kind: models.ActionPass}))
	assert.ErrorIs(t, authorize(witch, models.PhaseNight, models.Action{Kind: models.ActionPass}), ErrMalformedAction)
	assert.ErrorIs(t, authorize(villager, models.PhaseBewitch, models.Action{Kind: models.ActionPass}), ErrMalformedAction)
}

func TestAvailableActions(t *testing.T) {
	witch := &Participant{Role: models.Role{Kind: models.Witch, Heals: 1}, Alive: true}
	assert.Equal(t, []models.ActionKind{models.ActionHeal, models.ActionPass}, availableActions(witch, models.PhaseBewitch))

	witch.Role.Poisons = 1
	assert.Equal(t, []models.ActionKind{models.ActionHeal, models.ActionPoison, models.ActionPass},
		availableActions(witch, models.PhaseBewitch))
	witch.Role.Poisons = 0

	witch.Role.Heals = 0
	assert.Empty(t, availableActions(witch, models.PhaseBewitch))

	villager := &Participant{Role: models.Role{Kind: models.Villager}, Alive: true}
	assert.Empty(t, availableActions(villager, models.PhaseNight))
	assert.Equal(t, []models.ActionKind{models.ActionVote}, availableActions(villager, models.PhaseDay))

	villager.Alive = false
	assert.Empty(t, availableActions(villager, models.PhaseDay))
}

func TestPlurality(t *testing.T) {
	winner, tie := plurality(map[models.Handle]int{1: 3, 2: 1})
	require.NotNil(t, winner)
	assert.Equal(t, models.Handle(1), *winner)
	assert.False(t, tie)

	winner, tie = plurality(map[models.Handle]int{1: 3, 2: 3})
	assert.Nil(t, winner)
	assert.True(t, tie)

	winner, tie = plurality(map[models.Handle]int{})
	assert.Nil(t, winner)
	assert.False(t, tie)

	// 票权为 0 的选票不计入
	winner, tie = plurality(map[models.Handle]int{1: 0})
	assert.Nil(t, winner)
	assert.False(t, tie)
}
