package services

import (
	"testing"

	"github.com/qianlnk/werewolf-session/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAction(t *testing.T) {
	tests := []struct {
		raw     string
		want    models.Action
		wantErr bool
	}{
		{raw: "kill 3", want: models.Action{Kind: models.ActionKill, Target: 3}},
		{raw: "heal 0", want: models.Action{Kind: models.ActionHeal, Target: 0}},
		{raw: "poison 12", want: models.Action{Kind: models.ActionPoison, Target: 12}},
		{raw: "elect 2", want: models.Action{Kind: models.ActionElect, Target: 2}},
		{raw: "  vote   5  ", want: models.Action{Kind: models.ActionVote, Target: 5}},
		{raw: "vote 5 extra", want: models.Action{Kind: models.ActionVote, Target: 5}},
		{raw: "attach 1 2", want: models.Action{Kind: models.ActionAttach, Target: 1, Lover: 2}},
		{raw: "pass", want: models.Action{Kind: models.ActionPass}},
		{raw: "pass 3", want: models.Action{Kind: models.ActionPass}},
		{raw: "attach 1", wantErr: true},
		{raw: "attach 1 x", wantErr: true},
		{raw: "kill", wantErr: true},
		{raw: "kill abc", wantErr: true},
		{raw: "kill -1", wantErr: true},
		{raw: "dance 1", wantErr: true},
		{raw: "Kill 1", wantErr: true},
		{raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseAction(tt.raw)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMalformedAction)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
