package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgramStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from ProgramStatus
		to   ProgramStatus
		want bool
	}{
		{ProgramDraft, ProgramSaved, true},
		{ProgramDraft, ProgramAssigned, false},
		{ProgramDraft, ProgramInShop, false},

		{ProgramSaved, ProgramAssigned, true},
		{ProgramSaved, ProgramInShop, true},
		{ProgramSaved, ProgramDraft, false},

		{ProgramInShop, ProgramSaved, true},
		{ProgramInShop, ProgramAssigned, false},
		{ProgramInShop, ProgramDraft, false},

		{ProgramAssigned, ProgramAssigned, true},
		{ProgramAssigned, ProgramSaved, false},
		{ProgramAssigned, ProgramInShop, false},

		{ProgramStatus("bogus"), ProgramSaved, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}
