package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstEvolutionKeepsFromStage(t *testing.T) {
	at := time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)
	v, err := Memories{{Kind: MemoryEvolved, At: at, FromStage: 0, ToStage: 1, Invested: 100}}.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `[{"kind":"evolved","at":"2024-01-05T09:00:00Z","from_stage":0,"to_stage":1,"invested":100}]`, v.(string))

	var back Memories
	require.NoError(t, back.Scan(v))
	assert.Equal(t, 0, back[0].FromStage)
	assert.Equal(t, 1, back[0].ToStage)
}
