package mock

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	m := NewMockEmbedder()
	ctx := context.Background()

	a, err := m.EmbedText(ctx, "hello")
	require.NoError(t, err)
	b, err := m.EmbedText(ctx, "hello")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 384)
	assert.Equal(t, 2, m.CallCount())
}

func TestMockEmbedder_UnitLength(t *testing.T) {
	v := DeterministicVector("some text", 16)

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestMockEmbedder_InjectedFunc(t *testing.T) {
	m := NewMockEmbedder()
	m.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("boom")
	}

	_, err := m.EmbedText(context.Background(), "x")
	require.Error(t, err)

	m.Reset()
	assert.Equal(t, 0, m.CallCount())
	_, err = m.EmbedText(context.Background(), "x")
	require.NoError(t, err)
}

func TestMockGenerator_RecordsPrompts(t *testing.T) {
	g := NewMockGenerator("yes")

	answer, err := g.Generate(context.Background(), "q1")
	require.NoError(t, err)
	assert.Equal(t, "yes", answer)

	_, _ = g.Generate(context.Background(), "q2")
	assert.Equal(t, []string{"q1", "q2"}, g.Prompts())
	assert.Equal(t, 2, g.CallCount())
}
