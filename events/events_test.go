package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	assert.IsType(t, Nop{}, New(nil, "responses"))

	k := New([]string{"localhost:9092"}, "responses")
	assert.IsType(t, &Kafka{}, k)
	assert.NoError(t, k.Close())
}

func TestMemory(t *testing.T) {
	m := &Memory{}
	assert.NoError(t, m.ResponseSubmitted(context.Background(), ResponseSubmitted{ResponseID: 1, FormID: 2}))
	assert.NoError(t, Nop{}.ResponseSubmitted(context.Background(), ResponseSubmitted{}))

	published := m.Published()
	assert.Len(t, published, 1)
	assert.Equal(t, int64(2), published[0].FormID)
}
