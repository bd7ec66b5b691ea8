package message

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringifyKeepsMarkupInNestedValues(t *testing.T) {
	p := DecodePayload(json.RawMessage(`{"searchDescription":{"rule":"tag < 5 & flow > 2"},"searchCreator":["ops","qa"]}`))

	assert.Equal(t, `{"rule":"tag < 5 & flow > 2"}`, p.SearchDescription)
	assert.Equal(t, `["ops","qa"]`, p.SearchCreator)
}

func TestIsEmpty(t *testing.T) {
	assert.True(t, DecodePayload(nil).IsEmpty())
	assert.True(t, DecodePayload(json.RawMessage(`"not json"`)).IsEmpty())
	assert.False(t, DecodePayload(json.RawMessage(`{"monitorId":"M1"}`)).IsEmpty())
}
