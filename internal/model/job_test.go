package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobPayloadEncoding(t *testing.T) {
	recipient := As[PersonID](TestID(3))

	payloads := []JobPayload{
		Ping{},
		ProcessMessage{MessageID: As[MessageID](TestID(1))},
		ProcessMessage{MessageID: As[MessageID](TestID(2)), RecipientPersonID: &recipient},
		SendMessageToScene{
			Sender:     AIPerson(As[PersonID](TestID(4))),
			SceneID:    As[SceneID](TestID(5)),
			Content:    "Good morning",
			RandomSeed: 1<<63 + 42,
		},
		SendMessageToScene{Sender: RealWorldUser(), SceneID: As[SceneID](TestID(6)), Content: "hi"},
		PersonWaiting{PersonID: recipient, DurationMS: 240000, CurrentActiveMS: 1500},
	}

	for _, p := range payloads {
		kind, data, err := EncodeJobPayload(p)
		require.NoError(t, err)
		assert.Equal(t, p.JobKind(), kind)

		got, err := DecodeJobPayload(kind, data)
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
}

func TestDecodeUnknownJobKind(t *testing.T) {
	_, err := DecodeJobPayload("reticulate", []byte(`{}`))
	assert.ErrorContains(t, err, "unknown kind")
}
