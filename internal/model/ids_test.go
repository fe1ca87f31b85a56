package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoundTrip(t *testing.T) {
	u := ulid.MustNew(ulid.Timestamp(time.Now()), ulid.DefaultEntropy())

	id, err := Parse[PersonID](u.String())
	require.NoError(t, err)
	assert.Equal(t, u.String(), id.String())
	assert.False(t, id.IsTest())
	assert.False(t, id.IsZero())

	_, err = Parse[SceneID]("not-an-id")
	assert.Error(t, err)
}

func TestTestIDs(t *testing.T) {
	a := As[JobID](TestID(1))
	b := As[JobID](TestID(2))

	assert.True(t, a.IsTest())
	assert.True(t, b.IsTest())
	assert.Equal(t, -1, a.Compare(b.ID))
	assert.NotEqual(t, a, b)
}

func TestIDJSON(t *testing.T) {
	id := As[PersonID](TestID(7))
	b, err := json.Marshal(struct {
		Person PersonID `json:"person"`
	}{id})
	require.NoError(t, err)
	assert.JSONEq(t, `{"person":"`+id.String()+`"}`, string(b))

	var out struct {
		Person PersonID `json:"person"`
	}
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, id, out.Person)

	var empty struct {
		Person PersonID `json:"person"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"person":""}`), &empty))
	assert.True(t, empty.Person.IsZero())
}
