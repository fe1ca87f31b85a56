package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/personae/internal/embedding"
	"github.com/rcliao/personae/internal/model"
)

func TestPopJobEmptyQueue(t *testing.T) {
	s := newTestStore(t)
	job, err := s.PopJob(context.Background())
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestPopJobIsLIFO(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStoreWithClock(t, embedding.Cosine)

	first, err := s.UnshiftJob(ctx, model.Ping{})
	require.NoError(t, err)
	clock.Advance(time.Second)
	second, err := s.UnshiftJob(ctx, model.Ping{})
	require.NoError(t, err)
	// Same instant as second; the monotonic id breaks the tie.
	third, err := s.UnshiftJob(ctx, model.Ping{})
	require.NoError(t, err)

	var order []model.JobID
	for {
		job, err := s.PopJob(ctx)
		require.NoError(t, err)
		if job == nil {
			break
		}
		require.NotNil(t, job.StartedAt)
		order = append(order, job.ID)
	}
	assert.Equal(t, []model.JobID{third, second, first}, order)
}

func TestPopJobSkipsFinished(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.UnshiftJob(ctx, model.Ping{})
	require.NoError(t, err)
	require.NoError(t, s.MarkJobFinished(ctx, id))

	job, err := s.PopJob(ctx)
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestMarkJobFinishedIdempotent(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStoreWithClock(t, embedding.Cosine)

	id, err := s.UnshiftJob(ctx, model.Ping{})
	require.NoError(t, err)
	_, err = s.PopJob(ctx)
	require.NoError(t, err)

	finished := clock.Advance(time.Second)
	require.NoError(t, s.MarkJobFinished(ctx, id))
	clock.Advance(time.Second)
	require.NoError(t, s.MarkJobFinished(ctx, id))

	job, err := s.GetJob(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, job.FinishedAt)
	assert.Equal(t, finished, *job.FinishedAt)

	err = s.MarkJobFinished(ctx, model.As[model.JobID](model.TestID(99)))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPopJobClaimsUndecodableJob(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStoreWithClock(t, embedding.Cosine)

	older, err := s.UnshiftJob(ctx, model.Ping{})
	require.NoError(t, err)

	id := model.As[model.JobID](s.newID(s.clock()))
	_, err = s.db.Exec(`INSERT INTO job (id, kind, payload, created_at) VALUES (?, 'mystery', '{}', ?)`,
		id.String(), formatTime(s.clock().Add(time.Second)))
	require.NoError(t, err)

	job, err := s.PopJob(ctx)
	require.ErrorContains(t, err, `unknown kind "mystery"`)
	require.NotNil(t, job)
	assert.Equal(t, id, job.ID)
	assert.Nil(t, job.Payload)
	require.NotNil(t, job.StartedAt)
	require.NoError(t, s.MarkJobFinished(ctx, job.ID))

	next, err := s.PopJob(ctx)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, older, next.ID)

	empty, err := s.PopJob(ctx)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestJobPayloadsSurviveQueue(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	person := model.As[model.PersonID](model.TestID(1))
	scene := model.As[model.SceneID](model.TestID(2))
	msg := model.As[model.MessageID](model.TestID(3))

	payloads := []model.JobPayload{
		model.ProcessMessage{MessageID: msg, RecipientPersonID: &person},
		model.SendMessageToScene{Sender: model.AIPerson(person), SceneID: scene, Content: "hi", RandomSeed: 42},
		model.PersonWaiting{PersonID: person, DurationMS: 240000, CurrentActiveMS: 1500},
	}
	for _, p := range payloads {
		id, err := s.UnshiftJob(ctx, p)
		require.NoError(t, err)
		job, err := s.GetJob(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, p, job.Payload)
		assert.Equal(t, p.JobKind(), job.Kind())
		assert.Nil(t, job.StartedAt)
		assert.Nil(t, job.FinishedAt)
	}

	jobs, err := s.ListJobs(ctx, model.JobPersonWaiting)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.CreatePerson(ctx, "Alice")
	require.NoError(t, err)
	_, err = s.CreateScene(ctx, "Bakery", "warm")
	require.NoError(t, err)
	done, err := s.UnshiftJob(ctx, model.Ping{})
	require.NoError(t, err)
	_, err = s.PopJob(ctx)
	require.NoError(t, err)
	require.NoError(t, s.MarkJobFinished(ctx, done))
	_, err = s.UnshiftJob(ctx, model.Ping{})
	require.NoError(t, err)

	st, err := s.Stats(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, st.Persons)
	assert.Equal(t, 1, st.Scenes)
	assert.Equal(t, JobStats{Pending: 1, Finished: 1}, st.Jobs)
	assert.Equal(t, 3, st.Dimensions)
}
