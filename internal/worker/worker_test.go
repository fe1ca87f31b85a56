package worker

import (
	"bytes"
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/rcliao/personae/internal/llm"
	"github.com/rcliao/personae/internal/llm/llmtest"
	"github.com/rcliao/personae/internal/memory"
	"github.com/rcliao/personae/internal/model"
	"github.com/rcliao/personae/internal/reaction"
	"github.com/rcliao/personae/internal/store"
)

type harness struct {
	store  *store.SQLiteStore
	fake   *llmtest.Fake
	worker *Worker
	out    *syncBuffer
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func openStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), store.Options{Dimensions: 3})
	require.NoError(t, err)
	return s
}

func newHarnessWithStore(t *testing.T, s *store.SQLiteStore, fake *llmtest.Fake) *harness {
	t.Helper()
	out := &syncBuffer{}
	w := New(s, memory.New(s, fake, nil), reaction.New(fake, nil), Options{
		PollInterval: 10 * time.Millisecond,
		Out:          out,
		Seed:         func() uint64 { return 7 },
	}, nil)
	return &harness{store: s, fake: fake, worker: w, out: out}
}

func newHarness(t *testing.T, fake *llmtest.Fake) *harness {
	t.Helper()
	s := openStore(t)
	t.Cleanup(func() { s.Close() })
	return newHarnessWithStore(t, s, fake)
}

// drain runs jobs until the queue is empty and returns the handler errors.
func (h *harness) drain(t *testing.T) []error {
	t.Helper()
	var errs []error
	for i := 0; i < 100; i++ {
		job, err := h.worker.RunOnce(context.Background())
		if err != nil {
			errs = append(errs, err)
		}
		if job == nil {
			return errs
		}
	}
	t.Fatal("queue did not drain")
	return nil
}

func (h *harness) seedPerson(t *testing.T, name, identity, stateOfMind string) model.PersonID {
	t.Helper()
	ctx := context.Background()
	id, err := h.store.CreatePerson(ctx, name)
	require.NoError(t, err)
	if identity != "" {
		_, err = h.store.CreateIdentity(ctx, name, identity)
		require.NoError(t, err)
	}
	if stateOfMind != "" {
		_, err = h.store.CreateStateOfMind(ctx, name, stateOfMind)
		require.NoError(t, err)
	}
	return id
}

func userPrompt(req llm.Request) string {
	if len(req.Messages) < 2 {
		return ""
	}
	return req.Messages[1].Content
}

func TestPing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, &llmtest.Fake{})

	id, err := h.store.UnshiftJob(ctx, model.Ping{})
	require.NoError(t, err)

	job, err := h.worker.RunOnce(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, id, job.ID)
	assert.Equal(t, "Pong\n", h.out.String())

	stored, err := h.store.GetJob(ctx, id)
	require.NoError(t, err)
	assert.NotNil(t, stored.StartedAt)
	assert.NotNil(t, stored.FinishedAt)

	job, err = h.worker.RunOnce(ctx)
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestSceneConversationCascade(t *testing.T) {
	ctx := context.Background()
	var mu sync.Mutex
	aliceSpoke := false
	fake := &llmtest.Fake{Respond: func(req llm.Request) (*llm.Response, error) {
		if !llmtest.HasTools(req) {
			return llm.TextResponse(`{"memories": ["Bob is friendly in the morning"]}`), nil
		}
		mu.Lock()
		defer mu.Unlock()
		if strings.Contains(userPrompt(req), "a cheerful baker") && !aliceSpoke {
			aliceSpoke = true
			return llm.ToolCallResponse(openai.FunctionCall{
				Name:      "say",
				Arguments: `{"comment": "Morning, Bob!", "recipients": ["Bob"]}`,
			}), nil
		}
		return llm.ToolCallResponse(openai.FunctionCall{Name: "wait", Arguments: `{"duration_ms": 1000}`}), nil
	}}
	h := newHarness(t, fake)

	alice := h.seedPerson(t, "Alice", "a cheerful baker", "relaxed")
	bob := h.seedPerson(t, "Bob", "a regular customer", "hungry")
	_, err := h.store.CreateMemory(ctx, "Alice", "Bob once gave me flour", []float32{1, 0, 0})
	require.NoError(t, err)
	bakery, err := h.store.CreateScene(ctx, "Bakery", "a warm bakery")
	require.NoError(t, err)
	_, err = h.store.AddPersonToScene(ctx, bakery, "Alice")
	require.NoError(t, err)
	_, err = h.store.AddPersonToScene(ctx, bakery, "Bob")
	require.NoError(t, err)

	_, err = h.store.UnshiftJob(ctx, model.SendMessageToScene{
		Sender:     model.AIPerson(bob),
		SceneID:    bakery,
		Content:    "Good morning",
		RandomSeed: 42,
	})
	require.NoError(t, err)

	assert.Empty(t, h.drain(t))

	broadcasts, err := h.store.GetMessagesInScene(ctx, bakery)
	require.NoError(t, err)
	require.Len(t, broadcasts, 2)
	assert.Equal(t, "Good morning", broadcasts[0].Content)
	assert.Equal(t, model.AIPerson(bob), broadcasts[0].Sender)
	assert.Equal(t, "Morning, Bob!", broadcasts[1].Content)
	assert.Equal(t, model.AIPerson(alice), broadcasts[1].Sender)

	deliveries, err := h.store.ListJobs(ctx, model.JobProcessMessage)
	require.NoError(t, err)
	require.Len(t, deliveries, 4)
	for gen, want := range []string{"Good morning", "Morning, Bob!"} {
		readers := map[model.PersonID]bool{}
		for _, job := range deliveries[gen*2 : gen*2+2] {
			pm := job.Payload.(model.ProcessMessage)
			require.NotNil(t, pm.RecipientPersonID)
			readers[*pm.RecipientPersonID] = true

			msg, err := h.store.GetMessageByID(ctx, pm.MessageID)
			require.NoError(t, err)
			assert.Equal(t, want, msg.Content)
			assert.Equal(t, model.ToPerson(*pm.RecipientPersonID), msg.Recipient)
			require.NotNil(t, msg.SceneID)
			assert.Equal(t, bakery, *msg.SceneID)
			assert.NotNil(t, msg.ReadAt, "delivered message should be read")
			assert.NotNil(t, job.FinishedAt)
		}
		assert.Equal(t, map[model.PersonID]bool{alice: true, bob: true}, readers)
	}

	waits, err := h.store.ListJobs(ctx, model.JobPersonWaiting)
	require.NoError(t, err)
	assert.Len(t, waits, 3)

	sends, err := h.store.ListJobs(ctx, model.JobSendMessageToScene)
	require.NoError(t, err)
	require.Len(t, sends, 2)
	reply := sends[1].Payload.(model.SendMessageToScene)
	assert.Equal(t, uint64(7), reply.RandomSeed)
	assert.Equal(t, bakery, reply.SceneID)

	// Alice recalled her memory when reacting to Bob.
	var aliceReq *llm.Request
	for _, req := range fake.Requests() {
		if llmtest.HasTools(req) && strings.Contains(userPrompt(req), "a cheerful baker") {
			r := req
			aliceReq = &r
			break
		}
	}
	require.NotNil(t, aliceReq)
	prompt := userPrompt(*aliceReq)
	assert.Contains(t, prompt, "- Bob once gave me flour")
	assert.Contains(t, prompt, `You are in the scene "Bakery". a warm bakery`)
	assert.Contains(t, prompt, "Other people present: Bob\n")
	assert.Contains(t, prompt, "Bob said:\n\nGood morning")

	st, err := h.store.Stats(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 0, st.Jobs.Pending)
	assert.Equal(t, 0, st.Jobs.Running)
}

func TestMissingStateOfMind(t *testing.T) {
	ctx := context.Background()
	fake := &llmtest.Fake{}
	h := newHarness(t, fake)

	carol := h.seedPerson(t, "Carol", "a gardener", "")
	msgID, err := h.store.SendMessage(ctx, model.NewMessage{
		Sender:    model.RealWorldUser(),
		Recipient: model.ToPerson(carol),
		Content:   "How are the roses?",
	})
	require.NoError(t, err)
	jobID, err := h.store.UnshiftJob(ctx, model.ProcessMessage{MessageID: msgID})
	require.NoError(t, err)

	_, err = h.worker.RunOnce(ctx)
	require.ErrorIs(t, err, ErrNoStateOfMindFound)
	assert.Contains(t, err.Error(), "Carol")

	msg, err := h.store.GetMessageByID(ctx, msgID)
	require.NoError(t, err)
	assert.Nil(t, msg.ReadAt)

	job, err := h.store.GetJob(ctx, jobID)
	require.NoError(t, err)
	assert.NotNil(t, job.FinishedAt)
	assert.Empty(t, fake.Requests())
}

func TestMissingIdentity(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, &llmtest.Fake{})

	dan := h.seedPerson(t, "Dan", "", "sleepy")
	msgID, err := h.store.SendMessage(ctx, model.NewMessage{
		Sender:    model.RealWorldUser(),
		Recipient: model.ToPerson(dan),
		Content:   "wake up",
	})
	require.NoError(t, err)
	_, err = h.store.UnshiftJob(ctx, model.ProcessMessage{MessageID: msgID})
	require.NoError(t, err)

	_, err = h.worker.RunOnce(ctx)
	assert.ErrorIs(t, err, ErrNoPersonIdentityFound)
}

func TestMessageNotFound(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, &llmtest.Fake{})

	jobID, err := h.store.UnshiftJob(ctx, model.ProcessMessage{MessageID: model.As[model.MessageID](model.TestID(1))})
	require.NoError(t, err)

	_, err = h.worker.RunOnce(ctx)
	assert.ErrorIs(t, err, ErrMessageNotFound)

	job, err := h.store.GetJob(ctx, jobID)
	require.NoError(t, err)
	assert.NotNil(t, job.FinishedAt)
}

func TestSayOutsideAnyScene(t *testing.T) {
	ctx := context.Background()
	fake := &llmtest.Fake{Replies: []*llm.Response{
		llm.ToolCallResponse(openai.FunctionCall{Name: "say", Arguments: `{"comment": "hi", "recipients": []}`}),
	}}
	h := newHarness(t, fake)

	alice := h.seedPerson(t, "Alice", "a cheerful baker", "relaxed")
	msgID, err := h.store.SendMessage(ctx, model.NewMessage{
		Sender:    model.RealWorldUser(),
		Recipient: model.ToPerson(alice),
		Content:   "hello",
	})
	require.NoError(t, err)
	_, err = h.store.UnshiftJob(ctx, model.ProcessMessage{MessageID: msgID})
	require.NoError(t, err)

	_, err = h.worker.RunOnce(ctx)
	assert.ErrorIs(t, err, ErrPersonNotInAnyScene)

	reqs := fake.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, userPrompt(reqs[0]), "You received a direct message from Chadtech:\n\nhello")
	assert.Contains(t, userPrompt(reqs[0]), "(no relevant memories)")
}

func TestSceneNameAppearsVerbatim(t *testing.T) {
	ctx := context.Background()
	fake := &llmtest.Fake{Replies: []*llm.Response{
		llm.ToolCallResponse(openai.FunctionCall{Name: "wait", Arguments: `{"duration_ms": 1000}`}),
		llm.TextResponse(`{"memories": []}`),
	}}
	h := newHarness(t, fake)

	h.seedPerson(t, "Alice", "a cheerful baker", "relaxed")
	name := `Bob's "Corner" \ Shop`
	scene, err := h.store.CreateScene(ctx, name, "cosy")
	require.NoError(t, err)
	_, err = h.store.AddPersonToScene(ctx, scene, "Alice")
	require.NoError(t, err)
	_, err = h.store.UnshiftJob(ctx, model.SendMessageToScene{
		Sender:  model.RealWorldUser(),
		SceneID: scene,
		Content: "hello",
	})
	require.NoError(t, err)

	assert.Empty(t, h.drain(t))

	reqs := fake.Requests()
	require.NotEmpty(t, reqs)
	assert.Contains(t, userPrompt(reqs[0]), `You are in the scene "Bob's "Corner" \ Shop". cosy`)
}

func TestIdleEnqueuesPersonWaiting(t *testing.T) {
	ctx := context.Background()
	fake := &llmtest.Fake{Replies: []*llm.Response{
		llm.ToolCallResponse(openai.FunctionCall{Name: "idle", Arguments: `{}`}),
		llm.TextResponse(`{"memories": []}`),
	}}
	h := newHarness(t, fake)

	alice := h.seedPerson(t, "Alice", "a cheerful baker", "relaxed")
	msgID, err := h.store.SendMessage(ctx, model.NewMessage{
		Sender:    model.RealWorldUser(),
		Recipient: model.ToPerson(alice),
		Content:   "hello",
	})
	require.NoError(t, err)
	_, err = h.store.UnshiftJob(ctx, model.ProcessMessage{MessageID: msgID})
	require.NoError(t, err)

	assert.Empty(t, h.drain(t))

	waits, err := h.store.ListJobs(ctx, model.JobPersonWaiting)
	require.NoError(t, err)
	require.Len(t, waits, 1)
	pw := waits[0].Payload.(model.PersonWaiting)
	assert.Equal(t, alice, pw.PersonID)
	assert.Equal(t, reaction.IdleDurationMS, pw.DurationMS)
	assert.GreaterOrEqual(t, pw.CurrentActiveMS, int64(0))
	assert.NotNil(t, waits[0].FinishedAt)

	msg, err := h.store.GetMessageByID(ctx, msgID)
	require.NoError(t, err)
	assert.NotNil(t, msg.ReadAt)
}

func TestMessageToRealWorldUserIsOnlyRead(t *testing.T) {
	ctx := context.Background()
	fake := &llmtest.Fake{}
	h := newHarness(t, fake)

	alice := h.seedPerson(t, "Alice", "a cheerful baker", "relaxed")
	msgID, err := h.store.SendMessage(ctx, model.NewMessage{
		Sender:    model.AIPerson(alice),
		Recipient: model.ToRealWorldUser(),
		Content:   "hi Chadtech",
	})
	require.NoError(t, err)
	_, err = h.store.UnshiftJob(ctx, model.ProcessMessage{MessageID: msgID})
	require.NoError(t, err)

	_, err = h.worker.RunOnce(ctx)
	require.NoError(t, err)
	assert.Empty(t, fake.Requests())

	msg, err := h.store.GetMessageByID(ctx, msgID)
	require.NoError(t, err)
	assert.NotNil(t, msg.ReadAt)
}

func TestFanOutOrderIsSeeded(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, &llmtest.Fake{})

	park, err := h.store.CreateScene(ctx, "Park", "green")
	require.NoError(t, err)
	for _, name := range []string{"Ann", "Ben", "Cat", "Dov", "Eli"} {
		h.seedPerson(t, name, "", "")
		_, err := h.store.AddPersonToScene(ctx, park, name)
		require.NoError(t, err)
	}

	recipients := func() []model.PersonID {
		_, err := h.store.UnshiftJob(ctx, model.SendMessageToScene{
			Sender:     model.RealWorldUser(),
			SceneID:    park,
			Content:    "hello all",
			RandomSeed: 42,
		})
		require.NoError(t, err)
		_, err = h.worker.RunOnce(ctx)
		require.NoError(t, err)

		jobs, err := h.store.ListJobs(ctx, model.JobProcessMessage)
		require.NoError(t, err)
		var ids []model.PersonID
		for _, j := range jobs[len(jobs)-5:] {
			ids = append(ids, *j.Payload.(model.ProcessMessage).RecipientPersonID)
		}
		return ids
	}

	first := recipients()
	second := recipients()
	assert.Len(t, first, 5)
	assert.Equal(t, first, second)
}

func TestShuffleParticipantsDeterministic(t *testing.T) {
	mk := func() []model.SceneParticipation {
		var parts []model.SceneParticipation
		for i := uint64(1); i <= 8; i++ {
			parts = append(parts, model.SceneParticipation{PersonID: model.As[model.PersonID](model.TestID(i))})
		}
		return parts
	}

	a, b := mk(), mk()
	shuffleParticipants(a, 42)
	shuffleParticipants(b, 42)
	assert.Equal(t, a, b)
	assert.ElementsMatch(t, mk(), a)
}

func TestPersonWaitingIsNoop(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, &llmtest.Fake{})

	_, err := h.store.UnshiftJob(ctx, model.PersonWaiting{
		PersonID:   model.As[model.PersonID](model.TestID(1)),
		DurationMS: 1000,
	})
	require.NoError(t, err)

	job, err := h.worker.RunOnce(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
}

func TestUndecodableJobIsFinishedAndQueueDrains(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := store.NewSQLiteStore(path, store.Options{Dimensions: 3})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	h := newHarnessWithStore(t, s, &llmtest.Fake{})

	_, err = s.UnshiftJob(ctx, model.Ping{})
	require.NoError(t, err)

	raw, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer raw.Close()
	_, err = raw.Exec(`INSERT INTO job (id, kind, payload, created_at)
		VALUES ('01ARZ3NDEKTSV4RRFFQ69G5FAV', 'mystery', '{}', '9999-01-01T00:00:00.000000000Z')`)
	require.NoError(t, err)

	errs := h.drain(t)
	require.Len(t, errs, 1)
	assert.ErrorContains(t, errs[0], `unknown kind "mystery"`)
	assert.Equal(t, "Pong\n", h.out.String())

	var finished bool
	require.NoError(t, raw.QueryRow(`SELECT finished_at IS NOT NULL FROM job WHERE kind = 'mystery'`).Scan(&finished))
	assert.True(t, finished)
}

func TestRunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s := openStore(t)
	h := newHarnessWithStore(t, s, &llmtest.Fake{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.worker.Run(ctx) }()

	_, err := s.UnshiftJob(context.Background(), model.Ping{})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return strings.Contains(h.out.String(), "Pong")
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
	require.NoError(t, s.Close())
}
