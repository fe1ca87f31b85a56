package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// JobKind is the discriminator stored alongside a job payload.
type JobKind string

const (
	JobPing               JobKind = "ping"
	JobProcessMessage     JobKind = "process_message"
	JobSendMessageToScene JobKind = "send_message_to_scene"
	JobPersonWaiting      JobKind = "person_waiting"
)

// JobPayload is implemented by every job variant.
type JobPayload interface {
	JobKind() JobKind
}

// Ping is a diagnostic no-op.
type Ping struct{}

// ProcessMessage asks a person to react to a message. RecipientPersonID is
// set when fan-out already chose the reader.
type ProcessMessage struct {
	MessageID         MessageID `json:"message_id"`
	RecipientPersonID *PersonID `json:"recipient_person_id,omitempty"`
}

// SendMessageToScene broadcasts content to the current participants of a scene.
type SendMessageToScene struct {
	Sender     Sender  `json:"sender"`
	SceneID    SceneID `json:"scene_id"`
	Content    string  `json:"content"`
	RandomSeed uint64  `json:"random_seed"`
}

// PersonWaiting records that a person chose to wait.
type PersonWaiting struct {
	PersonID        PersonID `json:"person_id"`
	DurationMS      int64    `json:"duration_ms"`
	CurrentActiveMS int64    `json:"current_active_ms"`
}

func (Ping) JobKind() JobKind               { return JobPing }
func (ProcessMessage) JobKind() JobKind     { return JobProcessMessage }
func (SendMessageToScene) JobKind() JobKind { return JobSendMessageToScene }
func (PersonWaiting) JobKind() JobKind      { return JobPersonWaiting }

// Job is a unit of work in the queue.
type Job struct {
	ID         JobID      `json:"id"`
	Payload    JobPayload `json:"payload"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Kind returns the payload discriminator.
func (j Job) Kind() JobKind {
	if j.Payload == nil {
		return ""
	}
	return j.Payload.JobKind()
}

// EncodeJobPayload returns the discriminator and serialised payload.
func EncodeJobPayload(p JobPayload) (JobKind, []byte, error) {
	if p == nil {
		return "", nil, fmt.Errorf("encode job payload: nil payload")
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", nil, fmt.Errorf("encode %s payload: %w", p.JobKind(), err)
	}
	return p.JobKind(), b, nil
}

// DecodeJobPayload reverses EncodeJobPayload.
func DecodeJobPayload(kind JobKind, data []byte) (JobPayload, error) {
	var p JobPayload
	switch kind {
	case JobPing:
		return Ping{}, nil
	case JobProcessMessage:
		var v ProcessMessage
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", kind, err)
		}
		p = v
	case JobSendMessageToScene:
		var v SendMessageToScene
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", kind, err)
		}
		p = v
	case JobPersonWaiting:
		var v PersonWaiting
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", kind, err)
		}
		p = v
	default:
		return nil, fmt.Errorf("decode job payload: unknown kind %q", kind)
	}
	return p, nil
}
