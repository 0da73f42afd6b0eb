package queue

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// JobType identifies the kind of work a job carries.
type JobType string

const (
	JobTypeCrawl     JobType = "crawl"
	JobTypeDiscovery JobType = "discovery"
	JobTypePlan      JobType = "plan"
	JobTypeGenerate  JobType = "generate"
	JobTypePublish   JobType = "publish"
)

// JobTypes lists every known job type.
var JobTypes = []JobType{
	JobTypeCrawl,
	JobTypeDiscovery,
	JobTypePlan,
	JobTypeGenerate,
	JobTypePublish,
}

// Valid reports whether t is one of the known job types.
func (t JobType) Valid() bool {
	switch t {
	case JobTypeCrawl, JobTypeDiscovery, JobTypePlan, JobTypeGenerate, JobTypePublish:
		return true
	}
	return false
}

// UnknownProject is the routing key segment used when a payload carries no project id.
const UnknownProject = "unknown"

// JobMessage is what callers hand to the Publisher.
// Payload is opaque to this package but must be JSON-serializable.
type JobMessage struct {
	Type    JobType        `json:"type"`
	Payload map[string]any `json:"payload"`
	Retries int            `json:"retries,omitempty"`
}

// JobEnvelope is the wire format: a JobMessage plus the publisher-assigned id.
type JobEnvelope struct {
	ID      string         `json:"id"`
	Type    JobType        `json:"type"`
	Payload map[string]any `json:"payload"`
	Retries int            `json:"retries"`
}

// ProjectID returns payload.projectId rendered as a string, or "" when absent.
func (e JobEnvelope) ProjectID() string {
	return projectID(e.Payload)
}

// Message strips the envelope metadata.
func (e JobEnvelope) Message() JobMessage {
	return JobMessage{Type: e.Type, Payload: e.Payload, Retries: e.Retries}
}

// RoutingKey derives "{type}.{projectId}" with "unknown" for a missing project id.
func RoutingKey(msg JobMessage) string {
	pid := projectID(msg.Payload)
	if pid == "" {
		pid = UnknownProject
	}
	return fmt.Sprintf("%s.%s", msg.Type, pid)
}

func projectID(payload map[string]any) string {
	if payload == nil {
		return ""
	}
	switch v := payload["projectId"].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	}
	return ""
}

// DecodeEnvelope parses a raw delivery body. A missing retries field decodes as 0.
func DecodeEnvelope(body []byte) (JobEnvelope, error) {
	var env JobEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return JobEnvelope{}, fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}
	if env.Retries < 0 {
		env.Retries = 0
	}
	return env, nil
}

func encodeEnvelope(env JobEnvelope) ([]byte, error) {
	if env.Payload == nil {
		env.Payload = map[string]any{}
	}
	body, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope of type %q: %w", env.Type, err)
	}
	return body, nil
}
