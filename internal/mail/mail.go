package mail

import (
	"context"
	"errors"
	"fmt"
)

// Message is a single rendered HTML email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

func (m Message) Validate() error {
	if m.To == "" {
		return errors.New("mail: recipient required")
	}
	if m.Subject == "" {
		return errors.New("mail: subject required")
	}
	return nil
}

// Sender delivers a message or reports why it could not.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Stream field names used when a message travels through redis.
const (
	fieldTo      = "to"
	fieldSubject = "subject"
	fieldHTML    = "html"
)

func (m Message) values() map[string]any {
	return map[string]any{
		fieldTo:      m.To,
		fieldSubject: m.Subject,
		fieldHTML:    m.HTML,
	}
}

// DecodeMessage rebuilds a Message from redis stream entry values.
func DecodeMessage(values map[string]any) (Message, error) {
	get := func(key string) (string, error) {
		raw, ok := values[key]
		if !ok {
			return "", fmt.Errorf("mail: missing field %q", key)
		}
		s, ok := raw.(string)
		if !ok {
			return "", fmt.Errorf("mail: field %q is %T", key, raw)
		}
		return s, nil
	}

	var (
		msg Message
		err error
	)
	if msg.To, err = get(fieldTo); err != nil {
		return Message{}, err
	}
	if msg.Subject, err = get(fieldSubject); err != nil {
		return Message{}, err
	}
	if msg.HTML, err = get(fieldHTML); err != nil {
		return Message{}, err
	}
	return msg, msg.Validate()
}
