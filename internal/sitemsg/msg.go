package sitemsg

import (
	"fmt"
)

// Message is one event from the server's sync stream. The wire format is a
// flat JSON object tagged by a "type" field; Data holds the typed payload.
type Message struct {
	Type MessageType
	Data any
}

// UnmarshalJSON decodes the flat wire object into a typed payload.
func (m *Message) UnmarshalJSON(data []byte) error {
	var tag struct {
		Type MessageType `json:"type"`
	}
	if err := jsonUnmarshal(data, &tag); err != nil {
		return err
	}
	m.Type = tag.Type

	switch tag.Type {
	case MsgLiveSync:
		var payload LiveSync
		if err := jsonUnmarshal(data, &payload); err != nil {
			return err
		}
		m.Data = payload
	case MsgFileSaved:
		var payload FileSaved
		if err := jsonUnmarshal(data, &payload); err != nil {
			return err
		}
		m.Data = payload
	case MsgFileRenamed:
		var payload FileRenamed
		if err := jsonUnmarshal(data, &payload); err != nil {
			return err
		}
		m.Data = payload
	case MsgFileMoved:
		var payload FileMoved
		if err := jsonUnmarshal(data, &payload); err != nil {
			return err
		}
		m.Data = payload
	case MsgFileDeleted:
		var payload FileDeleted
		if err := jsonUnmarshal(data, &payload); err != nil {
			return err
		}
		m.Data = payload
	default:
		return fmt.Errorf("unknown message type: %q", tag.Type)
	}

	return nil
}
