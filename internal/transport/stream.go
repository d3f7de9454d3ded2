package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// Stream event kinds. Anything else on the wire is ignored so newer
// backends can add kinds without breaking older clients.
const (
	EventChunk    = "chunk"
	EventComplete = "complete"
	EventError    = "error"
	EventStatus   = "status"
)

// StreamRequest is the payload for POST /proxy/stream.
type StreamRequest struct {
	Action         string `json:"action"`
	Provider       string `json:"provider"`
	Prompt         string `json:"prompt"`
	URL            string `json:"url"`
	ServerName     string `json:"serverName"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// StreamEvent is one decoded event from the SSE body.
type StreamEvent struct {
	Type    string
	Content string    // chunk: incremental text, concatenated in arrival order
	Payload *Response // complete: same shape as the non-streaming success case
	Err     string    // error: terminal failure text
	Status  string    // status: informational only
}

// wire framing: lines of the form `data: {"type":...,"data":...}`.
type streamFrame struct {
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

type chunkData struct {
	Content string `json:"content"`
	Text    string `json:"text"`
}

// Stream opens the streaming analyze endpoint and decodes its SSE body
// into a channel of events. The channel closes when the body ends or ctx
// is cancelled; cancellation releases the underlying connection.
func (c *Client) Stream(ctx context.Context, req StreamRequest) (<-chan StreamEvent, error) {
	if req.Action == "" {
		req.Action = "ai_analyze"
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/proxy/stream", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, parseAPIError(resp)
	}

	out := make(chan StreamEvent)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		c.decodeStream(resp.Body, func(ev StreamEvent) bool {
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		})
	}()
	return out, nil
}

// decodeStream reads the body line by line, emitting one event per parsed
// `data: ` line. bufio carries partial trailing lines across network reads,
// so a logical line split between chunks is reassembled before parsing.
// Malformed JSON is logged and skipped, never fatal.
func (c *Client) decodeStream(r io.Reader, emit func(StreamEvent) bool) {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")

		if data, ok := strings.CutPrefix(line, "data: "); ok {
			var frame streamFrame
			if jerr := json.Unmarshal([]byte(data), &frame); jerr != nil {
				c.Logger.Warn("dropping malformed stream line", "error", jerr)
			} else if ev, ok := frameToEvent(frame); ok {
				if !emit(ev) {
					return
				}
			}
		}

		if err != nil {
			return
		}
	}
}

func frameToEvent(frame streamFrame) (StreamEvent, bool) {
	switch frame.Type {
	case EventChunk:
		var cd chunkData
		if len(frame.Data) > 0 {
			// a chunk with an undecodable body still yields an empty delta
			_ = json.Unmarshal(frame.Data, &cd)
		}
		content := cd.Content
		if content == "" {
			content = cd.Text
		}
		return StreamEvent{Type: EventChunk, Content: content}, true
	case EventComplete:
		var resp Response
		if len(frame.Data) > 0 {
			if err := json.Unmarshal(frame.Data, &resp); err != nil {
				return StreamEvent{Type: EventError, Err: "malformed completion payload"}, true
			}
		}
		return StreamEvent{Type: EventComplete, Payload: &resp}, true
	case EventError:
		msg := frame.Error
		if msg == "" {
			msg = "Streaming error occurred"
		}
		return StreamEvent{Type: EventError, Err: msg}, true
	case EventStatus:
		return StreamEvent{Type: EventStatus, Status: frame.Message}, true
	default:
		return StreamEvent{}, false
	}
}
