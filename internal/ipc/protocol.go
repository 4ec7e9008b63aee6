// Package ipc handles inter-process communication between the daemon and clients.
package ipc

import (
	"encoding/json"
	"fmt"

	"github.com/austinkregel/local-media/vizplayer/internal/types"
)

// CommandType represents the type of command
type CommandType string

const (
	CmdLoad      CommandType = "load"
	CmdAdd       CommandType = "add"
	CmdRemove    CommandType = "remove"
	CmdPlay      CommandType = "play"
	CmdPlayIndex CommandType = "playIndex"
	CmdPause     CommandType = "pause"
	CmdResume    CommandType = "resume"
	CmdToggle    CommandType = "toggle"
	CmdStop      CommandType = "stop"
	CmdClear     CommandType = "clear"
	CmdNext      CommandType = "next"
	CmdPrev      CommandType = "prev"
	CmdSeek      CommandType = "seek"
	CmdVolume    CommandType = "volume"
	CmdShuffle   CommandType = "shuffle"
	CmdRepeat    CommandType = "repeat"
	CmdSort      CommandType = "sort"
	CmdStatus    CommandType = "status"

	CmdGetPlaylist CommandType = "getPlaylist"

	// Visualization
	CmdFrame             CommandType = "frame"
	CmdSubscribeFrames   CommandType = "subscribeFrames"
	CmdUnsubscribeFrames CommandType = "unsubscribeFrames"
)

// Push message types
const (
	PushFrame = "frame"
	PushEvent = "event"
)

// PushMessage represents a server-initiated message (no request needed)
type PushMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Request represents a client request
type Request struct {
	Cmd  CommandType     `json:"cmd"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Response represents a server response
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// LoadRequest is the data for a load command. Paths may be files or
// folders; folders are scanned recursively.
type LoadRequest struct {
	Paths []string `json:"paths"`
}

// AddRequest is the data for an add command
type AddRequest struct {
	Path string `json:"path"`
}

// IndexRequest is the data for remove and playIndex commands
type IndexRequest struct {
	Index int `json:"index"`
}

// SeekRequest is the data for a seek command
type SeekRequest struct {
	Position int64 `json:"position"` // milliseconds
}

// VolumeRequest is the data for a volume command
type VolumeRequest struct {
	Level float64 `json:"level"` // 0.0 - 1.0
}

// ShuffleRequest is the data for a shuffle command
type ShuffleRequest struct {
	Enabled bool `json:"enabled"`
}

// RepeatRequest is the data for a repeat command
type RepeatRequest struct {
	Mode string `json:"mode"` // "off", "one", "all"
}

// SortRequest is the data for a sort command
type SortRequest struct {
	By string `json:"by"` // "name", "artist", "album"
}

// PlaylistResponse is the response to a getPlaylist command
type PlaylistResponse struct {
	Tracks  []types.Track `json:"tracks"`
	Index   int           `json:"index"`
	Shuffle bool          `json:"shuffle"`
	Repeat  string        `json:"repeat"`
}

// SubscribeResponse acknowledges a frame subscription.
type SubscribeResponse struct {
	Subscribed bool   `json:"subscribed"`
	ClientID   string `json:"clientId"`
}

// EncodeRequest encodes a request to JSON
func EncodeRequest(req *Request) ([]byte, error) {
	return json.Marshal(req)
}

// DecodeRequest decodes a request from JSON
func DecodeRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to decode request: %w", err)
	}
	return &req, nil
}

// NewRequest builds a request carrying data, which may be nil.
func NewRequest(cmd CommandType, data any) (*Request, error) {
	req := &Request{Cmd: cmd}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s data: %w", cmd, err)
		}
		req.Data = raw
	}
	return req, nil
}

// EncodeResponse encodes a response to JSON
func EncodeResponse(resp *Response) ([]byte, error) {
	return json.Marshal(resp)
}

// DecodeResponse decodes a response from JSON
func DecodeResponse(data []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &resp, nil
}

// NewSuccessResponse creates a successful response
func NewSuccessResponse(data any) (*Response, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, err
		}
	}
	return &Response{
		Success: true,
		Data:    rawData,
	}, nil
}

// NewErrorResponse creates an error response
func NewErrorResponse(err string) *Response {
	return &Response{
		Success: false,
		Error:   err,
	}
}

// NewPushMessage creates a push message for streaming data
func NewPushMessage(msgType string, data any) ([]byte, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, err
		}
	}
	msg := PushMessage{
		Type: msgType,
		Data: rawData,
	}
	return json.Marshal(msg)
}
