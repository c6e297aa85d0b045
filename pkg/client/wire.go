package client

import "encoding/json"

// wireFrame is the JSON shape of a server→client frame, §6.
type wireFrame struct {
	Msg          string        `json:"msg"`
	Stage        string        `json:"stage,omitempty"`
	Code         *int          `json:"code,omitempty"`
	QueueSize    *int          `json:"queue_size,omitempty"`
	Rank         *int          `json:"rank,omitempty"`
	Success      *bool         `json:"success,omitempty"`
	EventID      string        `json:"event_id,omitempty"`
	Output       *wireOutput   `json:"output,omitempty"`
	Log          string        `json:"log,omitempty"`
	Level        string        `json:"level,omitempty"`
	ProgressData *wireProgress `json:"progress_data,omitempty"`
}

type wireOutput struct {
	Data            any      `json:"data,omitempty"`
	Error           string   `json:"error,omitempty"`
	AverageDuration *float64 `json:"average_duration,omitempty"`
}

type wireProgress struct {
	Index  *int   `json:"index,omitempty"`
	Length *int   `json:"length,omitempty"`
	Unit   string `json:"unit,omitempty"`
	Desc   string `json:"desc,omitempty"`
}

func decodeFrame(raw []byte) (Frame, error) {
	var w wireFrame
	if err := json.Unmarshal(raw, &w); err != nil {
		return Frame{}, err
	}
	f := Frame{
		Msg:       w.Msg,
		Stage:     w.Stage,
		Code:      w.Code,
		QueueSize: w.QueueSize,
		Rank:      w.Rank,
		Success:   w.Success,
		EventID:   w.EventID,
		Log:       w.Log,
		Level:     w.Level,
	}
	if w.Output != nil {
		f.Output = &FrameOutput{
			Data:            w.Output.Data,
			Error:           w.Output.Error,
			AverageDuration: w.Output.AverageDuration,
		}
	}
	if w.ProgressData != nil {
		f.ProgressData = &ProgressData{
			Index:  w.ProgressData.Index,
			Length: w.ProgressData.Length,
			Unit:   w.ProgressData.Unit,
			Desc:   w.ProgressData.Desc,
		}
	}
	return f, nil
}

// hashReply is the client frame replying to a WS send_hash frame, §6.
type hashReply struct {
	FnIndex     int    `json:"fn_index"`
	SessionHash string `json:"session_hash"`
}

// hashOpenFrame is the back-compat frame sent unsolicited on WS open for
// servers older than 3.6.0 (§4.6, §9, version.go). Its wire shape is
// `{hash: session_hash}`, distinct from hashReply's send_hash reply.
type hashOpenFrame struct {
	Hash string `json:"hash"`
}

// dataReply is the client frame replying to a send_data frame, §6: written
// to the WS, or POSTed to /queue/data by the sse-legacy transport.
type dataReply struct {
	FnIndex     int    `json:"fn_index"`
	Data        []any  `json:"data"`
	EventData   any    `json:"event_data,omitempty"`
	TriggerID   *int   `json:"trigger_id,omitempty"`
	SessionHash string `json:"session_hash"`
	EventID     string `json:"event_id,omitempty"`
}

// joinBody is the POST body for /queue/join (sse-mux) and the WS open
// back-compat `{hash: session_hash}` frame is modeled separately; see
// version.go.
type joinBody struct {
	Data        []any  `json:"data"`
	EventData   any    `json:"event_data,omitempty"`
	FnIndex     int    `json:"fn_index"`
	TriggerID   *int   `json:"trigger_id,omitempty"`
	SessionHash string `json:"session_hash"`
}

// resetBody is the POST body for /reset, either the WS form
// ({fn_index, session_hash}) or the event-id form used by every other
// transport, §4.6.
type resetBody struct {
	FnIndex     *int   `json:"fn_index,omitempty"`
	SessionHash string `json:"session_hash,omitempty"`
	EventID     string `json:"event_id,omitempty"`
}

type joinResponse struct {
	EventID string `json:"event_id,omitempty"`
}

type directResponse struct {
	Data            []any    `json:"data"`
	Error           string   `json:"error,omitempty"`
	AverageDuration *float64 `json:"average_duration,omitempty"`
}
