package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFrameProcessGenerating(t *testing.T) {
	raw := []byte(`{"msg":"process_generating","event_id":"evt-1","output":{"data":["partial"]}}`)
	fr, err := decodeFrame(raw)
	require.NoError(t, err)
	assert.Equal(t, "process_generating", fr.Msg)
	assert.Equal(t, "evt-1", fr.EventID)
	require.NotNil(t, fr.Output)
	assert.Equal(t, []any{"partial"}, fr.Output.Data)
}

func TestDecodeFrameEstimation(t *testing.T) {
	raw := []byte(`{"msg":"estimation","rank":2,"queue_size":5}`)
	fr, err := decodeFrame(raw)
	require.NoError(t, err)
	require.NotNil(t, fr.Rank)
	assert.Equal(t, 2, *fr.Rank)
	require.NotNil(t, fr.QueueSize)
	assert.Equal(t, 5, *fr.QueueSize)
}

func TestDecodeFrameProgress(t *testing.T) {
	raw := []byte(`{"msg":"progress_update","progress_data":{"index":1,"length":10,"unit":"steps","desc":"working"}}`)
	fr, err := decodeFrame(raw)
	require.NoError(t, err)
	require.NotNil(t, fr.ProgressData)
	assert.Equal(t, 1, *fr.ProgressData.Index)
	assert.Equal(t, 10, *fr.ProgressData.Length)
	assert.Equal(t, "steps", fr.ProgressData.Unit)
}

func TestDecodeFrameMalformedJSON(t *testing.T) {
	_, err := decodeFrame([]byte(`not json`))
	require.Error(t, err)
}

func TestDecodeFrameProcessCompletedError(t *testing.T) {
	raw := []byte(`{"msg":"process_completed","event_id":"evt-2","output":{"error":"boom"}}`)
	fr, err := decodeFrame(raw)
	require.NoError(t, err)
	require.NotNil(t, fr.Output)
	assert.Equal(t, "boom", fr.Output.Error)
}
