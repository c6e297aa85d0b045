package client

// interpreted is the pure classification of one server frame (C3).
type interpreted struct {
	Kind   FrameKind
	Status *StatusEvent
	Data   *DataEvent
	Log    *LogEvent
}

// interpret classifies a single server frame and, when it carries a status
// update, produces the StatusEvent the engine should fire (or stash, for a
// terminal frame). It is a pure function: it never mutates shared state —
// callers own lastStatus keyed by fn_index.
func interpret(frame Frame, fnIndex int, endpoint string, previousStage Stage) interpreted {
	switch frame.Msg {
	case "send_hash":
		return interpreted{Kind: FrameHash}

	case "send_data":
		return interpreted{Kind: FrameData}

	case "queue_full":
		return interpreted{Kind: FrameUnexpectedError}

	case "estimation", "progress":
		return interpreted{Kind: FrameUpdate, Status: &StatusEvent{
			Stage:    StagePending,
			Queue:    true,
			FnIndex:  fnIndex,
			Endpoint: endpoint,
			Progress: frame.ProgressData,
		}}

	case "process_starts":
		return interpreted{
			Kind: FrameUpdate,
			Status: &StatusEvent{
				Stage:    StagePending,
				Queue:    true,
				FnIndex:  fnIndex,
				Endpoint: endpoint,
			},
		}

	case "process_generating":
		st := &StatusEvent{
			Stage:    StageGenerating,
			Queue:    true,
			FnIndex:  fnIndex,
			Endpoint: endpoint,
		}
		var data *DataEvent
		if frame.Output != nil {
			data = &DataEvent{
				Data:     frame.Output.Data,
				FnIndex:  fnIndex,
				Endpoint: endpoint,
			}
		}
		return interpreted{Kind: FrameGenerating, Status: st, Data: data}

	case "process_completed":
		st := &StatusEvent{
			Stage:    StageComplete,
			Queue:    true,
			FnIndex:  fnIndex,
			Endpoint: endpoint,
		}
		var data *DataEvent
		if frame.Output != nil {
			if frame.Output.Error != "" {
				st.Stage = StageError
				st.Message = frame.Output.Error
			} else {
				st.ETA = frame.Output.AverageDuration
				data = &DataEvent{
					Data:     frame.Output.Data,
					FnIndex:  fnIndex,
					Endpoint: endpoint,
				}
			}
		}
		return interpreted{Kind: FrameComplete, Status: st, Data: data}

	case "log":
		return interpreted{
			Kind: FrameLog,
			Log: &LogEvent{
				Level:    frame.Level,
				Log:      frame.Log,
				FnIndex:  fnIndex,
				Endpoint: endpoint,
			},
		}

	case "heartbeat":
		return interpreted{Kind: FrameHeartbeat}

	case "unexpected_error":
		return interpreted{Kind: FrameUnexpectedError}

	case "close_stream":
		return interpreted{Kind: FrameCloseStream}

	default:
		// Unknown msg values are treated as a no-op update, preserving the
		// previous stage rather than regressing it.
		return interpreted{
			Kind: FrameUpdate,
			Status: &StatusEvent{
				Stage:    previousStage,
				FnIndex:  fnIndex,
				Endpoint: endpoint,
			},
		}
	}
}
