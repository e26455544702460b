package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxflow-ai/voxflow/internal/observability"
	"github.com/voxflow-ai/voxflow/internal/orchestrator"
	"github.com/voxflow-ai/voxflow/internal/telephony"
)

// utteranceGap is the silence window after which buffered caller audio
// is treated as a finished utterance. The carrier streams fixed-size
// frames continuously, so finality has to be inferred from the gaps.
const utteranceGap = 700 * time.Millisecond

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The carrier connects without a browser origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// mediaStream is the per-connection state of one carrier media stream.
type mediaStream struct {
	server *Server
	conn   *websocket.Conn
	callID string

	writeMu   sync.Mutex
	streamSID string

	timerMu      sync.Mutex
	silenceTimer *time.Timer
}

// handleMediaStream serves the bidirectional audio WebSocket for one
// call: inbound frames feed the engine, engine outputs are played back
// as media frames followed by a mark.
func (s *Server) handleMediaStream(w http.ResponseWriter, r *http.Request) {
	callID := r.PathValue("call_id")
	ctx := observability.WithCallID(r.Context(), callID)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.cfg.Logger.Warn(ctx, "media stream upgrade failed", "error", err)
		return
	}

	ms := &mediaStream{server: s, conn: conn, callID: callID}
	ms.run(ctx)
}

func (ms *mediaStream) run(ctx context.Context) {
	s := ms.server
	defer ms.conn.Close()
	defer ms.stopSilenceTimer()

	for {
		_, data, err := ms.conn.ReadMessage()
		if err != nil {
			s.cfg.Logger.Debug(ctx, "media stream closed", "error", err)
			return
		}

		frame, err := telephony.ParseStreamFrame(data)
		if err != nil {
			s.cfg.Logger.Warn(ctx, "dropping malformed stream frame", "error", err)
			continue
		}

		switch frame.Event {
		case telephony.StreamEventConnected:
			// Protocol preamble, nothing to do yet.

		case telephony.StreamEventStart:
			ms.streamSID = frame.Start.StreamSID
			out, err := s.cfg.Engine.OnCallAnswered(ctx, ms.callID)
			if err != nil {
				s.cfg.Logger.Error(ctx, "answer handling failed", "error", err)
				return
			}
			ms.deliver(ctx, out)

		case telephony.StreamEventMedia:
			audio, err := frame.AudioPayload()
			if err != nil {
				s.cfg.Logger.Warn(ctx, "dropping undecodable media frame", "error", err)
				continue
			}
			if _, err := s.cfg.Engine.OnSpeechReceived(ctx, ms.callID, audio, false); err != nil {
				s.cfg.Logger.Warn(ctx, "failed to buffer caller audio", "error", err)
				continue
			}
			ms.resetSilenceTimer(ctx)

		case telephony.StreamEventMark:
			ms.stopSilenceTimer()
			if err := s.cfg.Engine.OnPlaybackFinished(ctx, ms.callID); err != nil {
				s.cfg.Logger.Debug(ctx, "playback-finished not applied", "error", err)
			}

		case telephony.StreamEventStop:
			if err := s.cfg.Engine.OnCallEnded(ctx, ms.callID, orchestrator.ReasonCallerHangup); err != nil {
				s.cfg.Logger.Debug(ctx, "stream stop on terminated call", "error", err)
			}
			return
		}
	}
}

// resetSilenceTimer (re)arms the utterance finalizer; it fires once no
// media frame has arrived for the gap window.
func (ms *mediaStream) resetSilenceTimer(ctx context.Context) {
	ms.timerMu.Lock()
	defer ms.timerMu.Unlock()

	if ms.silenceTimer != nil {
		ms.silenceTimer.Stop()
	}
	ms.silenceTimer = time.AfterFunc(utteranceGap, func() {
		ms.finalizeUtterance(ctx)
	})
}

func (ms *mediaStream) stopSilenceTimer() {
	ms.timerMu.Lock()
	defer ms.timerMu.Unlock()
	if ms.silenceTimer != nil {
		ms.silenceTimer.Stop()
		ms.silenceTimer = nil
	}
}

// finalizeUtterance runs the turn pipeline over the buffered audio and
// plays the engine's reply back on the stream.
func (ms *mediaStream) finalizeUtterance(ctx context.Context) {
	s := ms.server

	out, err := s.cfg.Engine.OnSpeechReceived(ctx, ms.callID, nil, true)
	if err != nil {
		s.cfg.Logger.Warn(ctx, "turn processing failed", "error", err)
		return
	}
	ms.deliver(ctx, out)
}

// deliver plays an engine output on the stream: the audio, then a mark
// the carrier echoes back once playback finishes. A hangup output
// closes the connection after delivery; the engine has already ended
// the carrier leg.
func (ms *mediaStream) deliver(ctx context.Context, out *orchestrator.Output) {
	if out == nil || out.Dropped || (len(out.Audio) == 0 && !out.ShouldHangup) {
		return
	}
	s := ms.server

	ms.writeMu.Lock()
	defer ms.writeMu.Unlock()

	if len(out.Audio) > 0 {
		frame, err := telephony.MediaFrame(ms.streamSID, out.Audio)
		if err == nil {
			err = ms.conn.WriteMessage(websocket.TextMessage, frame)
		}
		if err != nil {
			s.cfg.Logger.Warn(ctx, "failed to send reply audio", "error", err)
			return
		}

		mark, err := telephony.MarkFrame(ms.streamSID, "reply")
		if err == nil {
			err = ms.conn.WriteMessage(websocket.TextMessage, mark)
		}
		if err != nil {
			s.cfg.Logger.Warn(ctx, "failed to send playback mark", "error", err)
		}
	}

	if out.ShouldHangup {
		deadline := time.Now().Add(time.Second)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "call ended")
		if err := ms.conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
			s.cfg.Logger.Debug(ctx, "failed to close media stream cleanly", "error", err)
		}
	}
}
