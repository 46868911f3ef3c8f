package server

import (
	"context"
	"errors"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"

	"github.com/autotap/autotap/internal/calibrate"
)

// Custom JSON-RPC error codes.
const (
	codeNotActive = jrpc2.Code(-32010)
	codeNoSession = jrpc2.Code(-32011)
)

const (
	methodSessionState    = "session.state"
	methodSessionDispatch = "session.dispatch"
)

// VersionResult is the response for system.getVersion.
type VersionResult struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildType string `json:"buildType,omitempty"`
}

// StatusResult is the response for session.status.
type StatusResult struct {
	Session     string `json:"session"`
	State       string `json:"state"`
	Dispatched  int    `json:"dispatched"`
	Total       int    `json:"total"`
	BaseDelayMS int64  `json:"baseDelayMs"`
	OffsetMS    int64  `json:"offsetMs"`
}

// CalibrationResult is the response for the calibration.* methods.
type CalibrationResult struct {
	Command  string `json:"command"`
	OffsetMS int64  `json:"offsetMs"`
	StepMS   int64  `json:"stepMs"`
	Message  string `json:"message"`
}

// StateNotification is pushed as session.state.
type StateNotification struct {
	Session string `json:"session"`
	State   string `json:"state"`
	Reason  string `json:"reason,omitempty"`
}

// DispatchNotification is pushed as session.dispatch.
type DispatchNotification struct {
	Session   string  `json:"session"`
	Index     int     `json:"index"`
	InstantMS int64   `json:"instantMs"`
	Actions   int     `json:"actions"`
	LateMS    float64 `json:"lateMs"`
	OffsetMS  int64   `json:"offsetMs"`
}

var errNoSession = &jrpc2.Error{Code: codeNoSession, Message: "no session attached"}

func (s *Server) methodMap() handler.Map {
	return handler.Map{
		"system.getVersion":   handler.New(s.systemGetVersion),
		"session.status":      handler.New(s.sessionStatus),
		"calibration.advance": handler.New(s.calibration(calibrate.Advance)),
		"calibration.retreat": handler.New(s.calibration(calibrate.Retreat)),
		"calibration.reset":   handler.New(s.calibration(calibrate.Reset)),
	}
}

func (s *Server) systemGetVersion(_ context.Context) (*VersionResult, error) {
	return &VersionResult{
		Version:   s.cfg.Version,
		Commit:    s.cfg.Commit,
		BuildType: s.cfg.BuildType,
	}, nil
}

func (s *Server) sessionStatus(_ context.Context) (*StatusResult, error) {
	sess, _ := s.attached()
	if sess == nil {
		return nil, errNoSession
	}
	st := sess.Status()
	return &StatusResult{
		Session:     st.ID,
		State:       st.State.String(),
		Dispatched:  st.Dispatched,
		Total:       st.Total,
		BaseDelayMS: st.BaseDelay.Milliseconds(),
		OffsetMS:    st.Offset.Milliseconds(),
	}, nil
}

func (s *Server) calibration(cmd calibrate.Command) func(context.Context) (*CalibrationResult, error) {
	return func(ctx context.Context) (*CalibrationResult, error) {
		_, c := s.attached()
		if c == nil {
			return nil, errNoSession
		}
		offset, err := c.Submit(ctx, cmd)
		if errors.Is(err, calibrate.ErrNotActive) {
			return nil, &jrpc2.Error{Code: codeNotActive, Message: err.Error()}
		}
		if err != nil {
			return nil, err
		}
		s.log.Info("remote %s, offset %s", cmd, offset)
		return &CalibrationResult{
			Command:  cmd.String(),
			OffsetMS: offset.Milliseconds(),
			StepMS:   c.Step().Milliseconds(),
			Message:  calibrate.Describe(cmd, c.Step(), offset),
		}, nil
	}
}
