package session

import (
	"context"
	"math/rand/v2"
	"time"

	"frequency/db"
	"frequency/frequency"
	"frequency/models"
)

// Per-tick strength shown while sweeping. It is a display cue, not the
// settled static level a tune reports.
const (
	noiseFloor     = 0.1
	signalStrength = 0.8
	signalJitter   = 0.2
)

type scanner struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *Session) startScan(p ScanPayload) *Error {
	dir := db.Direction(p.Direction)
	if !dir.Valid() {
		return wireError(CodeBadPayload, "direction must be up or down", nil)
	}
	var interval time.Duration
	switch p.Speed {
	case "slow", "":
		interval = s.svc.SlowScan
		if interval <= 0 {
			interval = DefaultSlowScan
		}
	case "fast":
		interval = s.svc.FastScan
		if interval <= 0 {
			interval = DefaultFastScan
		}
	default:
		return wireError(CodeBadPayload, "speed must be slow or fast", nil)
	}

	s.scanMu.Lock()
	defer s.scanMu.Unlock()
	s.stopScanLocked()

	ctx, cancel := context.WithCancel(s.ctx)
	sc := &scanner{cancel: cancel, done: make(chan struct{})}
	s.scan = sc
	s.svc.Metrics.ScanStarted()
	go s.sweep(ctx, sc, dir, interval)

	s.log.Debug("scan started", "direction", dir, "speed", p.Speed)
	return nil
}

// stopScan is a no-op when nothing is scanning.
func (s *Session) stopScan() {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()
	s.stopScanLocked()
}

func (s *Session) stopScanLocked() {
	if s.scan == nil {
		return
	}
	s.scan.cancel()
	<-s.scan.done
	s.scan = nil
}

func (s *Session) sweep(ctx context.Context, sc *scanner, dir db.Direction, interval time.Duration) {
	defer close(sc.done)
	defer s.svc.Metrics.ScanStopped()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	userID := s.UserID()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		f := frequency.Advance(s.frequency, dir)
		s.frequency = f
		s.mu.Unlock()

		info, err := s.svc.Directory.InfoForUser(ctx, userID, f)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.fail(EventScan, time.Now(), wireError(CodeScan, "Scan interrupted", err))
			return
		}

		ev := &ScanUpdateEvent{Frequency: f, SignalStrength: noiseFloor}
		if info != nil && info.Frequency.BroadcastType != models.BroadcastStatic {
			ev.SignalStrength = signalStrength + rand.Float64()*signalJitter
			switch bt := info.Frequency.BroadcastType; bt {
			case models.BroadcastVoice, models.BroadcastMorse, models.BroadcastNumbers:
				ev.Blip = bt
			}
		}
		if ctx.Err() != nil {
			return
		}
		s.emit.Emit(EventScanUpdate, ev)
	}
}
