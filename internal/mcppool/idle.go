package mcppool

import "time"

// armIdleCloseLocked schedules the connection to close after the tool's idle
// window. Callers hold tc.mu.
func (p *Pool) armIdleCloseLocked(tc *toolConn) {
	tc.cancelIdleCloseLocked()
	if tc.idleTimeout <= 0 {
		return
	}

	timerID := tc.idleTimerID
	tc.idleTimer = time.AfterFunc(tc.idleTimeout, func() {
		p.expireIdle(tc, timerID)
	})
}

// cancelIdleCloseLocked stops the pending idle timer. The id bump makes a
// timer that already fired a no-op.
func (tc *toolConn) cancelIdleCloseLocked() {
	if tc.idleTimer != nil {
		tc.idleTimer.Stop()
		tc.idleTimer = nil
	}
	tc.idleTimerID++
}

func (p *Pool) expireIdle(tc *toolConn, timerID uint64) {
	tc.mu.Lock()
	if tc.idleTimerID != timerID || tc.inFlight > 0 || tc.state != StateReady {
		tc.mu.Unlock()
		return
	}
	conn := tc.conn
	tc.conn = nil
	tc.idleTimer = nil
	tc.state = StateClosing
	tc.mu.Unlock()

	tc.logger.Debug("closing idle tool connection", "idle", tc.idleTimeout)
	if conn != nil {
		conn.close() //nolint: errcheck
	}

	tc.mu.Lock()
	if tc.state == StateClosing {
		tc.state = StateIdle
	}
	tc.mu.Unlock()
}
