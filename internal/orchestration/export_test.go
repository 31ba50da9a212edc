package orchestration

import "time"

// SetGuardWaitPolicy shortens the wait-for-winner schedule in tests.
func SetGuardWaitPolicy(g *IdempotencyGuard, backoff time.Duration, retries int) {
	g.backoff = backoff
	g.retries = retries
}

// SetMachineClock pins the state machine's clock in tests.
func SetMachineClock(m *StateMachine, now func() time.Time) {
	m.now = now
}
