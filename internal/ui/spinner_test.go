package ui

import "testing"

func TestSpinnerStopIsIdempotent(t *testing.T) {
	t.Parallel()

	sp := NewSimpleSpinner("working")
	sp.Start()
	sp.Stop()
	// A second stop must not close the done channel again.
	sp.Stop()
}

func TestRunSpinnerStopFunc(t *testing.T) {
	t.Parallel()

	stop := RunSpinner("working")
	stop()
	stop()
}
