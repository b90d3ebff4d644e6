package game

// Recorder receives game lifecycle counts. The metrics package implements it.
type Recorder interface {
	SessionStarted()
	RoundStarted()
	RoundEnded(trigger string)
	GameEnded(reason string)
	TransitionDropped()
	Departed(wasDrawer bool)
	GuessChecked(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) SessionStarted()     {}
func (nopRecorder) RoundStarted()       {}
func (nopRecorder) RoundEnded(string)   {}
func (nopRecorder) GameEnded(string)    {}
func (nopRecorder) TransitionDropped()  {}
func (nopRecorder) Departed(bool)       {}
func (nopRecorder) GuessChecked(string) {}
