package arena

// Phase selects when an end task runs relative to the end-of-game cleanup
type Phase int

const (
	Before Phase = iota
	After
)

// GameTask is a hook run every time a game ends
type GameTask struct {
	Phase Phase
	Run   func(e *Engine)
}

// RegisterEndTask adds a hook. Hooks of a phase run in registration order.
func (e *Engine) RegisterEndTask(t GameTask) {
	if t.Run == nil {
		return
	}
	e.endTasks = append(e.endTasks, t)
}

func (e *Engine) runEndTasks(phase Phase) {
	for _, t := range e.endTasks {
		if t.Phase == phase {
			t.Run(e)
		}
	}
}
