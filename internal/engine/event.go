package engine

// EventKind distinguishes the three inbound event shapes the transport
// can deliver.
type EventKind int

const (
	EventCommand EventKind = iota
	EventButton
	EventText
)

// Event is one inbound user event. Value holds the command name (without
// slash), the raw button tag, or the free-text content depending on Kind.
// The gateway serializes events per chat, so the engine never sees two
// concurrent events for the same user.
type Event struct {
	Kind     EventKind
	UserID   int64
	ChatID   int64
	Username string
	Value    string
}

// State is the conversation state returned alongside each reply.
type State int

const (
	StateIdle State = iota
	StateTemplateSelect
	StateExerciseSelect
	StateExerciseConfirm
	StateExerciseInput
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTemplateSelect:
		return "template_select"
	case StateExerciseSelect:
		return "exercise_select"
	case StateExerciseConfirm:
		return "exercise_confirm"
	case StateExerciseInput:
		return "exercise_input"
	}
	return "unknown"
}

// Button is one inline keyboard button: a label shown to the user and a
// callback tag delivered back when pressed.
type Button struct {
	Label string
	Tag   string
}

// Reply is the render request produced for one inbound event.
type Reply struct {
	Text     string
	Keyboard [][]Button
	State    State
}

func reply(state State, text string, keyboard [][]Button) Reply {
	return Reply{Text: text, Keyboard: keyboard, State: state}
}
