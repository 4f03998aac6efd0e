// Package input defines the logical commands a pilot can issue and the
// provider contract the control loop reads them through.
package input

// Command identifies a logical pilot command.
type Command string

// Pilot commands.
const (
	Forward  Command = "forward"
	Backward Command = "backward"
	Left     Command = "left"
	Right    Command = "right"
	Up       Command = "up"
	Down     Command = "down"
	YawLeft  Command = "yaw_left"
	YawRight Command = "yaw_right"
	ZeroYaw  Command = "zero_yaw"
	Land     Command = "land"
	Exit     Command = "exit"
)

// AllCommands returns all logical commands in display order.
func AllCommands() []Command {
	return []Command{
		Forward,
		Backward,
		Left,
		Right,
		Up,
		Down,
		YawLeft,
		YawRight,
		ZeroYaw,
		Land,
		Exit,
	}
}

// Provider reports whether a logical command is currently held. The control
// loop samples it fresh each tick; implementations must be non-blocking and
// side-effect free.
type Provider interface {
	Pressed(Command) bool
}
