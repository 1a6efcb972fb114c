package stream

// State 连接状态
type State int32

const (
	Disconnected State = iota // 初始状态，或重连耗尽
	Connecting
	Connected
	Reconnecting
	Closed // 主动断开，终态
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}
