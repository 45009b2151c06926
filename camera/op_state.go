package camera

import "sync/atomic"

// OpState is the open state of a session's control channel.
type OpState uint32

const (
	ClosedState OpState = iota
	ClosingState
	OpeningState
	OpenedState
)

func (s OpState) String() string {
	switch s {
	case ClosedState:
		return "closed"
	case ClosingState:
		return "closing"
	case OpeningState:
		return "opening"
	case OpenedState:
		return "opened"
	default:
		return "unknown"
	}
}

// atomicOpState moves through Closed -> Opening -> Opened -> Closing -> Closed with CAS transitions.
type atomicOpState struct {
	state atomic.Uint32
}

func (st *atomicOpState) Get() OpState { return OpState(st.state.Load()) }

// Set forces the state, used when the device is lost mid-operation.
func (st *atomicOpState) Set(state OpState) { st.state.Store(uint32(state)) }

func (st *atomicOpState) IsClosed() bool { return st.Get() == ClosedState }

func (st *atomicOpState) IsOpened() bool { return st.Get() == OpenedState }

func (st *atomicOpState) ToOpening() bool {
	return st.state.CompareAndSwap(uint32(ClosedState), uint32(OpeningState))
}

func (st *atomicOpState) ToOpened() bool {
	if st.IsOpened() {
		return true
	}

	return st.state.CompareAndSwap(uint32(OpeningState), uint32(OpenedState))
}

func (st *atomicOpState) ToClosing() bool {
	if st.state.CompareAndSwap(uint32(OpenedState), uint32(ClosingState)) {
		return true
	}

	return st.state.CompareAndSwap(uint32(OpeningState), uint32(ClosingState))
}

func (st *atomicOpState) ToClosed() bool {
	if st.IsClosed() {
		return true
	}

	return st.state.CompareAndSwap(uint32(ClosingState), uint32(ClosedState))
}
