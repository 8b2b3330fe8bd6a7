package session

import "strconv"

type State uint8

const (
	Idle State = iota
	Resolving
	Connecting
	Sending
	Receiving
	Displaying
	AwaitingUserDecision
	Terminated
)

var stateNames = [...]string{
	Idle:                 "Idle",
	Resolving:            "Resolving",
	Connecting:           "Connecting",
	Sending:              "Sending",
	Receiving:            "Receiving",
	Displaying:           "Displaying",
	AwaitingUserDecision: "AwaitingUserDecision",
	Terminated:           "Terminated",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "State(" + strconv.Itoa(int(s)) + ")"
}
