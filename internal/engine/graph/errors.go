package graph

import (
	"fmt"
	"strings"
)

type ErrorKind string

const (
	CycleDetected                ErrorKind = "CycleDetected"
	IncompatiblePortType         ErrorKind = "IncompatiblePortType"
	MissingRequiredInput         ErrorKind = "MissingRequiredInput"
	MultipleEdgesIntoSingleInput ErrorKind = "MultipleEdgesIntoSingleInput"
	UnknownNode                  ErrorKind = "UnknownNode"
	UnknownPort                  ErrorKind = "UnknownPort"
	DuplicateNode                ErrorKind = "DuplicateNode"
	MissingInputNode             ErrorKind = "MissingInputNode"
	MissingOutputNode            ErrorKind = "MissingOutputNode"
	DisconnectedNode             ErrorKind = "DisconnectedNode"
	UnknownKind                  ErrorKind = "UnknownKind"
	InvalidParameters            ErrorKind = "InvalidParameters"
)

// ValidationError rejects a graph before anything is scheduled.
type ValidationError struct {
	Kind    ErrorKind `json:"kind"`
	Nodes   []string  `json:"nodes,omitempty"`
	NodeID  string    `json:"nodeId,omitempty"`
	Port    string    `json:"port,omitempty"`
	Message string    `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

func newError(kind ErrorKind, nodeID, port string, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: kind, NodeID: nodeID, Port: port, Message: fmt.Sprintf(format, args...)}
}

func cycleError(path []string) *ValidationError {
	return &ValidationError{
		Kind:    CycleDetected,
		Nodes:   path,
		Message: "workflow contains a cycle: " + strings.Join(append(append([]string(nil), path...), path[0]), " -> "),
	}
}
