package mods

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Class is a numeric obstacle class code, matching the benchmark's taxonomy.
type Class int

const (
	ClassShip   Class = 0
	ClassPerson Class = 1
	ClassOther  Class = 2

	// ClassAgnostic is substituted for every class in the class-agnostic
	// setups, so that class equality never rejects a spatial match.
	ClassAgnostic Class = 0
)

var classNames = []string{"ship", "person", "other"}

func (c Class) String() string {
	if int(c) >= 0 && int(c) < len(classNames) {
		return classNames[c]
	}
	return fmt.Sprintf("class(%v)", int(c))
}

// UnknownClassError reports a detection 'type' value that is neither a known
// class name nor a valid class code. The offending detection is rejected, but
// the evaluation carries on; the orchestrator tallies these per sequence.
type UnknownClassError struct {
	Value any
}

func (e *UnknownClassError) Error() string {
	return fmt.Sprintf("unknown obstacle class %v", e.Value)
}

// ParseClass interprets a detection 'type' value. Accepted forms are integer
// class codes and the class names "ship" (alias "vessel"), "person", and
// "other". JSON numbers arrive as float64, so that form is accepted too.
func ParseClass(v any) (Class, error) {
	switch t := v.(type) {
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "ship", "vessel":
			return ClassShip, nil
		case "person":
			return ClassPerson, nil
		case "other":
			return ClassOther, nil
		}
	case float64:
		if t == float64(int(t)) && int(t) >= 0 && int(t) < len(classNames) {
			return Class(int(t)), nil
		}
	case int:
		if t >= 0 && t < len(classNames) {
			return Class(t), nil
		}
	case json.Number:
		if i, err := t.Int64(); err == nil && i >= 0 && int(i) < len(classNames) {
			return Class(i), nil
		}
	}
	return 0, &UnknownClassError{Value: v}
}
