package parser

import (
	"errors"
	"fmt"
	"strings"
)

// Container and model element names.
const (
	ModelTag   = "mxGraphModel"
	DiagramTag = "diagram"
	FileTag    = "mxfile"
)

var (
	// ErrInvalidSource marks a diagram source that is not well-formed XML.
	ErrInvalidSource = errors.New("invalid diagram source")
	// ErrNotDiagram marks a well-formed source that holds no graph model.
	ErrNotDiagram = errors.New("not a valid diagram")
)

// Status classifies the outcome of Decode.
type Status int

const (
	// StatusOK means a graph model was found.
	StatusOK Status = iota
	// StatusEmpty means the source parsed but carries no graph model.
	StatusEmpty
	// StatusMalformed means the source is not well-formed XML.
	StatusMalformed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusEmpty:
		return "empty"
	case StatusMalformed:
		return "malformed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Result is the outcome of decoding a diagram container. Model is set only
// for StatusOK; Err explains the other statuses.
type Result struct {
	Status Status
	Model  *Element
	Err    error
}

// Decode extracts the mxGraphModel element from a diagram container. The
// source may be the model itself, a <diagram> wrapper, or an <mxfile> holding
// wrappers, and a wrapper may carry the model inline or compressed.
func Decode(source string) Result {
	root, err := ParseXMLString(source)
	if err != nil {
		return Result{Status: StatusMalformed, Err: fmt.Errorf("%w: %v", ErrInvalidSource, err)}
	}

	model, err := resolveModel(root)
	if err != nil {
		return Result{Status: StatusEmpty, Err: fmt.Errorf("%w: %v", ErrNotDiagram, err)}
	}
	if model == nil || !strings.EqualFold(model.Name, ModelTag) {
		return Result{Status: StatusEmpty, Err: ErrNotDiagram}
	}
	return Result{Status: StatusOK, Model: model}
}

func resolveModel(root *Element) (*Element, error) {
	switch {
	case strings.EqualFold(root.Name, DiagramTag):
		return unwrapDiagram(root)
	case strings.EqualFold(root.Name, FileTag):
		d := root.Find(DiagramTag)
		if d == nil {
			return nil, nil
		}
		return unwrapDiagram(d)
	default:
		return root, nil
	}
}

func unwrapDiagram(d *Element) (*Element, error) {
	if c := d.FirstChild(); c != nil && strings.EqualFold(c.Name, ModelTag) {
		return c, nil
	}

	payload := strings.TrimSpace(d.Text)
	if payload == "" {
		return nil, nil
	}
	xml, err := Inflate(payload)
	if err != nil {
		return nil, err
	}
	return ParseXMLString(ZapGremlins(xml))
}
