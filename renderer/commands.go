package renderer

import (
	"github.com/xlab/linmath"

	"github.com/ChewyGumball/bengine-sub000/driver"
	"github.com/ChewyGumball/bengine-sub000/pipeline"
	"github.com/ChewyGumball/bengine-sub000/transfer"
)

// Command is one entry of a CommandList. It is one of DrawMesh,
// DrawInstancedMesh, RawUpload or Custom.
type Command interface {
	command()
}

// DrawMesh draws a mesh, or one named sub mesh of it, with a pipeline.
type DrawMesh struct {
	Pipeline *pipeline.Pipeline
	Mesh     *transfer.Mesh
	Sets     []driver.DescriptorSet
	// SubMesh selects a named index range. Empty draws every index.
	SubMesh string
}

// DrawInstancedMesh draws a mesh once per transform. The transforms are
// copied into the frame's scratch buffer and bound as per instance data.
type DrawInstancedMesh struct {
	Pipeline  *pipeline.Pipeline
	Mesh      *transfer.Mesh
	Sets      []driver.DescriptorSet
	SubMesh   string
	Instances []linmath.Mat4x4
}

// RawUpload copies Data into Dst at Offset before the frame's render pass.
type RawUpload struct {
	Dst    *transfer.Buffer
	Offset uint64
	Data   []byte
}

// Custom records arbitrary commands inside the render pass.
type Custom struct {
	Record func(rec driver.Recorder, cb driver.CommandBuffer) error
}

func (DrawMesh) command()          {}
func (DrawInstancedMesh) command() {}
func (RawUpload) command()         {}
func (Custom) command()            {}

// CommandList is everything to render in one frame, in order.
type CommandList struct {
	Commands []Command
}

// Add appends commands to the list.
func (l *CommandList) Add(cmds ...Command) {
	l.Commands = append(l.Commands, cmds...)
}

// Reset empties the list, keeping its storage.
func (l *CommandList) Reset() {
	l.Commands = l.Commands[:0]
}

// Len returns the number of commands in the list.
func (l *CommandList) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Commands)
}
