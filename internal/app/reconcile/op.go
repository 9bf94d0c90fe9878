// Package reconcile computes minimal render operations from snapshot diffs.
package reconcile

import (
	"fmt"

	"github.com/osa030/vlcpanel/internal/app/registry"
)

// OpType represents a render operation type.
type OpType int

const (
	OpSetScalar     OpType = iota // Set a scalar field's value
	OpSetFlag                     // Set a boolean highlight
	OpReloadArtwork               // Reload artwork with a cache-busting token
	OpResetArtwork                // Show the default artwork
	OpCreateWidget                // Create a widget with its initial value
	OpDestroyWidget               // Destroy a widget
	OpUpdateWidget                // Update a widget's value
)

// String returns the string representation of the op type.
func (t OpType) String() string {
	switch t {
	case OpSetScalar:
		return "set_scalar"
	case OpSetFlag:
		return "set_flag"
	case OpReloadArtwork:
		return "reload_artwork"
	case OpResetArtwork:
		return "reset_artwork"
	case OpCreateWidget:
		return "create_widget"
	case OpDestroyWidget:
		return "destroy_widget"
	case OpUpdateWidget:
		return "update_widget"
	default:
		return "unknown"
	}
}

// Field names a scalar or flag of the panel.
type Field string

const (
	FieldState         Field = "state"
	FieldTitle         Field = "title"
	FieldPosition      Field = "position"
	FieldLength        Field = "length"
	FieldVolume        Field = "volume"
	FieldRate          Field = "rate"
	FieldAudioDelay    Field = "audio_delay"
	FieldSubtitleDelay Field = "subtitle_delay"
	FieldPreamp        Field = "preamp"

	FieldPlaying Field = "playing" // Derived: pause icon shown while playing
	FieldRandom  Field = "random"
	FieldLoop    Field = "loop"
	FieldRepeat  Field = "repeat"
)

// RenderOp is one instruction for the render sink.
type RenderOp struct {
	Type   OpType
	Field  Field        // OpSetScalar, OpSetFlag
	Value  any          // OpSetScalar, OpCreateWidget, OpUpdateWidget
	Flag   bool         // OpSetFlag
	Token  string       // OpReloadArtwork
	Widget registry.Key // OpCreateWidget, OpDestroyWidget, OpUpdateWidget
}

// String returns a compact description used in logs.
func (o RenderOp) String() string {
	switch o.Type {
	case OpSetScalar:
		return fmt.Sprintf("%s(%s=%v)", o.Type, o.Field, o.Value)
	case OpSetFlag:
		return fmt.Sprintf("%s(%s=%t)", o.Type, o.Field, o.Flag)
	case OpReloadArtwork:
		return fmt.Sprintf("%s(%s)", o.Type, o.Token)
	case OpResetArtwork:
		return o.Type.String()
	case OpDestroyWidget:
		return fmt.Sprintf("%s(%s)", o.Type, o.Widget)
	default:
		return fmt.Sprintf("%s(%s=%v)", o.Type, o.Widget, o.Value)
	}
}

// SetScalar returns a scalar op.
func SetScalar(field Field, value any) RenderOp {
	return RenderOp{Type: OpSetScalar, Field: field, Value: value}
}

// SetFlag returns a flag op.
func SetFlag(field Field, on bool) RenderOp {
	return RenderOp{Type: OpSetFlag, Field: field, Flag: on}
}

// ReloadArtwork returns an artwork reload op.
func ReloadArtwork(token string) RenderOp {
	return RenderOp{Type: OpReloadArtwork, Token: token}
}

// ResetArtwork returns an artwork reset op.
func ResetArtwork() RenderOp {
	return RenderOp{Type: OpResetArtwork}
}

// CreateWidget returns a widget creation op.
func CreateWidget(key registry.Key, value any) RenderOp {
	return RenderOp{Type: OpCreateWidget, Widget: key, Value: value}
}

// DestroyWidget returns a widget destruction op.
func DestroyWidget(key registry.Key) RenderOp {
	return RenderOp{Type: OpDestroyWidget, Widget: key}
}

// UpdateWidget returns a widget update op.
func UpdateWidget(key registry.Key, value any) RenderOp {
	return RenderOp{Type: OpUpdateWidget, Widget: key, Value: value}
}
