package transport

import (
	"github.com/oleelnes/FMB003-server-public/internal/avl"
	"github.com/oleelnes/FMB003-server-public/internal/codec"
)

// FrameDecoder turns one complete wire frame into a telemetry frame.
type FrameDecoder interface {
	Decode(frame []byte) (avl.Frame, error)
}

// CommandCodec builds outbound command frames and parses the replies.
type CommandCodec interface {
	EncodeCommand(cmd string) []byte
	DecodeResponse(frame []byte) (avl.CommandResponse, error)
}

// Compile-time assertions that *codec.Codec satisfies both roles.
var (
	_ FrameDecoder = (*codec.Codec)(nil)
	_ CommandCodec = (*codec.Codec)(nil)
)
