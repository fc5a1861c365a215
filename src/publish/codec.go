package publish

import (
	"github.com/vmihailenco/msgpack/v5"
	"google.golang.org/grpc/encoding"
)

// Name is the gRPC content subtype beliefs are exchanged with.
const Name = "msgpack"

type codec struct{}

func (codec) Marshal(v any) ([]byte, error)      { return msgpack.Marshal(v) }
func (codec) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }
func (codec) Name() string                       { return Name }

func init() {
	encoding.RegisterCodec(codec{})
}
