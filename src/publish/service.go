package publish

import (
	"time"

	"google.golang.org/grpc"
)

// Belief is one decoded macro-state belief as seen by subscribers.
type Belief struct {
	Session string    `msgpack:"session"`
	Seq     uint64    `msgpack:"seq"`
	Time    time.Time `msgpack:"time"`
	Probs   []float64 `msgpack:"probs"`
}

// SubscribeRequest selects the beliefs of one session, or of every session
// when Session is empty.
type SubscribeRequest struct {
	Session string `msgpack:"session"`
}

type BeliefServer interface {
	Subscribe(*SubscribeRequest, grpc.ServerStream) error
}

const subscribeMethod = "/neurostate.BeliefService/Subscribe"

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	in := new(SubscribeRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(BeliefServer).Subscribe(in, stream)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: "neurostate.BeliefService",
	HandlerType: (*BeliefServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "neurostate/belief",
}
