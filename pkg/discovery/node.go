package discovery

import "encoding/json"

// NodeID uniquely identifies a node across restarts. Two processes that share
// an address but not an ID are treated as different nodes.
type NodeID string

// Address is the network locator of a node, usually host:port. It keys the
// membership table.
type Address string

// Node is a single member of the cluster. Immutable once constructed.
type Node struct {
	ID      NodeID  `json:"id"`
	Address Address `json:"address"`
}

// Codec encodes advertisements for the broadcast channel. Decode(Encode(n))
// must equal n exactly.
type Codec interface {
	Encode(Node) ([]byte, error)
	Decode([]byte) (Node, error)
}

// JSONCodec is the default advertisement codec.
type JSONCodec struct{}

func (JSONCodec) Encode(n Node) ([]byte, error) {
	return json.Marshal(n)
}

func (JSONCodec) Decode(b []byte) (Node, error) {
	var n Node
	if err := json.Unmarshal(b, &n); err != nil {
		return Node{}, err
	}
	return n, nil
}
