// Package relay is the store-and-forward hop between MeshTalk nodes.
//
// The relay never sees plaintext. It queues opaque packets per node id,
// pushes them over a WebSocket when the node holds one open, keeps a
// directory of published public keys and forwards traffic to neighbour
// relays with a decreasing hop budget.
//
// HTTP API
//
//	GET  /health
//	POST /msg/{node}             queue or push a packet for {node}
//	GET  /msg/{node}?limit=N     list up to N queued packets
//	POST /msg/{node}/ack         {"ids": [...]} drops those packets
//	GET  /ws/{node}              WebSocket push and send
//	POST /keys                   publish {node_id, kem, public_key}
//	GET  /keys/{node}
//	POST /api/node               heartbeat {node_id, address}
//	GET  /api/node               relay info
//	GET  /api/network            known nodes and neighbour relays
//	POST /api/messages           packets from neighbour relays
//
// Client is the node side over plain HTTP: a polling Transport and the key
// DirectoryClient. WSTransport is the push Transport. Queues are bounded;
// when full the oldest packet is dropped. A published key is accepted only
// when its node id is the fingerprint of the public key.
package relay
