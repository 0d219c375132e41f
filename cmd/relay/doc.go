// Command relay runs a MeshTalk relay: an untrusted store-and-forward hop
// that queues or pushes encrypted packets for nodes, serves the public key
// directory and forwards traffic to neighbour relays.
//
// Flags
//
//	--addr       listen address (default :8080)
//	--advertise  base URL neighbours use to reach this relay
//	--neighbor   neighbour relay base URL, repeatable
//	--data       directory holding published keys
//	--mdns       advertise _meshtalk._tcp and browse for neighbours
//
// Queues live in memory and are lost on exit; published keys persist in
// the data directory. See package relay for the HTTP API.
package main
