// Command meshtalk is the MeshTalk node CLI.
//
// It manages the node identity, publishes and pins public keys, sends and
// receives end-to-end encrypted messages through a relay (or direct QUIC)
// and places or answers calls. Configuration comes from flags, MESHTALK_*
// environment variables and ~/.meshtalk/config.yaml.
//
// Usage:
//
//	meshtalk init
//	meshtalk whoami
//	meshtalk publish
//	meshtalk pin <node> <pubkey-b64>
//	meshtalk send <node> <text>
//	meshtalk recv
//	meshtalk listen
//	meshtalk call <node>
//	meshtalk answer [--reject]
//	meshtalk calls [--limit N]
//	meshtalk hash <text>
//	meshtalk mac <key> <text>
//	meshtalk verify-mac <key> <text> <mac>
package main
