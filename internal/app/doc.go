// Package app wires application dependencies for the CLI.
//
// LoadConfig merges defaults, config.yaml, MESHTALK_* variables and flags.
// NewWire builds the stores and the identity service from Config; Open then
// loads the identity and wires the crypto engine, key directory, transport,
// message service and call machine into an App.
package app
