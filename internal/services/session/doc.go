// Package session runs the call signaling state machine.
//
// A Machine owns one record per peer and enforces a single live call per
// node. Calls move Idle → Offering or Ringing → Connected → Ended, or to
// Failed on timeout, transport error or a malformed payload. ICE candidates
// that arrive before the remote description are queued and flushed in
// arrival order once it is applied. Every terminal path releases the media
// peer, the timer and the queues, appends a history record and publishes a
// CallEvent to subscribers.
package session
