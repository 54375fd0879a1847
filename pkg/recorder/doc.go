// Package recorder switches intercepted calls between recording and
// playback.
//
// A Controller is attached to one or more hook sources (sessions). Every
// client created from an attached source joins the controller's client set
// and receives whatever hooks the current mode needs:
//
//   - record: a before-call handler stashes the call fingerprint and an
//     after-call handler appends the response to the fixture store
//   - playback: one before-call handler answers every call from the store,
//     so the real backend never runs
//   - idle: nothing is registered
//
// Switching modes performs an implicit Stop, which removes every hook from
// the sessions and clients and rewinds playback cursors.
//
//	ctl, err := recorder.New("testdata/fixtures")
//	ctl.Attach(session)
//	ctl.Playback()
//	defer ctl.Stop()
package recorder
