// Package hooks is the interception point pillbox attaches to.
//
// Clients emit two events around every call:
//
//	before-call.<service>.<operation>
//	after-call.<service>.<operation>
//
// Handlers are registered under dotted names that match events segment by
// segment. A registered name matches every event it is a prefix of, so a
// handler on "before-call" sees every call and one on
// "before-call.ec2" sees every EC2 call. Segments may be glob patterns
// ("after-call.ec2.Describe*", "after-call.*.{Get,List}*").
//
// A before-call handler that returns a non-nil Response short-circuits the
// call: the backend is skipped and that response is returned.
//
// A Session owns a registry and creates Clients. Each client gets a copy
// of the session registry at creation time, and session observers are
// told about every new client so they can register on it too.
package hooks
