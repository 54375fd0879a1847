// Package awshook routes aws-sdk-go-v2 operations through a hooks session.
//
// A Session wraps an aws.Config. Every config it hands out installs an
// initialize-step middleware that emits before-call and after-call events
// named after the SDK service id and operation, so a recorder.Controller
// attached to the session can record real responses or replay fixtures
// without any network traffic:
//
//	sess := awshook.NewSession(cfg)
//	ctl, _ := recorder.New("testdata/fixtures")
//	_ = ctl.Attach(sess)
//	_ = ctl.Playback()
//	client := s3.NewFromConfig(sess.Config())
//
// Replayed responses are decoded into the operation's typed output. Output
// types must be registered with RegisterOutputs first; the s3, ec2 or any
// other service package output structs work the same way.
package awshook
