// Package pillboxtest wires fixture recording into Go tests.
//
// Each test gets its own fixture directory, PILLBOX_DIR/<TestName>, and a
// controller whose mode comes from PILLBOX_MODE (playback unless set to
// record). Run the suite once against real services with
// PILLBOX_MODE=record, commit the fixtures, and later runs replay them
// offline.
//
// # AWS clients
//
//	func TestListBuckets(t *testing.T) {
//	    cfg, _ := pillboxtest.Session(t, loadAWSConfig(t))
//	    client := s3.NewFromConfig(cfg)
//
//	    out, err := client.ListBuckets(context.Background(), &s3.ListBucketsInput{})
//	    require.NoError(t, err)
//	    ...
//	}
//
// Replayed outputs are decoded into typed SDK structs, so register them
// once per package with awshook.RegisterOutputs.
//
// # Other clients
//
// Anything built on a hooks.Session can be recorded the same way:
//
//	sess := hooks.NewSession()
//	fx := pillboxtest.New(t, sess)
//	client := sess.NewClient("billing", backend)
//
// # Assertions
//
//	fx.AssertFixtureCount("billing", "GetInvoice", 2)
//
// Controllers are closed with t.Cleanup.
package pillboxtest
