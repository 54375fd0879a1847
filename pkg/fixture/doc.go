// Package fixture persists recorded responses and serves them back in order.
//
// A fixture is one encoded document holding a status code and a payload:
//
//	{
//	    "data": {...},
//	    "status_code": 200
//	}
//
// Documents are stored in a storage.Bucket under
//
//	[prefix.]service.operation[.fingerprint]_N.ext
//
// where N starts at 1. Save always appends: the next index is one past the
// highest index present, so existing fixtures are never overwritten and gaps
// left by deleted files are tolerated. LoadNext walks the existing indices
// in ascending order, one per call, and wraps back to the lowest after the
// last. Cursors live in memory and are reset with Reset.
package fixture
