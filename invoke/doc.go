// Package invoke is the call boundary used by generated RPC stubs.
//
// A Client bundles everything shared by the calls of one service client: the
// retry loop and its throttler, the token cache, an optional bulkhead, and
// telemetry. Stubs hand it a function performing one attempt:
//
//	bucket, err := invoke.Call(ctx, client, "GetBucket", func(ctx context.Context) (*Bucket, error) {
//	    return stub.GetBucket(invoke.OutgoingContext(ctx), req)
//	})
//
// Every attempt runs with a fresh token in its context. When the backend
// rejects the credential the cache is invalidated and the attempt is repeated
// with a newly fetched token, at most MaxAuthRetries times.
//
// StartOperation returns an lro.Poller for a long-running operation and List
// returns a paging.Paginator; both run each remote call through the same
// pipeline as Call.
package invoke
