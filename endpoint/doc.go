// Package endpoint opens the external byte sources and sinks a pipeline
// document names in input, output, readsFromSource and writesToDestination.
//
// A reference is resolved as follows:
//
//   - "System.in" / "System.out": the process stdio streams, or the ones
//     injected with WithStdio. Each can be claimed once per Resolver.
//   - "s3://bucket/key": an S3 (or S3-compatible) object.
//   - "http://" and "https://": fetched with GET and retried with backoff.
//     URLs are input-only.
//   - anything else: a local file path. Parent directories of outputs are
//     created on demand.
//
// References ending in ".gz" are transparently decompressed on input and
// compressed on output.
package endpoint
