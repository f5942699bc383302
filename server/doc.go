// Package server is the Fintan run service: a gin HTTP server (with h2c)
// that runs pipeline documents from a directory on request.
//
// Routes:
//
//   - GET  /health                 service health and active runs
//   - GET  /metrics                Prometheus metrics
//   - GET  /version                build information
//   - GET  /api/components         registered component classes
//   - GET  /api/pipelines          runnable pipeline documents
//   - POST /api/run/:pipeline      run a pipeline; the request body is
//     System.in (plain or gzip) and the response body is System.out.
//     Repeated `param` query values fill <$param0>, <$param1>, ...
package server
