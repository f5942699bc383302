// Package testutil provides test components and an in-memory endpoint
// opener for exercising the dag package without files or RDF parsing.
//
// Example:
//
//	reg := testutil.NewRegistry()
//	mem := testutil.NewMemoryOpener(map[string]string{"in.txt": "a\nb\n"})
//	b := dag.NewBuilder(reg, dag.WithOpener(mem))
//	g, _ := b.Build(ctx, doc)
//	_, err := (&dag.Engine{}).Run(ctx, g)
//	out := mem.Output("out.txt")
package testutil
